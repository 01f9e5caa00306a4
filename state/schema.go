package state

// SQLite schema. Amount columns live inside JSON record blobs so that u128
// values survive round-trips without precision loss; key columns needed for
// lookups and ordering are broken out separately.

const createOutputBalancesTable = `
CREATE TABLE IF NOT EXISTS output_balances (
	outpoint TEXT NOT NULL PRIMARY KEY,
	balances TEXT NOT NULL
);`

const createSealingsTable = `
CREATE TABLE IF NOT EXISTS sealings (
	name   TEXT NOT NULL PRIMARY KEY,
	record TEXT NOT NULL
);`

const createRelicsTable = `
CREATE TABLE IF NOT EXISTS relics (
	id       TEXT    NOT NULL PRIMARY KEY,
	block    INTEGER NOT NULL,
	tx_index INTEGER NOT NULL,
	name     TEXT    NOT NULL,
	entry    TEXT    NOT NULL
);`

const createRelicsNameIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS relics_name ON relics(name);`

const createNameIndexTable = `
CREATE TABLE IF NOT EXISTS name_index (
	name TEXT NOT NULL PRIMARY KEY,
	ref  TEXT NOT NULL
);`

const createBlockMintsTable = `
CREATE TABLE IF NOT EXISTS block_mints (
	relic_id TEXT    NOT NULL,
	height   INTEGER NOT NULL,
	count    INTEGER NOT NULL,
	PRIMARY KEY (relic_id, height)
);`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
	height   INTEGER NOT NULL,
	tx_index INTEGER NOT NULL,
	seq      INTEGER NOT NULL,
	txid     TEXT    NOT NULL,
	type     TEXT    NOT NULL,
	payload  TEXT    NOT NULL,
	PRIMARY KEY (height, tx_index, seq)
);`

const createSyncTable = `
CREATE TABLE IF NOT EXISTS sync (
	id     INTEGER NOT NULL PRIMARY KEY CHECK (id = 0),
	height INTEGER NOT NULL,
	hash   TEXT    NOT NULL
);`

const createBlockHashesTable = `
CREATE TABLE IF NOT EXISTS block_hashes (
	height INTEGER NOT NULL PRIMARY KEY,
	hash   TEXT    NOT NULL
);`

var schemaStatements = []string{
	createOutputBalancesTable,
	createSealingsTable,
	createRelicsTable,
	createRelicsNameIndex,
	createNameIndexTable,
	createBlockMintsTable,
	createEventsTable,
	createSyncTable,
	createBlockHashesTable,
}
