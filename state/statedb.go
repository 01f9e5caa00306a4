package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relicsprotocol/relicsd/database"
	"github.com/relicsprotocol/relicsd/keepsake"
)

// StateDB is the SQLite-backed Store.
type StateDB struct {
	db    *sql.DB
	cache *database.StmtCache
}

var _ Store = (*StateDB)(nil)

// NewStateDB opens (and if needed creates) the index database at path.
// Use ":memory:" for a throwaway database.
func NewStateDB(path string) (*StateDB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// sqlite allows a single writer; let database/sql serialize access.
	db.SetMaxOpenConns(1)
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &StateDB{db: db, cache: database.NewStmtCache(db)}, nil
}

func (s *StateDB) Close() error {
	s.cache.Clear()
	return s.db.Close()
}

func (s *StateDB) Begin() (Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &sqliteTx{store: s, tx: tx}, nil
}

// read-side queries, served outside any write batch

func (s *StateDB) Relic(id keepsake.RelicId) (*RelicEntry, error) {
	return scanRelic(s.db.QueryRow(`SELECT entry FROM relics WHERE id = ?`, id.String()))
}

func (s *StateDB) RelicByName(name string) (*RelicEntry, error) {
	return scanRelic(s.db.QueryRow(`SELECT entry FROM relics WHERE name = ?`, name))
}

func (s *StateDB) Relics() ([]*RelicEntry, error) {
	rows, err := s.db.Query(`SELECT entry FROM relics ORDER BY block, tx_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*RelicEntry
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		entry := &RelicEntry{}
		if err := json.Unmarshal([]byte(blob), entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *StateDB) Balances(outpoint string) ([]Balance, error) {
	return queryBalances(s.db.QueryRow(`SELECT balances FROM output_balances WHERE outpoint = ?`, outpoint))
}

func (s *StateDB) Sealing(name string) (*SealingRecord, error) {
	return scanSealing(s.db.QueryRow(`SELECT record FROM sealings WHERE name = ?`, name))
}

func (s *StateDB) BlockEvents(height uint64) ([]*Event, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM events WHERE height = ? ORDER BY tx_index, seq`, height)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *StateDB) Tip() (uint64, string, error) {
	var height uint64
	var hash string
	err := s.db.QueryRow(`SELECT height, hash FROM sync WHERE id = 0`).Scan(&height, &hash)
	if err == sql.ErrNoRows {
		return 0, "", nil
	}
	return height, hash, err
}

// sqliteTx implements Tx on one database/sql transaction. Statements are
// prepared once on the connection and rebound per transaction.
type sqliteTx struct {
	store *StateDB
	tx    *sql.Tx
}

var _ Tx = (*sqliteTx)(nil)

func (t *sqliteTx) stmt(query string) *sql.Stmt {
	return t.tx.Stmt(t.store.cache.MustPrepare(query))
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

func (t *sqliteTx) Balances(outpoint string) ([]Balance, error) {
	return queryBalances(t.stmt(`SELECT balances FROM output_balances WHERE outpoint = ?`).QueryRow(outpoint))
}

func (t *sqliteTx) TakeBalances(outpoint string) ([]Balance, error) {
	balances, err := t.Balances(outpoint)
	if err != nil || balances == nil {
		return nil, err
	}
	return balances, t.DeleteBalances(outpoint)
}

func (t *sqliteTx) PutBalances(outpoint string, balances []Balance) error {
	blob, err := json.Marshal(balances)
	if err != nil {
		return err
	}
	_, err = t.stmt(`INSERT OR REPLACE INTO output_balances (outpoint, balances) VALUES (?, ?)`).
		Exec(outpoint, string(blob))
	return err
}

func (t *sqliteTx) DeleteBalances(outpoint string) error {
	_, err := t.stmt(`DELETE FROM output_balances WHERE outpoint = ?`).Exec(outpoint)
	return err
}

func (t *sqliteTx) Sealing(name string) (*SealingRecord, error) {
	return scanSealing(t.stmt(`SELECT record FROM sealings WHERE name = ?`).QueryRow(name))
}

func (t *sqliteTx) PutSealing(rec *SealingRecord) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = t.stmt(`INSERT OR REPLACE INTO sealings (name, record) VALUES (?, ?)`).
		Exec(rec.Name.Relic.String(), string(blob))
	return err
}

func (t *sqliteTx) DeleteSealing(name string) error {
	_, err := t.stmt(`DELETE FROM sealings WHERE name = ?`).Exec(name)
	return err
}

func (t *sqliteTx) Relic(id keepsake.RelicId) (*RelicEntry, error) {
	return scanRelic(t.stmt(`SELECT entry FROM relics WHERE id = ?`).QueryRow(id.String()))
}

func (t *sqliteTx) PutRelic(entry *RelicEntry) error {
	blob, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = t.stmt(`INSERT OR REPLACE INTO relics (id, block, tx_index, name, entry) VALUES (?, ?, ?, ?, ?)`).
		Exec(entry.Id.String(), entry.Id.Block, entry.Id.Tx, entry.Name.Relic.String(), string(blob))
	return err
}

func (t *sqliteTx) DeleteRelic(id keepsake.RelicId) error {
	_, err := t.stmt(`DELETE FROM relics WHERE id = ?`).Exec(id.String())
	return err
}

func (t *sqliteTx) RelicCount() (uint64, error) {
	var n uint64
	err := t.stmt(`SELECT COUNT(*) FROM relics`).QueryRow().Scan(&n)
	return n, err
}

func (t *sqliteTx) NameRef(name string) (string, error) {
	var ref string
	err := t.stmt(`SELECT ref FROM name_index WHERE name = ?`).QueryRow(name).Scan(&ref)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return ref, err
}

func (t *sqliteTx) PutName(name string, ref string) error {
	_, err := t.stmt(`INSERT OR REPLACE INTO name_index (name, ref) VALUES (?, ?)`).Exec(name, ref)
	return err
}

func (t *sqliteTx) DeleteName(name string) error {
	_, err := t.stmt(`DELETE FROM name_index WHERE name = ?`).Exec(name)
	return err
}

func (t *sqliteTx) BlockMints(id keepsake.RelicId, height uint64) (uint64, error) {
	var n uint64
	err := t.stmt(`SELECT count FROM block_mints WHERE relic_id = ? AND height = ?`).
		QueryRow(id.String(), height).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

func (t *sqliteTx) SetBlockMints(id keepsake.RelicId, height uint64, count uint64) error {
	if count == 0 {
		_, err := t.stmt(`DELETE FROM block_mints WHERE relic_id = ? AND height = ?`).
			Exec(id.String(), height)
		return err
	}
	_, err := t.stmt(`INSERT OR REPLACE INTO block_mints (relic_id, height, count) VALUES (?, ?, ?)`).
		Exec(id.String(), height, count)
	return err
}

func (t *sqliteTx) DeleteBlockMints(height uint64) error {
	_, err := t.stmt(`DELETE FROM block_mints WHERE height = ?`).Exec(height)
	return err
}

func (t *sqliteTx) AppendEvent(ev *Event) error {
	blob, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = t.stmt(`INSERT INTO events (height, tx_index, seq, txid, type, payload) VALUES (?, ?, ?, ?, ?, ?)`).
		Exec(ev.Height, ev.TxIndex, ev.Seq, ev.Txid, string(ev.Type), string(blob))
	return err
}

func (t *sqliteTx) BlockEvents(height uint64) ([]*Event, error) {
	rows, err := t.stmt(`SELECT payload FROM events WHERE height = ? ORDER BY tx_index, seq`).
		Query(height)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (t *sqliteTx) DeleteBlockEvents(height uint64) error {
	_, err := t.stmt(`DELETE FROM events WHERE height = ?`).Exec(height)
	return err
}

func (t *sqliteTx) Tip() (uint64, string, error) {
	var height uint64
	var hash string
	err := t.stmt(`SELECT height, hash FROM sync WHERE id = 0`).QueryRow().Scan(&height, &hash)
	if err == sql.ErrNoRows {
		return 0, "", nil
	}
	return height, hash, err
}

func (t *sqliteTx) SetTip(height uint64, hash string) error {
	_, err := t.stmt(`INSERT OR REPLACE INTO sync (id, height, hash) VALUES (0, ?, ?)`).
		Exec(height, hash)
	return err
}

func (t *sqliteTx) BlockHash(height uint64) (string, error) {
	var hash string
	err := t.stmt(`SELECT hash FROM block_hashes WHERE height = ?`).QueryRow(height).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

func (t *sqliteTx) SetBlockHash(height uint64, hash string) error {
	_, err := t.stmt(`INSERT OR REPLACE INTO block_hashes (height, hash) VALUES (?, ?)`).
		Exec(height, hash)
	return err
}

func (t *sqliteTx) DeleteBlockHash(height uint64) error {
	_, err := t.stmt(`DELETE FROM block_hashes WHERE height = ?`).Exec(height)
	return err
}

// row decoding helpers shared by the store and its transactions

func queryBalances(row *sql.Row) ([]Balance, error) {
	var blob string
	err := row.Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var balances []Balance
	if err := json.Unmarshal([]byte(blob), &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

func scanRelic(row *sql.Row) (*RelicEntry, error) {
	var blob string
	err := row.Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry := &RelicEntry{}
	if err := json.Unmarshal([]byte(blob), entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func scanSealing(row *sql.Row) (*SealingRecord, error) {
	var blob string
	err := row.Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := &SealingRecord{}
	if err := json.Unmarshal([]byte(blob), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		ev := &Event{}
		if err := json.Unmarshal([]byte(blob), ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
