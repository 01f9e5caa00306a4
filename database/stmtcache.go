// Package database holds sqlite plumbing shared by the index store.
// The state layer runs the same handful of queries for every block it
// indexes, so statements are prepared once and reused across blocks.
package database

import (
	"database/sql"
	"sync"
)

// StmtCache maps a query string to its prepared statement.
// Statements prepared on the *sql.DB stay valid across transactions,
// so one cache serves every per-block store transaction.
type StmtCache struct {
	db *sql.DB
	m  sync.Map
}

func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db}
}

// Prepare returns the cached statement for query, preparing it on first use.
func (sc *StmtCache) Prepare(query string) (*sql.Stmt, error) {
	cached, _ := sc.m.Load(query)
	if cached == nil {
		stmt, err := sc.db.Prepare(query)
		if err != nil {
			return nil, err
		}
		sc.m.Store(query, stmt)
		cached = stmt
	}
	return cached.(*sql.Stmt), nil
}

// MustPrepare is Prepare for the fixed schema queries; a failure there
// means the schema itself is broken, so it panics.
func (sc *StmtCache) MustPrepare(query string) *sql.Stmt {
	stmt, err := sc.Prepare(query)
	if err != nil {
		panic(err)
	}
	return stmt
}

// Clear closes and drops every cached statement. Called when the store shuts down.
func (sc *StmtCache) Clear() {
	sc.m.Range(func(k, v interface{}) bool {
		_ = v.(*sql.Stmt).Close()
		sc.m.Delete(k)
		return true
	})
}
