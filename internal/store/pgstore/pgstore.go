// Package pgstore implements the hot-path domain storage interfaces
// (PeerDeviceStore, SessionStore, RatchetStore) against PostgreSQL via
// github.com/jackc/pgx, for deployments that want a relational backend
// instead of one user's local JSON files (internal/store).
//
// Grounded on katzenpost-katzenpost/server/internal/sqldb/pgx.go: a
// pgx.ConnPool sized for concurrent callers, opened once, with every query
// prepared by name at startup and invoked through pool.Exec/QueryRow by
// that name rather than by building SQL at call sites.
package pgstore

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx"

	domain "github.com/itechstro/lime/internal/domain"
)

const (
	tagPinPeerDeviceInsert = "pin_peer_device_insert"
	tagPinPeerDeviceSelect = "pin_peer_device_select"
	tagPinPeerDeviceUpdate = "pin_peer_device_update"
	tagLoadPeerDevice      = "load_peer_device"
	tagDeletePeerDevice    = "delete_peer_device"

	tagUpsertSession = "upsert_session"
	tagLoadSession   = "load_session"
	tagDeleteSession = "delete_session"

	tagUpsertConversation = "upsert_conversation"
	tagLoadConversation   = "load_conversation"
	tagDeleteConversation = "delete_conversation"
)

// schema is the set of relations pgstore expects to already exist (spec.md
// §6: "a set of named relations... concrete schemas are an implementation
// choice"). Kept here as documentation; migrations are an operational
// concern outside this package.
const schema = `
CREATE TABLE IF NOT EXISTS peer_devices (
	row_id       BIGSERIAL PRIMARY KEY,
	device_id    TEXT UNIQUE NOT NULL,
	identity_key JSONB NOT NULL,
	status       SMALLINT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	peer_device_id TEXT NOT NULL,
	draining       BOOLEAN NOT NULL,
	session        JSONB NOT NULL,
	PRIMARY KEY (peer_device_id, draining)
);

CREATE TABLE IF NOT EXISTS conversations (
	conversation_id TEXT PRIMARY KEY,
	state           JSONB NOT NULL
);
`

// Schema returns the DDL pgstore expects applied before use.
func Schema() string { return schema }

// Store bundles pgx-backed implementations of PeerDeviceStore, SessionStore,
// and RatchetStore behind one connection pool.
type Store struct {
	pool *pgx.ConnPool
}

// Config configures the underlying pgx connection pool.
type Config struct {
	// DataSourceName is a libpq-style connection string, e.g.
	// "host=localhost user=lime dbname=lime sslmode=disable".
	DataSourceName string
	// MaxConnections bounds pool size; defaults to 5 if <= 0, mirroring
	// the teacher example's floor for concurrent callers.
	MaxConnections int
}

// Open parses cfg, establishes the pool, and prepares every statement pgstore uses.
func Open(cfg Config) (*Store, error) {
	connCfg, err := pgx.ParseConnectionString(cfg.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 5
	}

	pool, err := pgx.NewConnPool(pgx.ConnPoolConfig{
		ConnConfig:     connCfg,
		MaxConnections: maxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("pgstore: open pool: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.prepareStatements(); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

func (s *Store) prepareStatements() error {
	stmts := []struct{ tag, query string }{
		{tagPinPeerDeviceInsert, `INSERT INTO peer_devices (device_id, identity_key, status) VALUES ($1, $2, $3) RETURNING row_id`},
		{tagPinPeerDeviceSelect, `SELECT row_id, identity_key, status FROM peer_devices WHERE device_id = $1`},
		{tagPinPeerDeviceUpdate, `UPDATE peer_devices SET status = $2 WHERE device_id = $1`},
		{tagLoadPeerDevice, `SELECT row_id, identity_key, status FROM peer_devices WHERE device_id = $1`},
		{tagDeletePeerDevice, `DELETE FROM peer_devices WHERE device_id = $1`},

		{tagUpsertSession, `INSERT INTO sessions (peer_device_id, draining, session) VALUES ($1, $2, $3)
			ON CONFLICT (peer_device_id, draining) DO UPDATE SET session = EXCLUDED.session`},
		{tagLoadSession, `SELECT session FROM sessions WHERE peer_device_id = $1 AND draining = $2`},
		{tagDeleteSession, `DELETE FROM sessions WHERE peer_device_id = $1 AND draining = $2`},

		{tagUpsertConversation, `INSERT INTO conversations (conversation_id, state) VALUES ($1, $2)
			ON CONFLICT (conversation_id) DO UPDATE SET state = EXCLUDED.state`},
		{tagLoadConversation, `SELECT state FROM conversations WHERE conversation_id = $1`},
		{tagDeleteConversation, `DELETE FROM conversations WHERE conversation_id = $1`},
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Prepare(stmt.tag, stmt.query); err != nil {
			return fmt.Errorf("pgstore: prepare %s: %w", stmt.tag, err)
		}
	}
	return nil
}

func marshal(v any) ([]byte, error)          { return json.Marshal(v) }
func unmarshal(b []byte, v any) error        { return json.Unmarshal(b, v) }

var _ domain.PeerDeviceStore = (*Store)(nil)
var _ domain.SessionStore = (*Store)(nil)
var _ domain.RatchetStore = (*Store)(nil)
