// Package registry implements the node registry bootstrap store described in
// §6.4: a shared table of (node_id, host, port, node_type, status,
// last_seen) that a node uses to self-register on boot and to filter stale
// peers. It follows original_source/blockchain/db_init.py's `nodes` table,
// backed here by the same SQLite engine as storage/ledger, with an optional
// Redis-fronted hot read path (github.com/go-redis/redis/v7) for the
// bootstrap peer list.
package registry

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v7"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/aurex-chain/aurex/log"
)

var logger = log.NewModuleLogger(log.Registry)

// Entry is one row of the node registry.
type Entry struct {
	NodeID   string    `json:"node_id"`
	Host     string    `json:"host"`
	Port     int       `json:"port"`
	NodeType string    `json:"node_type"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// staleAfter is how long a registry row may go unrefreshed before it is
// excluded from the peer bootstrap list.
const staleAfter = 2 * time.Minute

// Store is the node registry.
type Store struct {
	db    *sql.DB
	redis *redis.Client // optional; nil disables the hot-cache path
}

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	node_id TEXT PRIMARY KEY,
	host TEXT NOT NULL,
	port INTEGER NOT NULL,
	node_type TEXT NOT NULL DEFAULT 'miner',
	status TEXT NOT NULL DEFAULT 'up',
	last_seen TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_host_port ON nodes(host, port);
`

// Open opens (or creates) the registry database at path. redisAddr may be
// empty, in which case the hot-cache path is simply skipped.
func Open(path string, redisAddr string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "registry: open")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "registry: init schema")
	}

	s := &Store{db: db}
	if redisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: redisAddr, DialTimeout: 2 * time.Second})
		if err := s.redis.Ping().Err(); err != nil {
			logger.Warn("registry redis cache unavailable, continuing without it", "addr", redisAddr, "err", err)
			s.redis = nil
		}
	}
	return s, nil
}

// Close releases underlying connections.
func (s *Store) Close() error {
	if s.redis != nil {
		s.redis.Close()
	}
	return s.db.Close()
}

// SelfRegister inserts or refreshes this node's own row — called once at
// boot; Heartbeat refreshes last_seen on every accepted inbound connection
// afterwards.
func (s *Store) SelfRegister(e Entry) error {
	e.LastSeen = time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO nodes (node_id, host, port, node_type, status, last_seen) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(node_id) DO UPDATE SET host=excluded.host, port=excluded.port,
		   node_type=excluded.node_type, status=excluded.status, last_seen=excluded.last_seen`,
		e.NodeID, e.Host, e.Port, e.NodeType, e.Status, e.LastSeen,
	)
	if err != nil {
		return errors.Wrap(err, "registry: self-register")
	}
	s.invalidateCache()
	return nil
}

// Heartbeat refreshes last_seen for an already-registered node_id.
func (s *Store) Heartbeat(nodeID string) error {
	_, err := s.db.Exec(`UPDATE nodes SET last_seen = ? WHERE node_id = ?`, time.Now().UTC(), nodeID)
	if err != nil {
		return errors.Wrap(err, "registry: heartbeat")
	}
	s.invalidateCache()
	return nil
}

// ActivePeers returns every registry row whose port is in configuredPorts,
// excluding selfPort, and whose last_seen is within staleAfter — the "insert
// own row, filter peers in the configured set, ignore stale rows" bootstrap
// policy of §6.4.
func (s *Store) ActivePeers(configuredPorts []int, selfPort int) ([]Entry, error) {
	if cached, ok := s.readCache(); ok {
		return filterPeers(cached, configuredPorts, selfPort), nil
	}

	rows, err := s.db.Query(`SELECT node_id, host, port, node_type, status, last_seen FROM nodes`)
	if err != nil {
		return nil, errors.Wrap(err, "registry: query peers")
	}
	defer rows.Close()

	var all []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.NodeID, &e.Host, &e.Port, &e.NodeType, &e.Status, &e.LastSeen); err != nil {
			return nil, errors.Wrap(err, "registry: scan peer")
		}
		all = append(all, e)
	}
	s.writeCache(all)
	return filterPeers(all, configuredPorts, selfPort), nil
}

func filterPeers(all []Entry, configuredPorts []int, selfPort int) []Entry {
	wanted := make(map[int]bool, len(configuredPorts))
	for _, p := range configuredPorts {
		wanted[p] = true
	}
	cutoff := time.Now().UTC().Add(-staleAfter)

	var out []Entry
	for _, e := range all {
		if e.Port == selfPort {
			continue
		}
		if !wanted[e.Port] {
			continue
		}
		if e.LastSeen.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	return out
}

const cacheKey = "aurex:registry:nodes"

func (s *Store) readCache() ([]Entry, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(cacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (s *Store) writeCache(entries []Entry) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	s.redis.Set(cacheKey, raw, 5*time.Second)
}

func (s *Store) invalidateCache() {
	if s.redis == nil {
		return
	}
	s.redis.Del(cacheKey)
}
