// Package ledger implements the per-node embedded relational block store
// (C2): one SQLite file per listen port, written only by the node that
// listens on that port (its connection handlers and its miner-result
// goroutine), through a single database connection. The schema is carried over column-for-column from
// original_source/blockchain/db_init.py's per-node table definitions, and
// the additive-migration style (best-effort ALTER TABLE, ignore "duplicate
// column" failures) follows the same file's init_node_db.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/log"
)

var logger = log.NewModuleLogger(log.Ledger)

// Store is one node's ledger: blocks + transactions, one physical file,
// keyed by listen port.
type Store struct {
	db   *sql.DB
	port int

	// hashSeen fronts the UNIQUE(current_hash) check with an in-memory
	// probabilistic-free exact cache so duplicate block_confirmation/
	// rebroadcast traffic (§8 round-trip idempotence) doesn't always pay a
	// disk round trip before being rejected.
	hashSeen *fastcache.Cache
}

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	"index" INTEGER PRIMARY KEY,
	timestamp TEXT NOT NULL,
	prev_hash TEXT NOT NULL,
	current_hash TEXT NOT NULL UNIQUE,
	nonce INTEGER NOT NULL,
	miner_id TEXT NOT NULL,
	signature TEXT NOT NULL,
	public_key_pem TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blocks_current_hash ON blocks(current_hash);

CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	block_hash TEXT NOT NULL REFERENCES blocks(current_hash),
	tx_id TEXT NOT NULL,
	sender TEXT NOT NULL,
	data TEXT NOT NULL,
	signature TEXT NOT NULL,
	start_timestamp TEXT NOT NULL,
	end_timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_block_hash ON transactions(block_hash);
`

// additive migration columns, applied best-effort. Mirrors db_init.py's
// pattern of wrapping each ALTER in a try/except ignored on "duplicate
// column name".
var migrations = []string{
	`ALTER TABLE blocks ADD COLUMN difficulty INTEGER DEFAULT 0`,
}

// Open creates (if needed) and opens the ledger file for the given listen
// port under dataDir, running schema creation and additive migrations.
func Open(dataDir string, port int) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "ledger: mkdir")
	}
	path := filepath.Join(dataDir, fmt.Sprintf("node_%d.sqlite3", port))
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "ledger: open")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ledger: init schema")
	}
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			logger.Debug("ignoring migration error (column likely exists)", "stmt", stmt, "err", err)
		}
	}

	s := &Store{db: db, port: port, hashSeen: fastcache.New(4 * 1024 * 1024)}
	s.warmHashCache()
	return s, nil
}

func (s *Store) warmHashCache() {
	rows, err := s.db.Query(`SELECT current_hash FROM blocks`)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var h string
		if rows.Scan(&h) == nil {
			s.hashSeen.Set([]byte(h), []byte{1})
		}
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastBlock returns (index, current_hash) of the ledger tip, or
// (-1, GenesisHash) on a fresh ledger — matching the Python original's
// load_last_block() genesis sentinel.
func (s *Store) LastBlock() (int64, string, error) {
	row := s.db.QueryRow(`SELECT "index", current_hash FROM blocks ORDER BY "index" DESC LIMIT 1`)
	var idx int64
	var hash string
	if err := row.Scan(&idx, &hash); err != nil {
		if err == sql.ErrNoRows {
			return -1, chaintypes.GenesisHash, nil
		}
		return 0, "", errors.Wrap(err, "ledger: LastBlock")
	}
	return idx, hash, nil
}

// HasHash reports whether a block with the given current_hash is already
// present, consulting the in-memory cache before falling back to the DB.
func (s *Store) HasHash(hash string) bool {
	if s.hashSeen.Has([]byte(hash)) {
		return true
	}
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM blocks WHERE current_hash = ? LIMIT 1`, hash).Scan(&one)
	return err == nil
}

// AppendBlock inserts the block row and every sealed transaction in one
// transaction; it fails atomically (and leaves the ledger unchanged) if the
// block's current_hash already exists, satisfying §4.2's UNIQUE-violation
// duplicate-rejection contract.
func (s *Store) AppendBlock(b chaintypes.Block) error {
	if s.HasHash(b.CurrentHash) {
		return ErrDuplicateBlock
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "ledger: begin")
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO blocks ("index", timestamp, prev_hash, current_hash, nonce, miner_id, signature, public_key_pem)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Index, b.Timestamp, b.PrevHash, b.CurrentHash, b.Nonce, b.MinerID, b.Signature, b.PublicKeyPEM,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBlock
		}
		return errors.Wrap(err, "ledger: insert block")
	}

	for _, t := range b.Transactions {
		dataJSON, err := json.Marshal(t.Data)
		if err != nil {
			return errors.Wrap(err, "ledger: marshal tx data")
		}
		endTS := t.EndTimestamp
		if endTS == "" {
			endTS = b.Timestamp
		}
		_, err = tx.Exec(
			`INSERT INTO transactions (block_hash, tx_id, sender, data, signature, start_timestamp, end_timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.CurrentHash, t.TxID, t.Sender, string(dataJSON), t.Signature, t.StartTimestamp, endTS,
		)
		if err != nil {
			return errors.Wrap(err, "ledger: insert transaction")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "ledger: commit")
	}
	s.hashSeen.Set([]byte(b.CurrentHash), []byte{1})
	return nil
}

// ErrDuplicateBlock is returned by AppendBlock when current_hash already
// exists on this ledger.
var ErrDuplicateBlock = errors.New("ledger: duplicate block hash")

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

// RecentBlocks returns up to n most-recently-sealed blocks, newest first,
// with their transactions populated — backing the "ledger dump" supplemented
// feature (cmd/pownode ledger).
func (s *Store) RecentBlocks(n int) ([]chaintypes.Block, error) {
	rows, err := s.db.Query(
		`SELECT "index", timestamp, prev_hash, current_hash, nonce, miner_id, signature, public_key_pem
		 FROM blocks ORDER BY "index" DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "ledger: query recent blocks")
	}
	defer rows.Close()

	var blocks []chaintypes.Block
	for rows.Next() {
		var b chaintypes.Block
		if err := rows.Scan(&b.Index, &b.Timestamp, &b.PrevHash, &b.CurrentHash, &b.Nonce, &b.MinerID, &b.Signature, &b.PublicKeyPEM); err != nil {
			return nil, errors.Wrap(err, "ledger: scan block")
		}
		txs, err := s.transactionsForBlock(b.CurrentHash)
		if err != nil {
			return nil, err
		}
		b.Transactions = txs
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// AllBlocks returns every block on this ledger, oldest first, for the
// "ledger dump --export" supplemented feature's snapshot export.
func (s *Store) AllBlocks() ([]chaintypes.Block, error) {
	rows, err := s.db.Query(
		`SELECT "index", timestamp, prev_hash, current_hash, nonce, miner_id, signature, public_key_pem
		 FROM blocks ORDER BY "index" ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "ledger: query all blocks")
	}
	defer rows.Close()

	var blocks []chaintypes.Block
	for rows.Next() {
		var b chaintypes.Block
		if err := rows.Scan(&b.Index, &b.Timestamp, &b.PrevHash, &b.CurrentHash, &b.Nonce, &b.MinerID, &b.Signature, &b.PublicKeyPEM); err != nil {
			return nil, errors.Wrap(err, "ledger: scan block")
		}
		txs, err := s.transactionsForBlock(b.CurrentHash)
		if err != nil {
			return nil, err
		}
		b.Transactions = txs
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func (s *Store) transactionsForBlock(blockHash string) ([]chaintypes.Transaction, error) {
	rows, err := s.db.Query(
		`SELECT tx_id, sender, data, signature, start_timestamp, end_timestamp
		 FROM transactions WHERE block_hash = ? ORDER BY id ASC`, blockHash)
	if err != nil {
		return nil, errors.Wrap(err, "ledger: query transactions")
	}
	defer rows.Close()

	var out []chaintypes.Transaction
	for rows.Next() {
		var t chaintypes.Transaction
		var dataJSON string
		if err := rows.Scan(&t.TxID, &t.Sender, &dataJSON, &t.Signature, &t.StartTimestamp, &t.EndTimestamp); err != nil {
			return nil, errors.Wrap(err, "ledger: scan transaction")
		}
		if err := json.Unmarshal([]byte(dataJSON), &t.Data); err != nil {
			return nil, errors.Wrap(err, "ledger: unmarshal tx data")
		}
		out = append(out, t)
	}
	return out, nil
}

// Now is a seam for tests; production code always uses wall-clock time.
var Now = time.Now
