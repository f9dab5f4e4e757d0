package gatewaysvc

import (
	"database/sql"

	bf "github.com/steakknife/bloomfilter"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SharedLedger is the gateway's own best-effort record of confirmed blocks,
// separate from each mining node's authoritative per-node ledger (§4.2). It
// exists purely so the gateway can deduplicate block_confirmation messages
// for the same block_hash arriving from more than one node (§4.5
// idempotency). A github.com/steakknife/bloomfilter probabilistic pre-check
// lets a "definitely not seen" hash skip the existence lookup and go
// straight to the UNIQUE-constrained insert, which is the actual source of
// truth; every call still reaches the database.
type SharedLedger struct {
	db    *sql.DB
	bloom *bf.Filter
}

const (
	bloomM = 1 << 20 // number of block hashes the filter is sized for
	bloomK = 5       // not passed to the filter; NewOptimal derives its own hash count
)

const confirmationSchema = `
CREATE TABLE IF NOT EXISTS block_confirmations (
	block_hash TEXT PRIMARY KEY,
	recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// OpenSharedLedger opens (or creates) the gateway's confirmation-dedup store.
func OpenSharedLedger(path string) (*SharedLedger, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "gatewaysvc: open shared ledger")
	}
	if _, err := db.Exec(confirmationSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "gatewaysvc: init shared ledger schema")
	}

	filter, err := bf.NewOptimal(bloomM, 0.001)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "gatewaysvc: init bloom filter")
	}
	_ = bloomK // unused, see the const block above

	sl := &SharedLedger{db: db, bloom: filter}
	sl.warmBloom()
	return sl, nil
}

func (sl *SharedLedger) warmBloom() {
	rows, err := sl.db.Query(`SELECT block_hash FROM block_confirmations`)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var h string
		if rows.Scan(&h) == nil {
			sl.bloom.Add(bf.HashBytes([]byte(h)))
		}
	}
}

// Close releases the underlying database handle.
func (sl *SharedLedger) Close() error {
	return sl.db.Close()
}

// RecordConfirmation implements gatewaysvc.ConfirmationLedger: it inserts
// block_hash if not already present, reporting whether this call was the
// first to see it. The bloom filter only ever says "maybe seen" or
// "definitely not seen" — a possible false positive there just costs one
// extra INSERT attempt that the UNIQUE constraint itself resolves
// authoritatively.
func (sl *SharedLedger) RecordConfirmation(blockHash string) (bool, error) {
	h := bf.HashBytes([]byte(blockHash))
	if sl.bloom.Contains(h) {
		var exists int
		err := sl.db.QueryRow(`SELECT 1 FROM block_confirmations WHERE block_hash = ?`, blockHash).Scan(&exists)
		if err == nil {
			return false, nil
		}
		if err != sql.ErrNoRows {
			return false, errors.Wrap(err, "gatewaysvc: check existing confirmation")
		}
	}

	res, err := sl.db.Exec(`INSERT OR IGNORE INTO block_confirmations (block_hash) VALUES (?)`, blockHash)
	if err != nil {
		return false, errors.Wrap(err, "gatewaysvc: insert confirmation")
	}
	sl.bloom.Add(h)

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "gatewaysvc: verify insert")
	}
	return inserted == 1, nil
}
