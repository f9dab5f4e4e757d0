package main

import (
	"encoding/json"
	"io/ioutil"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/aurex-chain/aurex/storage/ledger"
)

// exportLedgerSnapshot writes every block on store as a snappy-compressed
// JSON array, replacing original_source/blockchain/json_ledger.py's
// export_view() raw-JSON dump.
func exportLedgerSnapshot(store *ledger.Store, path string) error {
	blocks, err := store.AllBlocks()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(blocks)
	if err != nil {
		return errors.Wrap(err, "pownode: marshal ledger snapshot")
	}
	compressed := snappy.Encode(nil, raw)
	if err := ioutil.WriteFile(path, compressed, 0o644); err != nil {
		return errors.Wrap(err, "pownode: write ledger snapshot")
	}
	logger.Info("exported ledger snapshot", "path", path, "blocks", len(blocks), "bytes", len(compressed))
	return nil
}
