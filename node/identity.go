package node

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	uuid "github.com/satori/go.uuid"

	"github.com/aurex-chain/aurex/log"
)

var identityLogger = log.NewModuleLogger(log.PowNode)

// LoadOrCreateNodeID returns this node's stable UUID, generating one on
// first boot and persisting it next to the ledger data so it survives
// restarts — §3's "node_id: UUID, generated on first boot, stable across
// restarts via registry" requirement.
func LoadOrCreateNodeID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, "node_id")
	if raw, err := ioutil.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id, nil
		}
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", err
	}
	id := uuid.NewV4().String()
	if err := ioutil.WriteFile(path, []byte(id), 0o644); err != nil {
		return "", err
	}
	identityLogger.Info("generated new node identity", "node_id", id)
	return id, nil
}
