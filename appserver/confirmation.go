package appserver

import (
	"bufio"
	"encoding/json"
	"net"

	"github.com/aurex-chain/aurex/chaintypes"
)

// confirmationMessage mirrors gatewaysvc's block_confirmation shape (§6.2).
type confirmationMessage struct {
	Type         string                    `json:"type"`
	BlockIndex   uint64                    `json:"block_index"`
	BlockHash    string                    `json:"block_hash"`
	MinerID      string                    `json:"miner_id"`
	NodeID       string                    `json:"node_id"`
	Timestamp    string                    `json:"timestamp"`
	Transactions []chaintypes.Transaction  `json:"transactions"`
}

// ConfirmationConsumer listens for newline-delimited JSON block_confirmation
// frames forwarded by the gateway (§4.6 "Confirmation consumer") and applies
// each sealed transaction to the wallet/asset store.
type ConfirmationConsumer struct {
	pipeline *Pipeline
	host     string
	port     int
	listener net.Listener
	quit     chan struct{}
}

// NewConfirmationConsumer builds a consumer bound to host:port.
func NewConfirmationConsumer(pipeline *Pipeline, host string, port int) *ConfirmationConsumer {
	return &ConfirmationConsumer{pipeline: pipeline, host: host, port: port, quit: make(chan struct{})}
}

// Start opens the listener and begins accepting connections.
func (c *ConfirmationConsumer) Start() error {
	ln, err := net.Listen("tcp", addrOf(c.host, c.port))
	if err != nil {
		return err
	}
	c.listener = ln
	logger.Info("confirmation consumer listening", "addr", ln.Addr().String())
	go c.acceptLoop()
	return nil
}

// Stop closes the listener.
func (c *ConfirmationConsumer) Stop() {
	close(c.quit)
	if c.listener != nil {
		c.listener.Close()
	}
}

func (c *ConfirmationConsumer) acceptLoop() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			select {
			case <-c.quit:
				return
			default:
				logger.Error("confirmation accept failed", "err", err)
				return
			}
		}
		go c.handleConn(conn)
	}
}

func (c *ConfirmationConsumer) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg confirmationMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			logger.Warn("malformed confirmation line", "err", err)
			continue
		}
		c.applyConfirmation(msg)
	}
}

// applyConfirmation implements §4.6's confirmation-consumer steps 1-4 for
// every transaction sealed in the confirmed block.
func (c *ConfirmationConsumer) applyConfirmation(msg confirmationMessage) {
	for _, tx := range msg.Transactions {
		c.applyOne(tx)
	}
}

func (c *ConfirmationConsumer) applyOne(tx chaintypes.Transaction) {
	p := c.pipeline
	txID := tx.Data.TxID
	if txID == "" {
		txID = tx.TxID
	}

	err := p.wallet.Transfer(tx.Data.From, tx.Data.To, tx.Data.Amount)
	if err != nil {
		p.finalizeFailed(txID, err.Error())
		return
	}

	if tx.Data.AssetID != "" {
		// §4.6 step 3: reassign assets.owner := to.
		if _, uerr := p.wallet.UpdateAssetOwner(tx.Data.AssetID, tx.Data.To); uerr != nil {
			logger.Warn("asset owner reassignment failed", "tx_id", txID, "asset_id", tx.Data.AssetID, "err", uerr)
		}
	}

	p.finalizeConfirmed(txID)
}

// finalizeConfirmed and finalizeFailed implement step 4's terminal
// transition plus I7's at-most-once notification.
func (p *Pipeline) finalizeConfirmed(txID string) {
	if p.status.transition(txID, StatusConfirmed, "") {
		if rec, ok := p.status.get(txID); ok {
			p.notifier.NotifyPurchaseResult(rec)
			if rec.AssetID != "" {
				p.notifier.BroadcastMarketplaceRemoval(rec.AssetID)
			}
		}
	}
}

func (p *Pipeline) finalizeFailed(txID, message string) {
	if p.status.transition(txID, StatusFailed, message) {
		if rec, ok := p.status.get(txID); ok {
			p.notifier.NotifyPurchaseResult(rec)
		}
	}
}
