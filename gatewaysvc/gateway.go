// Package gatewaysvc implements the gateway (C5): a single stateless TCP
// endpoint that fans out purchase submissions to every configured mining
// node and fans in block confirmations for forwarding to the application
// server. It is a direct Go re-expression of
// original_source/blockchain/gateway_server.py's single-listener dual
// message family (client submissions vs. node block_confirmation messages).
package gatewaysvc

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/log"
	"github.com/aurex-chain/aurex/p2pmsg"
)

var logger = log.NewModuleLogger(log.Gateway)

// Config carries the gateway's wiring.
type Config struct {
	Host string
	Port int

	NodeHost  string
	NodePorts []int

	AppServerHost string
	AppServerPort int

	FanoutTimeout time.Duration
}

// Gateway is the fan-out/fan-in service.
type Gateway struct {
	cfg     Config
	ledger  ConfirmationLedger
	quit    chan struct{}
	listener net.Listener
}

// ConfirmationLedger is the shared, best-effort record of confirmed blocks
// the gateway keeps for idempotent dedup (§4.5's UNIQUE(block_hash)).
type ConfirmationLedger interface {
	RecordConfirmation(blockHash string) (isNew bool, err error)
}

// New builds a Gateway. ledger may be nil, in which case every confirmation
// is treated as new (best-effort, matching §4.5's "best-effort" language for
// the local record).
func New(cfg Config, ledger ConfirmationLedger) *Gateway {
	return &Gateway{cfg: cfg, ledger: ledger, quit: make(chan struct{})}
}

// Start opens the gateway's single TCP listener.
func (g *Gateway) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", g.cfg.Host, g.cfg.Port))
	if err != nil {
		return errors.Wrap(err, "gatewaysvc: listen")
	}
	g.listener = ln
	logger.Info("gateway listening", "addr", ln.Addr().String())
	go g.acceptLoop()
	return nil
}

// Stop closes the listener.
func (g *Gateway) Stop() {
	close(g.quit)
	if g.listener != nil {
		g.listener.Close()
	}
}

func (g *Gateway) acceptLoop() {
	for {
		conn, err := g.listener.Accept()
		if err != nil {
			select {
			case <-g.quit:
				return
			default:
				logger.Error("accept failed", "err", err)
				return
			}
		}
		go g.handleConn(conn)
	}
}

// clientRequest is the shape of a client submission (§4.5).
type clientRequest struct {
	Action string          `json:"action"`
	Body   json.RawMessage `json:"body"`
}

// nodeConfirmation is the shape of a node's block_confirmation message
// (§4.5, §6.2).
type nodeConfirmation struct {
	Type        string                     `json:"type"`
	BlockIndex  uint64                     `json:"block_index"`
	BlockHash   string                     `json:"block_hash"`
	MinerID     string                     `json:"miner_id"`
	NodeID      string                     `json:"node_id"`
	Timestamp   string                     `json:"timestamp"`
	Transactions []chaintypes.Transaction  `json:"transactions"`
}

// handleConn reads exactly one length-prefixed JSON frame and dispatches it
// to the client-submission or node-confirmation path based on the presence
// of "action" vs "type", the same dual-family dispatch gateway_server.py's
// main() performs on one listening socket.
func (g *Gateway) handleConn(conn net.Conn) {
	defer conn.Close()

	raw, err := p2pmsg.ReadFrame(conn)
	if err != nil {
		return
	}

	var probe struct {
		Action string `json:"action"`
		Type   string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		logger.Debug("unparseable gateway frame", "err", err)
		return
	}

	if probe.Type == "block_confirmation" {
		var nc nodeConfirmation
		if err := json.Unmarshal(raw, &nc); err != nil {
			logger.Warn("malformed block_confirmation", "err", err)
			return
		}
		g.handleBlockConfirmation(nc)
		return
	}

	var req clientRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Warn("malformed client request", "err", err)
		return
	}
	g.handleClientRequest(conn, req)
}
