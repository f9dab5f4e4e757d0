// Package node implements the PoW mining node (C4): the single TCP
// listener, mempool, gossip, block validation and orchestration of the
// key manager (C1), ledger store (C2) and miner core (C3). It generalizes
// original_source/blockchain/manager_pow.py's peer-management/listener-
// thread pattern and blockchain_node.py's node wiring into a Go orchestrator
// in the style of the teacher's node.Node/ServiceContext lifecycle: one
// struct owns every sub-service and is responsible for starting and
// stopping them in order.
package node

import (
	"net"
	"sync"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/cryptokeys"
	"github.com/aurex-chain/aurex/log"
	"github.com/aurex-chain/aurex/pow"
	"github.com/aurex-chain/aurex/storage/ledger"
	"github.com/aurex-chain/aurex/storage/registry"
)

var logger = log.NewModuleLogger(log.PowNode)

// ConfirmationSink receives a block-confirmation datagram every time this
// node mines a block successfully, for forwarding to the gateway (§4.4 "On
// local mining success" / §6.2). It is satisfied by gatewaysvc's client, kept
// as an interface here so node has no import-time dependency on gatewaysvc.
type ConfirmationSink interface {
	SendBlockConfirmation(b chaintypes.Block, nodeID string) error
}

// Config carries everything Node needs to start.
type Config struct {
	NodeID     string
	Host       string
	Port       int
	Difficulty int
	NodePorts  []int
}

// Node is one PoW mining node.
type Node struct {
	cfg     Config
	nodeID  string
	keys    *cryptokeys.Manager
	ledger  *ledger.Store
	reg     *registry.Store
	mempool *mempool
	peers   *peerSet
	pkCache *pubKeyCache
	confirm ConfirmationSink

	mu          sync.Mutex
	activeMiner *pow.Miner
	lastIndex   int64
	lastHash    string

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
}

// New constructs a Node; it does not yet listen or mine.
func New(cfg Config, keys *cryptokeys.Manager, ledgerStore *ledger.Store, reg *registry.Store, confirm ConfirmationSink) *Node {
	idx, hash, err := ledgerStore.LastBlock()
	if err != nil {
		logger.Error("failed to read ledger tip, assuming genesis", "err", err)
		idx, hash = -1, chaintypes.GenesisHash
	}

	return &Node{
		cfg:       cfg,
		nodeID:    cfg.NodeID,
		keys:      keys,
		ledger:    ledgerStore,
		reg:       reg,
		mempool:   newMempool(),
		peers:     newPeerSet(cfg.Host, cfg.NodePorts, cfg.Port),
		pkCache:   newPubKeyCache(),
		confirm:   confirm,
		lastIndex: idx,
		lastHash:  hash,
		quit:      make(chan struct{}),
	}
}

// Start registers this node in the registry and opens its TCP listener.
func (n *Node) Start() error {
	if n.reg != nil {
		if err := n.reg.SelfRegister(registry.Entry{
			NodeID: n.nodeID, Host: n.cfg.Host, Port: n.cfg.Port,
			NodeType: "miner", Status: "up",
		}); err != nil {
			logger.Warn("self-registration failed", "err", err)
		}
	}

	ln, err := net.Listen("tcp", addr(n.cfg.Host, n.cfg.Port))
	if err != nil {
		return err
	}
	n.listener = ln
	logger.Info("node listening", "node_id", n.nodeID, "addr", ln.Addr().String())

	n.wg.Add(1)
	go n.acceptLoop()
	return nil
}

// Stop closes the listener and cancels any running miner.
func (n *Node) Stop() {
	close(n.quit)
	if n.listener != nil {
		n.listener.Close()
	}
	n.mu.Lock()
	if n.activeMiner != nil {
		n.activeMiner.Stop()
	}
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.quit:
				return
			default:
				logger.Error("accept failed", "err", err)
				return
			}
		}
		if n.reg != nil {
			_ = n.reg.Heartbeat(n.nodeID)
		}
		go n.handleConn(conn)
	}
}
