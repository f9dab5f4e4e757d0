package node

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/p2pmsg"
)

func addr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// handleConn services exactly one inbound connection: read one frame,
// dispatch, optionally reply, close. This mirrors §4.4's one-thread-per-
// connection handler model. The chain tip and active miner are guarded by
// n.mu; ledger appends run outside that lock, from these handlers and from
// the miner-result goroutine alike. The ledger store's single database
// connection serializes those appends, and the blocks table's index primary
// key rejects a second block for an index already stored.
func (n *Node) handleConn(conn net.Conn) {
	defer conn.Close()

	raw, err := p2pmsg.ReadFrame(conn)
	if err != nil {
		return
	}
	msg, err := p2pmsg.Decode(raw)
	if err != nil {
		logger.Debug("dropping undecodable frame", "err", err)
		return
	}

	switch msg.Kind {
	case p2pmsg.KindPing:
		reply, _ := jsonOf(p2pmsg.PongReply{Pong: true, NodeID: n.nodeID})
		p2pmsg.WriteFrame(conn, reply)

	case p2pmsg.KindNodeDiscovery:
		peers := n.peers.Snapshot()
		infos := make([]p2pmsg.PeerInfo, len(peers))
		for i, p := range peers {
			infos[i] = p2pmsg.PeerInfo{Host: p.Host, Port: p.Port}
		}
		reply, _ := jsonOf(infos)
		p2pmsg.WriteFrame(conn, reply)

	case p2pmsg.KindNewTransaction:
		n.handleNewTransaction(*msg.NewTransaction)
		reply, _ := jsonOf(map[string]string{"status": "MINING_STARTED"})
		p2pmsg.WriteFrame(conn, reply)

	case p2pmsg.KindNewBlock:
		n.handleNewBlock(*msg.NewBlock)

	case p2pmsg.KindStopMining:
		n.stopMining()
	}
}

func jsonOf(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// handleNewTransaction appends to the mempool and ensures a miner is
// running, per §4.4's NEW_TRANSACTION handler contract.
func (n *Node) handleNewTransaction(p p2pmsg.NewTransactionPayload) {
	n.mempool.Push(chaintypes.MempoolEntry{
		Sender:         p.Sender,
		Data:           p.Data,
		Signature:      p.Signature,
		StartTimestamp: p.StartTimestamp,
	})
	n.ensureMining()
}
