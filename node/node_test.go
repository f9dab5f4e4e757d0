package node

import (
	"net"
	"testing"
	"time"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/p2pmsg"
	"github.com/aurex-chain/aurex/storage/ledger"
)

type noopSink struct{}

func (noopSink) SendBlockConfirmation(chaintypes.Block, string) error { return nil }

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("freePort: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func newTestNode(t *testing.T, port int, peerPorts []int, difficulty int) *Node {
	t.Helper()
	dir := t.TempDir()
	keys := testKeys(t)
	ls, err := ledger.Open(dir, port)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { ls.Close() })

	cfg := Config{
		NodeID:     "node-" + time.Now().Format("150405.000000"),
		Host:       "127.0.0.1",
		Port:       port,
		Difficulty: difficulty,
		NodePorts:  peerPorts,
	}
	n := New(cfg, keys, ls, nil, noopSink{})
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(n.Stop)
	return n
}

func TestTwoNodeMiningRaceConverges(t *testing.T) {
	portA := freePort(t)
	portB := freePort(t)

	nodeA := newTestNode(t, portA, []int{portA, portB}, 1)
	nodeB := newTestNode(t, portB, []int{portA, portB}, 1)

	payload, err := p2pmsg.EncodeNewTransaction(p2pmsg.NewTransactionPayload{
		Sender: "alice",
		Data:   chaintypes.TransactionData{From: "alice", To: "bob", Amount: 25, AssetID: "deer", AssetName: "Deer", TxID: "T1"},
	})
	if err != nil {
		t.Fatalf("EncodeNewTransaction: %v", err)
	}

	for _, port := range []int{portA, portB} {
		conn, err := net.DialTimeout("tcp", addr("127.0.0.1", port), 2*time.Second)
		if err != nil {
			t.Fatalf("dial %d: %v", port, err)
		}
		if err := p2pmsg.WriteFrame(conn, payload); err != nil {
			t.Fatalf("send to %d: %v", port, err)
		}
		p2pmsg.ReadFrame(conn)
		conn.Close()
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		idxA, hashA, _ := nodeA.ledger.LastBlock()
		idxB, hashB, _ := nodeB.ledger.LastBlock()
		if idxA == 0 && idxB == 0 && hashA == hashB {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("nodes did not converge on the same block 0 within the deadline")
}
