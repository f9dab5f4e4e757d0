package gatewaysvc

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aurex-chain/aurex/p2pmsg"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// fakeNode is a minimal stand-in for a PoW node's listener: it accepts one
// frame per connection and echoes back a fixed ack, so fan-out tests don't
// need a real miner.
func startFakeNode(t *testing.T) int {
	t.Helper()
	port := freePort(t)
	ln, err := net.Listen("tcp", addrOf("127.0.0.1", port))
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				p2pmsg.ReadFrame(conn)
				p2pmsg.WriteFrame(conn, []byte(`{"status":"MINING_STARTED"}`))
			}()
		}
	}()
	return port
}

func TestHealthCheck(t *testing.T) {
	gwPort := freePort(t)
	gw := New(Config{Host: "127.0.0.1", Port: gwPort}, nil)
	require.NoError(t, gw.Start())
	t.Cleanup(gw.Stop)

	conn, err := net.DialTimeout("tcp", addrOf("127.0.0.1", gwPort), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, p2pmsg.WriteFrame(conn, []byte(`{"action":"health"}`)))
	resp, err := p2pmsg.ReadFrame(conn)
	require.NoError(t, err)
	require.Contains(t, string(resp), `"status":"ok"`)
}

func TestSubmitPurchaseFansOutToAllNodes(t *testing.T) {
	p1 := startFakeNode(t)
	p2 := startFakeNode(t)
	gwPort := freePort(t)

	gw := New(Config{
		Host: "127.0.0.1", Port: gwPort,
		NodeHost: "127.0.0.1", NodePorts: []int{p1, p2},
		FanoutTimeout: 2 * time.Second,
	}, nil)
	require.NoError(t, gw.Start())
	t.Cleanup(gw.Stop)

	conn, err := net.DialTimeout("tcp", addrOf("127.0.0.1", gwPort), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	reqBody := `{"action":"submit_purchase","body":{"sender":"alice","data":{"from":"alice","to":"bob","amount":25,"asset_id":"deer","asset_name":"Deer","tx_id":"T1"},"signature":"sig"}}`
	require.NoError(t, p2pmsg.WriteFrame(conn, []byte(reqBody)))

	resp, err := p2pmsg.ReadFrame(conn)
	require.NoError(t, err)
	require.Contains(t, string(resp), `"status":"submitted"`)
	require.Contains(t, string(resp), `"nodes_reached":2`)
}

func TestSubmitWithNoReachableNodesFails(t *testing.T) {
	gwPort := freePort(t)
	unreachable := freePort(t) // nothing listens here

	gw := New(Config{
		Host: "127.0.0.1", Port: gwPort,
		NodeHost: "127.0.0.1", NodePorts: []int{unreachable},
		FanoutTimeout: time.Second,
	}, nil)
	require.NoError(t, gw.Start())
	t.Cleanup(gw.Stop)

	conn, err := net.DialTimeout("tcp", addrOf("127.0.0.1", gwPort), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	reqBody := `{"action":"submit_purchase","body":{"sender":"alice","data":{"from":"alice","to":"bob","amount":25}}}`
	require.NoError(t, p2pmsg.WriteFrame(conn, []byte(reqBody)))
	resp, err := p2pmsg.ReadFrame(conn)
	require.NoError(t, err)
	require.Contains(t, string(resp), `"status":"failed"`)
	require.Contains(t, string(resp), `"nodes_reached":0`)
}

