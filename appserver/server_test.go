package appserver

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aurex-chain/aurex/p2pmsg"
)

type staticSession struct{ user string }

func (s staticSession) ResolveSession(net.Conn) (string, error) { return s.user, nil }

func startTestServer(t *testing.T, p *Pipeline, user string) net.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	srv := NewServer(p, staticSession{user: user}, nil, "127.0.0.1", port)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	var conn net.Conn
	require.Eventually(t, func() bool {
		conn, err = net.DialTimeout("tcp", addrOf("127.0.0.1", port), 200*time.Millisecond)
		return err == nil
	}, time.Second, 10*time.Millisecond)
	return conn
}

func TestServerBuyAndGetTxStatusRoundTrip(t *testing.T) {
	gwPort := startFakeGateway(t)
	wallet := newFakeWallet()
	wallet.assets["deer"] = &walletAsset{AssetID: "deer", Owner: "bob", IsListed: true, Price: 50}
	wallet.balances["alice"] = 100

	p := NewPipeline(Config{
		GatewayHost:        "127.0.0.1",
		GatewayPort:        gwPort,
		GatewayCallTimeout: time.Second,
		TxTimeout:          10 * time.Minute,
	}, wallet, nil)
	p.Start()
	t.Cleanup(p.Stop)

	conn := startTestServer(t, p, "alice")
	defer conn.Close()

	require.NoError(t, p2pmsg.WriteFrame(conn, []byte("BUY|deer|alice|50")))
	resp, err := p2pmsg.ReadFrame(conn)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(resp), "OK|PENDING|"))
	txID := strings.TrimPrefix(string(resp), "OK|PENDING|")

	require.Eventually(t, func() bool {
		require.NoError(t, p2pmsg.WriteFrame(conn, []byte("GET_TX_STATUS|"+txID)))
		statusResp, err := p2pmsg.ReadFrame(conn)
		require.NoError(t, err)
		return strings.Contains(string(statusResp), "SUBMITTED")
	}, 2*time.Second, 50*time.Millisecond)
}

func TestServerBuyRejectsSessionMismatch(t *testing.T) {
	wallet := newFakeWallet()
	p := NewPipeline(Config{}, wallet, nil)
	conn := startTestServer(t, p, "eve")
	defer conn.Close()

	require.NoError(t, p2pmsg.WriteFrame(conn, []byte("BUY|deer|alice|50")))
	resp, err := p2pmsg.ReadFrame(conn)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(resp), "ERR|UNAUTHORIZED"))
}

func TestServerUnknownCommand(t *testing.T) {
	wallet := newFakeWallet()
	p := NewPipeline(Config{}, wallet, nil)
	conn := startTestServer(t, p, "alice")
	defer conn.Close()

	require.NoError(t, p2pmsg.WriteFrame(conn, []byte("LOGIN|alice|hunter2")))
	resp, err := p2pmsg.ReadFrame(conn)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(resp), "ERR|UNKNOWN_COMMAND"))
}

func TestServerGetTxStatusUnknownTxID(t *testing.T) {
	wallet := newFakeWallet()
	p := NewPipeline(Config{}, wallet, nil)
	conn := startTestServer(t, p, "alice")
	defer conn.Close()

	require.NoError(t, p2pmsg.WriteFrame(conn, []byte("GET_TX_STATUS|does-not-exist")))
	resp, err := p2pmsg.ReadFrame(conn)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(resp), "ERR|NOT_FOUND"))
}
