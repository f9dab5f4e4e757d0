package appserver

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/p2pmsg"
)

func sampleConfirmedTx() chaintypes.Transaction {
	return chaintypes.Transaction{
		TxID:   "T1",
		Sender: "alice",
		Data: chaintypes.TransactionData{
			From:    "alice",
			To:      "bob",
			Amount:  50,
			AssetID: "deer",
			TxID:    "T1",
		},
		Signature:      "sig",
		StartTimestamp: chaintypes.NowISO8601(),
	}
}

type fakeWallet struct {
	mu       sync.Mutex
	balances map[string]float64
	assets   map[string]*walletAsset
	transfers []struct{ from, to string; amount float64 }
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{balances: map[string]float64{}, assets: map[string]*walletAsset{}}
}

func (w *fakeWallet) Balance(username string) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[username], nil
}

func (w *fakeWallet) AssetByID(assetID string) (*walletAsset, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.assets[assetID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (w *fakeWallet) Transfer(from, to string, amount float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[from] < amount {
		return ErrInsufficientFunds
	}
	w.balances[from] -= amount
	w.balances[to] += amount
	w.transfers = append(w.transfers, struct {
		from, to string
		amount   float64
	}{from, to, amount})
	return nil
}

func (w *fakeWallet) UpdateAssetOwner(assetID, newOwner string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.assets[assetID]
	if !ok {
		return false, nil
	}
	a.Owner = newOwner
	a.IsListed = false
	return true, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	notified []txRecord
	removed  []string
}

func (n *fakeNotifier) NotifyPurchaseResult(rec txRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, rec)
}

func (n *fakeNotifier) BroadcastMarketplaceRemoval(assetID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removed = append(n.removed, assetID)
}

// startFakeGateway accepts submit_purchase frames and always reports success.
func startFakeGateway(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
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
				raw, err := p2pmsg.ReadFrame(conn)
				if err != nil {
					return
				}
				if string(raw) == `{"action":"health"}` {
					p2pmsg.WriteFrame(conn, []byte(`{"status":"ok"}`))
					return
				}
				p2pmsg.WriteFrame(conn, []byte(`{"status":"submitted","nodes_reached":1}`))
			}()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestBuyRejectsSessionMismatch(t *testing.T) {
	wallet := newFakeWallet()
	p := NewPipeline(Config{}, wallet, nil)
	_, err := p.Buy("eve", BuyRequest{Buyer: "alice", AssetID: "x", Amount: 1})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestBuyRejectsMissingAsset(t *testing.T) {
	wallet := newFakeWallet()
	p := NewPipeline(Config{}, wallet, nil)
	_, err := p.Buy("alice", BuyRequest{Buyer: "alice", AssetID: "missing", Amount: 1})
	require.ErrorIs(t, err, ErrAssetUnavailable)
}

func TestBuyRejectsPriceMismatch(t *testing.T) {
	wallet := newFakeWallet()
	wallet.assets["deer"] = &walletAsset{AssetID: "deer", Owner: "bob", IsListed: true, Price: 50}
	wallet.balances["alice"] = 100
	p := NewPipeline(Config{}, wallet, nil)
	_, err := p.Buy("alice", BuyRequest{Buyer: "alice", AssetID: "deer", Amount: 10})
	require.ErrorIs(t, err, ErrPriceMismatch)
}

func TestBuyRejectsInsufficientFunds(t *testing.T) {
	wallet := newFakeWallet()
	wallet.assets["deer"] = &walletAsset{AssetID: "deer", Owner: "bob", IsListed: true, Price: 50}
	wallet.balances["alice"] = 10
	p := NewPipeline(Config{}, wallet, nil)
	_, err := p.Buy("alice", BuyRequest{Buyer: "alice", AssetID: "deer", Amount: 50})
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestBuyQueuesAndWorkerSubmits(t *testing.T) {
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

	txID, err := p.Buy("alice", BuyRequest{Buyer: "alice", AssetID: "deer", Amount: 50})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, _, ok := p.Status(txID)
		return ok && status == StatusSubmitted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTimeoutMonitorExpiresStaleQueuedTx(t *testing.T) {
	wallet := newFakeWallet()
	notifier := &fakeNotifier{}
	p := NewPipeline(Config{
		TxTimeout:              50 * time.Millisecond,
		TimeoutMonitorInterval: 10 * time.Millisecond,
	}, wallet, notifier)

	rec := &txRecord{TxID: "T1", Status: StatusQueued, CreatedAt: time.Now().Add(-time.Hour)}
	p.status.create(rec)

	go p.timeoutMonitor()
	t.Cleanup(func() { close(p.quit) })

	require.Eventually(t, func() bool {
		status, msg, ok := p.Status("T1")
		return ok && status == StatusTimeout && msg != ""
	}, time.Second, 10*time.Millisecond)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.notified, 1)
}

func TestConfirmationConsumerAppliesTransferAndReassignsOwner(t *testing.T) {
	wallet := newFakeWallet()
	wallet.balances["alice"] = 100
	wallet.balances["bob"] = 0
	wallet.assets["deer"] = &walletAsset{AssetID: "deer", Owner: "bob", IsListed: true, Price: 50}

	notifier := &fakeNotifier{}
	p := NewPipeline(Config{}, wallet, notifier)
	rec := &txRecord{TxID: "T1", Status: StatusSubmitted, CreatedAt: time.Now(), AssetID: "deer"}
	p.status.create(rec)

	consumer := NewConfirmationConsumer(p, "127.0.0.1", 0)
	consumer.applyOne(sampleConfirmedTx())

	status, _, ok := p.Status("T1")
	require.True(t, ok)
	require.Equal(t, StatusConfirmed, status)

	bal, _ := wallet.Balance("bob")
	require.Equal(t, 50.0, bal)

	asset, err := wallet.AssetByID("deer")
	require.NoError(t, err)
	require.Equal(t, "bob", asset.Owner)
	require.False(t, asset.IsListed)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.removed, 1)
	require.Equal(t, "deer", notifier.removed[0])
}
