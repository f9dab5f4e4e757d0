// Package appserver implements the application server's tx pipeline (C6):
// the BUY submission path, a single submission worker, a timeout monitor and
// a confirmation consumer, plus the TLS pipe-delimited text protocol clients
// speak (§4.6, §6.3). It plays the role klaytn's work/tx_pool.go and
// api/apirouter.go jointly play — in-process queueing plus a request
// surface — but the queue here is a single-purpose purchase pipeline rather
// than a general mempool.
package appserver

import (
	"math"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/log"
)

var logger = log.NewModuleLogger(log.AppServer)

// priceEpsilon is the tolerance for the BUY handler's requested-vs-stored
// price comparison (§4.6 step 3).
const priceEpsilon = 0.01

// WalletStore is the subset of storage/walletstore.Store the pipeline needs.
type WalletStore interface {
	Balance(username string) (float64, error)
	AssetByID(assetID string) (*walletAsset, error)
	Transfer(from, to string, amount float64) error
	UpdateAssetOwner(assetID, newOwner string) (bool, error)
}

// walletAsset mirrors the fields of walletstore.Asset the pipeline reads,
// letting this package depend only on a narrow interface instead of the
// concrete gorm-backed store (useful for tests with a fake).
type walletAsset struct {
	AssetID  string
	Owner    string
	IsListed bool
	Price    float64
}

// Notifier is the external collaborator §4.6 step 4 calls out: "emit
// notifications ... and broadcast a marketplace-removal event". Both are
// out-of-scope subsystems (§1 Non-goals); Pipeline only needs an interface
// to call into whatever implements them.
type Notifier interface {
	NotifyPurchaseResult(rec txRecord)
	BroadcastMarketplaceRemoval(assetID string)
}

// noopNotifier discards both calls; used when no notifier is wired.
type noopNotifier struct{}

func (noopNotifier) NotifyPurchaseResult(txRecord)      {}
func (noopNotifier) BroadcastMarketplaceRemoval(string) {}

// Pipeline is the BUY submission path plus its background workers.
type Pipeline struct {
	wallet   WalletStore
	notifier Notifier
	gateway  *gatewayClient
	status   *statusMap

	queue chan *txRecord
	quit  chan struct{}

	txTimeout        time.Duration
	monitorInterval  time.Duration
}

// Config configures the submission worker and timeout monitor.
type Config struct {
	GatewayHost               string
	GatewayPort               int
	GatewayCallTimeout        time.Duration
	TxTimeout                 time.Duration
	TimeoutMonitorInterval    time.Duration
}

// NewPipeline builds a Pipeline. notifier may be nil, in which case result
// notifications and marketplace-removal broadcasts are no-ops.
func NewPipeline(cfg Config, wallet WalletStore, notifier Notifier) *Pipeline {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Pipeline{
		wallet:          wallet,
		notifier:        notifier,
		gateway:         newGatewayClient(cfg.GatewayHost, cfg.GatewayPort, cfg.GatewayCallTimeout),
		status:          newStatusMap(),
		queue:           make(chan *txRecord, 256),
		quit:            make(chan struct{}),
		txTimeout:       cfg.TxTimeout,
		monitorInterval: cfg.TimeoutMonitorInterval,
	}
}

// Start launches the submission worker and the timeout monitor, and performs
// the one-time startup readiness probe against the gateway (SPEC_FULL §3).
func (p *Pipeline) Start() {
	if err := p.gateway.healthCheck(); err != nil {
		logger.Warn("gateway not reachable at startup", "err", err)
	} else {
		logger.Info("gateway readiness probe ok")
	}
	go p.submissionWorker()
	go p.timeoutMonitor()
}

// Stop halts the background workers.
func (p *Pipeline) Stop() {
	close(p.quit)
}

// BuyRequest is the decoded body of a BUY|asset_id|username|amount command.
type BuyRequest struct {
	AssetID  string
	Buyer    string
	Amount   float64
}

// ErrUnauthorized, ErrAssetUnavailable, ErrPriceMismatch, ErrInsufficientFunds
// are the rejection reasons the BUY handler maps to ERR replies (§6.3).
var (
	ErrUnauthorized      = errors.New("appserver: session user does not match buyer")
	ErrAssetUnavailable  = errors.New("appserver: asset missing, unlisted, or already owned by buyer")
	ErrPriceMismatch     = errors.New("appserver: requested price does not match listed price")
	ErrInsufficientFunds = errors.New("appserver: buyer wallet balance too low")
)

// Buy runs the BUY handler (§4.6 steps 1-5): sessionUser is the
// already-authenticated caller, req.Buyer must equal it per step 1.
func (p *Pipeline) Buy(sessionUser string, req BuyRequest) (txID string, err error) {
	if sessionUser != req.Buyer {
		return "", ErrUnauthorized
	}

	asset, err := p.wallet.AssetByID(req.AssetID)
	if err != nil {
		return "", errors.Wrap(err, "appserver: lookup asset")
	}
	if asset == nil || !asset.IsListed || asset.Owner == req.Buyer {
		return "", ErrAssetUnavailable
	}

	if math.Abs(asset.Price-req.Amount) > priceEpsilon {
		return "", ErrPriceMismatch
	}

	balance, err := p.wallet.Balance(req.Buyer)
	if err != nil {
		return "", errors.Wrap(err, "appserver: lookup buyer balance")
	}
	if balance < req.Amount {
		return "", ErrInsufficientFunds
	}

	txID = uuid.New()
	rec := &txRecord{
		TxID:      txID,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
		Buyer:     req.Buyer,
		Seller:    asset.Owner,
		AssetID:   req.AssetID,
		Amount:    req.Amount,
	}
	p.status.create(rec)

	select {
	case p.queue <- rec:
	default:
		p.status.transition(txID, StatusFailed, "submission queue full")
		return "", errors.New("appserver: submission queue full")
	}

	logger.Info("purchase queued", "tx_id", txID, "asset_id", req.AssetID, "buyer", req.Buyer)
	return txID, nil
}

// Status looks up a tx_id's current status for GET_TX_STATUS (§6.3).
func (p *Pipeline) Status(txID string) (Status, string, bool) {
	rec, ok := p.status.get(txID)
	if !ok {
		return "", "", false
	}
	return rec.Status, rec.Message, true
}

// submissionWorker is the single long-running dequeue loop (§4.6
// "Submission worker (single long-running task)").
func (p *Pipeline) submissionWorker() {
	for {
		select {
		case <-p.quit:
			return
		case rec := <-p.queue:
			p.processSubmission(rec)
		}
	}
}

func (p *Pipeline) processSubmission(rec *txRecord) {
	body := purchaseBody{
		Sender: rec.Buyer,
		Data: chaintypes.TransactionData{
			From:      rec.Buyer,
			To:        rec.Seller,
			Amount:    rec.Amount,
			AssetID:   rec.AssetID,
			AssetName: "",
			TxID:      rec.TxID,
		},
	}

	resp, err := p.gateway.submit(body)
	if err != nil {
		p.status.transition(rec.TxID, StatusFailed, err.Error())
		logger.Warn("submission failed", "tx_id", rec.TxID, "err", err)
		return
	}
	if resp.Status == "submitted" {
		p.status.transition(rec.TxID, StatusSubmitted, resp.Message)
		logger.Info("purchase submitted to gateway", "tx_id", rec.TxID, "nodes_reached", resp.NodesReached)
		return
	}
	p.status.transition(rec.TxID, StatusFailed, resp.Message)
	logger.Warn("gateway rejected submission", "tx_id", rec.TxID, "message", resp.Message)
}

// timeoutMonitor wakes every monitorInterval and times out anything stuck
// past txTimeout (§4.6 "Timeout monitor").
func (p *Pipeline) timeoutMonitor() {
	interval := p.monitorInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.quit:
			return
		case now := <-ticker.C:
			for _, txID := range p.status.scanExpired(p.txTimeout, now) {
				if p.status.transition(txID, StatusTimeout, "PoW Timeout after 10 mins") {
					if rec, ok := p.status.get(txID); ok {
						p.notifier.NotifyPurchaseResult(rec)
					}
				}
			}
		}
	}
}
