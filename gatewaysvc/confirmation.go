package gatewaysvc

import (
	"bufio"
	"encoding/json"
	"net"
	"time"
)

// handleBlockConfirmation implements §4.5's "Node confirmations" path: record
// the block in the shared (best-effort) ledger, deduplicated by block_hash,
// then forward the full confirmation as one line of newline-delimited JSON
// to the application server's confirmation endpoint (§6.2). Idempotency:
// the second node's confirmation for the same block_hash is a no-op at the
// ledger but is still forwarded — §4.5 does not require suppressing the
// forward, only the local record.
func (g *Gateway) handleBlockConfirmation(nc nodeConfirmation) {
	if g.ledger != nil {
		isNew, err := g.ledger.RecordConfirmation(nc.BlockHash)
		if err != nil {
			logger.Warn("failed to record block confirmation locally", "block_hash", nc.BlockHash, "err", err)
		} else if !isNew {
			logger.Debug("duplicate block confirmation ignored by local record", "block_hash", nc.BlockHash)
		}
	}

	if err := g.forwardConfirmation(nc); err != nil {
		logger.Warn("failed to forward block confirmation to app server", "err", err)
	}
}

// forwardConfirmation dials the app server's confirmation listener and
// writes one newline-terminated JSON line — §6.2's wire format for this hop.
func (g *Gateway) forwardConfirmation(nc nodeConfirmation) error {
	conn, err := net.DialTimeout("tcp", addrOf(g.cfg.AppServerHost, g.cfg.AppServerPort), 3*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(3 * time.Second))

	enc := json.NewEncoder(conn)
	return enc.Encode(nc)
}

// DrainConfirmationStream is a small helper for test/ops use: reads
// newline-delimited JSON confirmation frames from r until EOF or error,
// invoking fn for each. The appserver package has its own production
// listener using the same framing.
func DrainConfirmationStream(r *bufio.Reader, fn func(json.RawMessage)) error {
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			fn(json.RawMessage(line))
		}
		if err != nil {
			return err
		}
	}
}
