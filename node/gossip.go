package node

import (
	"net"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/p2pmsg"
)

const gossipDialTimeout = 3 * time.Second

// broadcastBlock gossips a freshly-sealed block to every known peer:
// best-effort, one connect-send-close per peer, failures logged (collected
// into a single combined error via go.uber.org/multierr) but never retried
// — §4.4's "broadcast ... best-effort; failures logged, not retried" and
// the glossary's definition of gossip.
func (n *Node) broadcastBlock(b chaintypes.Block) {
	peers := n.peers.Snapshot()
	if len(peers) == 0 {
		return
	}

	payload, err := p2pmsg.EncodeNewBlock(b)
	if err != nil {
		logger.Error("failed to encode block for gossip", "err", err)
		return
	}

	var g errgroup.Group
	errs := make([]error, len(peers))
	for i, p := range peers {
		i, p := i, p
		g.Go(func() error {
			errs[i] = sendGossip(p, payload)
			return nil
		})
	}
	g.Wait()

	var combined error
	reached := 0
	for _, e := range errs {
		if e != nil {
			combined = multierr.Append(combined, e)
		} else {
			reached++
		}
	}
	if combined != nil {
		logger.Warn("gossip broadcast had failures", "reached", reached, "total", len(peers), "err", combined)
	} else {
		logger.Debug("gossip broadcast complete", "reached", reached)
	}
}

func sendGossip(p Peer, payload []byte) error {
	conn, err := net.DialTimeout("tcp", p.String(), gossipDialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(gossipDialTimeout))
	return p2pmsg.WriteFrame(conn, payload)
}
