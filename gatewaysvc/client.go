package gatewaysvc

import (
	"encoding/json"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/p2pmsg"
)

// Client is the small outbound leg a mining node uses to emit a
// block-confirmation datagram to the gateway (§4.4 "On local mining
// success" step: "emit a block-confirmation datagram to the gateway").
// It satisfies node.ConfirmationSink structurally.
type Client struct {
	host    string
	port    int
	timeout time.Duration
}

// NewClient builds a Client pointed at the gateway's listen endpoint.
func NewClient(host string, port int) *Client {
	return &Client{host: host, port: port, timeout: 3 * time.Second}
}

// SendBlockConfirmation frames and sends a block_confirmation message
// (§6.2) to the gateway over a fresh connection.
func (c *Client) SendBlockConfirmation(b chaintypes.Block, nodeID string) error {
	conn, err := net.DialTimeout("tcp", addrOf(c.host, c.port), c.timeout)
	if err != nil {
		return errors.Wrap(err, "gatewaysvc client: dial")
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	msg := nodeConfirmation{
		Type:         "block_confirmation",
		BlockIndex:   b.Index,
		BlockHash:    b.CurrentHash,
		MinerID:      b.MinerID,
		NodeID:       nodeID,
		Timestamp:    b.Timestamp,
		Transactions: b.Transactions,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "gatewaysvc client: marshal")
	}
	// The gateway's single listener always reads one length-prefixed frame
	// per connection regardless of message family (§6.1), so a
	// block_confirmation datagram uses the same framing as client
	// submissions.
	return errors.Wrap(p2pmsg.WriteFrame(conn, data), "gatewaysvc client: send")
}
