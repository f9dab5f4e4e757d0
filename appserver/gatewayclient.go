package appserver

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/p2pmsg"
)

// gatewayClient is the submission worker's synchronous leg to the gateway
// (§4.6 "frames a submit_purchase message to the gateway over TCP, awaits
// the reply").
type gatewayClient struct {
	host    string
	port    int
	timeout time.Duration
}

func newGatewayClient(host string, port int, timeout time.Duration) *gatewayClient {
	return &gatewayClient{host: host, port: port, timeout: timeout}
}

type purchaseRequest struct {
	Action string      `json:"action"`
	Body   purchaseBody `json:"body"`
}

type purchaseBody struct {
	Sender    string                     `json:"sender"`
	Data      chaintypes.TransactionData `json:"data"`
	Signature string                     `json:"signature"`
}

type purchaseResponse struct {
	Status       string `json:"status"`
	NodesReached int    `json:"nodes_reached"`
	Message      string `json:"message"`
}

// submit dials the gateway, sends one submit_purchase frame, and returns its
// decoded reply. The client's call timeout (10 s in the default
// configuration, §5) bounds the whole round trip.
func (c *gatewayClient) submit(tx purchaseBody) (purchaseResponse, error) {
	var resp purchaseResponse
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", c.host, c.port), c.timeout)
	if err != nil {
		return resp, errors.Wrap(err, "appserver: dial gateway")
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	req := purchaseRequest{Action: "submit_purchase", Body: tx}
	payload, err := json.Marshal(req)
	if err != nil {
		return resp, errors.Wrap(err, "appserver: marshal submit_purchase")
	}
	if err := p2pmsg.WriteFrame(conn, payload); err != nil {
		return resp, errors.Wrap(err, "appserver: send submit_purchase")
	}

	raw, err := p2pmsg.ReadFrame(conn)
	if err != nil {
		return resp, errors.Wrap(err, "appserver: read gateway reply")
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, errors.Wrap(err, "appserver: decode gateway reply")
	}
	return resp, nil
}

// healthCheck implements the startup peer-readiness probe (SPEC_FULL §3):
// connect to the gateway and send {action: health}, purely informational.
func (c *gatewayClient) healthCheck() error {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", c.host, c.port), c.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))
	if err := p2pmsg.WriteFrame(conn, []byte(`{"action":"health"}`)); err != nil {
		return err
	}
	_, err = p2pmsg.ReadFrame(conn)
	return err
}
