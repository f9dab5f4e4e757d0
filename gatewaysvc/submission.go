package gatewaysvc

import (
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/p2pmsg"
)

// submitBody is the body of a submit_purchase / submit_transaction request.
type submitBody struct {
	Sender    string                     `json:"sender"`
	Data      chaintypes.TransactionData `json:"data"`
	Signature string                     `json:"signature"`
}

// submitResponse is the gateway's reply to a client submission (§4.5).
type submitResponse struct {
	Status       string `json:"status"`
	NodesReached int    `json:"nodes_reached"`
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
	Transaction  interface{} `json:"transaction,omitempty"`
}

func (g *Gateway) handleClientRequest(conn net.Conn, req clientRequest) {
	switch req.Action {
	case "health":
		resp, _ := encodeJSON(map[string]string{"status": "ok", "service": "gateway"})
		p2pmsg.WriteFrame(conn, resp)

	case "submit_purchase", "submit_transaction":
		var body submitBody
		decodeJSON(req.Body, &body)
		resp := g.fanOutTransaction(body)
		data, _ := encodeJSON(resp)
		p2pmsg.WriteFrame(conn, data)

	default:
		resp, _ := encodeJSON(submitResponse{Status: "failed", Message: "unknown action"})
		p2pmsg.WriteFrame(conn, resp)
	}
}

// fanOutTransaction constructs the NEW_TRANSACTION wire message and
// connect-send-closes it to every configured node, counting successes —
// §4.5's client-submission contract, generalizing
// gateway_server.py's broadcast_transaction().
func (g *Gateway) fanOutTransaction(body submitBody) submitResponse {
	startTS := chaintypes.NowISO8601()
	payload, err := p2pmsg.EncodeNewTransaction(p2pmsg.NewTransactionPayload{
		Sender:         body.Sender,
		Data:           body.Data,
		Signature:      body.Signature,
		StartTimestamp: startTS,
	})
	if err != nil {
		return submitResponse{Status: "failed", Message: "encode error: " + err.Error(), Timestamp: startTS}
	}

	timeout := g.cfg.FanoutTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	var g2 errgroup.Group
	results := make([]bool, len(g.cfg.NodePorts))
	for i, port := range g.cfg.NodePorts {
		i, port := i, port
		g2.Go(func() error {
			results[i] = dialSendClose(g.cfg.NodeHost, port, payload, timeout)
			return nil
		})
	}
	g2.Wait()

	reached := 0
	for _, ok := range results {
		if ok {
			reached++
		}
	}

	status := "failed"
	message := "no nodes reachable"
	if reached > 0 {
		status = "submitted"
		message = "transaction broadcast"
	}

	return submitResponse{
		Status:       status,
		NodesReached: reached,
		Message:      message,
		Timestamp:    startTS,
		Transaction:  body,
	}
}

func dialSendClose(host string, port int, payload []byte, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addrOf(host, port), timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))
	return p2pmsg.WriteFrame(conn, payload) == nil
}
