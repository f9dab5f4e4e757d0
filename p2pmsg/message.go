package p2pmsg

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/aurex-chain/aurex/chaintypes"
)

// Kind discriminates node-to-node wire messages (§4.4's message table).
type Kind string

const (
	KindPing           Kind = "ping"
	KindNodeDiscovery  Kind = "node_discovery"
	KindNewTransaction Kind = "NEW_TRANSACTION"
	KindNewBlock       Kind = "new_block"
	KindStopMining     Kind = "STOP_MINING"
)

// envelope is the wire shape every node-to-node message shares: a "type"
// discriminator plus an opaque payload decoded according to that type.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is the decoded tagged union. Exactly one of the typed fields is
// populated, selected by Kind.
type Message struct {
	Kind Kind

	NewTransaction *NewTransactionPayload
	NewBlock       *chaintypes.Block
}

// NewTransactionPayload is the NEW_TRANSACTION message body.
type NewTransactionPayload struct {
	Sender         string                      `json:"sender"`
	Data           chaintypes.TransactionData  `json:"data"`
	Signature      string                      `json:"signature"`
	StartTimestamp string                      `json:"start_timestamp"`
}

// Decode parses a raw frame into a Message, returning ErrUnknownKind for any
// "type" this protocol does not recognize instead of silently dropping it.
func Decode(raw []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "p2pmsg: decode envelope")
	}

	switch Kind(env.Type) {
	case KindPing:
		return &Message{Kind: KindPing}, nil
	case KindNodeDiscovery:
		return &Message{Kind: KindNodeDiscovery}, nil
	case KindStopMining:
		return &Message{Kind: KindStopMining}, nil
	case KindNewTransaction:
		var p NewTransactionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, errors.Wrap(err, "p2pmsg: decode NEW_TRANSACTION")
		}
		return &Message{Kind: KindNewTransaction, NewTransaction: &p}, nil
	case KindNewBlock:
		var b chaintypes.Block
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return nil, errors.Wrap(err, "p2pmsg: decode new_block")
		}
		return &Message{Kind: KindNewBlock, NewBlock: &b}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "type=%q", env.Type)
	}
}

// EncodeNewTransaction builds the wire envelope for a NEW_TRANSACTION.
func EncodeNewTransaction(p NewTransactionPayload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: string(KindNewTransaction), Data: data})
}

// EncodeNewBlock builds the wire envelope for a new_block gossip message.
func EncodeNewBlock(b chaintypes.Block) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: string(KindNewBlock), Data: data})
}

// EncodeSimple builds the wire envelope for a payload-less message kind
// (ping, node_discovery, STOP_MINING).
func EncodeSimple(kind Kind) ([]byte, error) {
	return json.Marshal(envelope{Type: string(kind)})
}

// PongReply is the response to a ping.
type PongReply struct {
	Pong   bool   `json:"pong"`
	NodeID string `json:"node_id"`
}

// PeerInfo is one entry in a node_discovery reply.
type PeerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}
