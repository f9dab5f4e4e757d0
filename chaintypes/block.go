// Package chaintypes defines the Block and Transaction data model shared by
// the miner, the node's validator, the ledger store and the wire protocol,
// along with the canonical serialization used as PoW hash input. It plays
// the role klaytn's blockchain/types package plays for that tree, but the
// model here is the flat purchase-anchoring block described by the ledger
// schema rather than an EVM block.
package chaintypes

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// GenesisHash is the 64-zero-char prev_hash used for the first block on any
// ledger, and the sentinel current_hash a fresh ledger reports as its tip.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Transaction is one purchase moving through the chain.
type Transaction struct {
	TxID           string          `json:"tx_id"`
	Sender         string          `json:"sender"`
	Data           TransactionData `json:"data"`
	Signature      string          `json:"signature"`
	StartTimestamp string          `json:"start_timestamp"`
	EndTimestamp   string          `json:"end_timestamp,omitempty"`
}

// TransactionData is the structured purchase payload.
type TransactionData struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    float64 `json:"amount"`
	AssetID   string  `json:"asset_id"`
	AssetName string  `json:"asset_name"`
	TxID      string  `json:"tx_id"`
}

// Block is one sealed unit of the chain.
type Block struct {
	Index         uint64        `json:"index"`
	Timestamp     string        `json:"timestamp"`
	PrevHash      string        `json:"prev_hash"`
	CurrentHash   string        `json:"current_hash"`
	Nonce         uint64        `json:"nonce"`
	MinerID       string        `json:"miner_id"`
	Signature     string        `json:"signature"`
	PublicKeyPEM  string        `json:"public_key_pem"`
	Transactions  []Transaction `json:"transactions"`
}

// canonicalFields is the shape hashed for PoW and signature binding: exactly
// {prev_hash, timestamp, index, tx}, key-sorted, with tx reduced to the head
// transaction's mempool-visible fields — one transaction is sealed per block.
type canonicalFields struct {
	Index     uint64          `json:"index"`
	PrevHash  string          `json:"prev_hash"`
	Timestamp string          `json:"timestamp"`
	Tx        MempoolEntry    `json:"tx"`
}

// MempoolEntry is the not-yet-sealed transaction shape carried in the
// mempool and embedded in the canonical hash input.
type MempoolEntry struct {
	Sender         string          `json:"sender"`
	Data           TransactionData `json:"data"`
	Signature      string          `json:"signature"`
	StartTimestamp string          `json:"start_timestamp"`
}

// CanonicalBytes produces the deterministic, key-sorted JSON encoding used as
// PoW and signature hash input. Two calls with logically equal inputs always
// produce byte-identical output: the struct is encoded by Go's json encoder
// and the result is then re-encoded by sortedKeysJSON with every object's
// keys sorted, so the output order does not depend on struct field order.
func CanonicalBytes(prevHash, timestamp string, index uint64, tx MempoolEntry) []byte {
	cf := canonicalFields{Index: index, PrevHash: prevHash, Timestamp: timestamp, Tx: tx}
	buf, err := json.Marshal(cf)
	if err != nil {
		// canonicalFields is built entirely from this package's own
		// string/number/struct types; Marshal cannot fail on it.
		panic(err)
	}
	return sortedKeysJSON(buf)
}

// sortedKeysJSON re-encodes a JSON object with every object's keys sorted,
// guarding against a future canonicalFields field reorder silently breaking
// hash compatibility.
func sortedKeysJSON(in []byte) []byte {
	var generic interface{}
	if err := json.Unmarshal(in, &generic); err != nil {
		return in
	}
	out, err := json.Marshal(sortKeys(generic))
	if err != nil {
		return in
	}
	return out
}

func sortKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, kv{k, sortKeys(t[k])})
		}
		return ordered
	case []interface{}:
		for i := range t {
			t[i] = sortKeys(t[i])
		}
		return t
	default:
		return t
	}
}

type kv struct {
	Key string
	Val interface{}
}
type orderedMap []kv

func (o orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pair := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(pair.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(pair.Val)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// HashWithNonce computes SHA256(canonical || ascii(nonce)) and returns the
// hex digest — the function both the miner and the node's validator
// (invariant I4) must agree on byte-for-byte.
func HashWithNonce(canonical []byte, nonce uint64) string {
	h := sha256.New()
	h.Write(canonical)
	h.Write([]byte(uintToASCII(nonce)))
	return hex.EncodeToString(h.Sum(nil))
}

func uintToASCII(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// MeetsDifficulty reports whether hexHash has at least `difficulty` leading
// hex '0' characters (I2: a prefix check, never a numeric comparison).
func MeetsDifficulty(hexHash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(hexHash) < difficulty {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if hexHash[i] != '0' {
			return false
		}
	}
	return true
}

// NowISO8601 returns the current UTC instant in the advisory, non-consensus
// timestamp format blocks and transactions carry.
func NowISO8601() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
