package node

import (
	"fmt"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/cryptokeys"
)

// ValidationError names which validation step rejected an inbound block,
// used only for logging — rejected blocks are dropped silently on the wire
// per §4.4's failure semantics, never NACK'd.
type ValidationError struct {
	Step   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("block rejected at %s: %s", e.Step, e.Reason)
}

// validateBlock runs the five-step order mandated by §4.4, returning on the
// first failure:
//  1. required fields present (public_key_pem in particular)
//  2. PoW prefix check (I2)
//  3. signature verification (I3)
//  4. chain link check (I1)
//  5. hash recomputation (I4) — the spec's mandated strengthening over the
//     source, which validated prefix+signature but never rebound the hash
//     to its claimed inputs.
func validateBlock(b chaintypes.Block, difficulty int, lastIndex int64, lastHash string, pkCache *pubKeyCache) error {
	if b.PublicKeyPEM == "" || b.CurrentHash == "" || b.Signature == "" {
		return &ValidationError{"required_fields", "missing public_key_pem, current_hash, or signature"}
	}

	if !chaintypes.MeetsDifficulty(b.CurrentHash, difficulty) {
		return &ValidationError{"difficulty", fmt.Sprintf("hash %s lacks %d leading zeros", b.CurrentHash, difficulty)}
	}

	if _, ok := pkCache.Parse(b.PublicKeyPEM); !ok {
		return &ValidationError{"signature", "malformed public_key_pem"}
	}
	if !cryptokeys.VerifySignature(b.PublicKeyPEM, b.CurrentHash, b.Signature) {
		return &ValidationError{"signature", "signature does not verify against current_hash"}
	}

	wantIndex := uint64(lastIndex + 1)
	if b.Index != wantIndex || b.PrevHash != lastHash {
		return &ValidationError{"chain_link", fmt.Sprintf("index %d expected %d (or prev_hash mismatch)", b.Index, wantIndex)}
	}

	if len(b.Transactions) == 0 {
		return &ValidationError{"required_fields", "block carries no transactions"}
	}
	head := b.Transactions[0]
	canonical := chaintypes.CanonicalBytes(b.PrevHash, b.Timestamp, b.Index, chaintypes.MempoolEntry{
		Sender:         head.Sender,
		Data:           head.Data,
		Signature:      head.Signature,
		StartTimestamp: head.StartTimestamp,
	})
	recomputed := chaintypes.HashWithNonce(canonical, b.Nonce)
	if recomputed != b.CurrentHash {
		return &ValidationError{"hash_binding", fmt.Sprintf("recomputed %s != claimed %s", recomputed, b.CurrentHash)}
	}

	return nil
}
