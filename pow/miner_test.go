package pow

import (
	"testing"
	"time"

	"github.com/aurex-chain/aurex/chaintypes"
)

func TestSolveFindsValidNonce(t *testing.T) {
	m := New()
	canonical := chaintypes.CanonicalBytes(chaintypes.GenesisHash, "2026-01-01T00:00:00Z", 0, chaintypes.MempoolEntry{})
	res, ok := m.Solve(canonical, 1)
	if !ok {
		t.Fatal("expected Solve to find a nonce at difficulty 1")
	}
	if !chaintypes.MeetsDifficulty(res.Hash, 1) {
		t.Fatalf("returned hash %s does not meet difficulty 1", res.Hash)
	}
	if got := chaintypes.HashWithNonce(canonical, res.Nonce); got != res.Hash {
		t.Fatalf("hash does not match recomputation: %s != %s", got, res.Hash)
	}
}

func TestDifficultyZeroWinsImmediately(t *testing.T) {
	m := New()
	canonical := []byte("anything")
	res, ok := m.Solve(canonical, 0)
	if !ok || res.Nonce != 0 {
		t.Fatalf("difficulty 0 must win at nonce 0, got nonce=%d ok=%v", res.Nonce, ok)
	}
}

func TestStopCancelsSolveAsync(t *testing.T) {
	m := New()
	canonical := []byte("unsolvable-at-high-difficulty")
	out := m.SolveAsync(canonical, 64)
	m.Stop()
	select {
	case res := <-out:
		if res != nil {
			t.Fatalf("expected cancellation (nil), got result %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not cancel mining within timeout")
	}
}
