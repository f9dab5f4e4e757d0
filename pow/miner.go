// Package pow implements the CPU-bound nonce search used to seal one block:
// given canonical hash-input bytes and a difficulty, find the first nonce
// whose SHA-256 digest has the required number of leading hex zero
// characters. It generalizes original_source/blockchain/pow_node.py's
// _mine_puzzle loop (there gated by a plain self.is_mining flag) into a
// goroutine cancellable from any other goroutine via a one-shot atomic
// latch, matching §4.3's "process or thread, GIL-free thread suffices"
// design note.
package pow

import (
	"go.uber.org/atomic"

	"github.com/rcrowley/go-metrics"

	"github.com/aurex-chain/aurex/chaintypes"
)

var (
	attemptsCounter = metrics.NewRegisteredCounter("pow/attempts", metrics.DefaultRegistry)
	solvedCounter   = metrics.NewRegisteredCounter("pow/solved", metrics.DefaultRegistry)
)

// Result is the outcome of a completed (non-cancelled) mining run.
type Result struct {
	Nonce uint64
	Hash  string
}

// Miner runs one cancellable nonce search. It is not reusable: create a new
// Miner per mining attempt.
type Miner struct {
	stop atomic.Bool
}

// New returns a fresh, not-yet-started Miner.
func New() *Miner {
	return &Miner{}
}

// Stop sets the one-shot cancellation latch. Safe to call multiple times and
// from any goroutine; idempotent per §4.4's STOP_MINING handler contract.
func (m *Miner) Stop() {
	m.stop.Store(true)
}

// Stopped reports whether Stop has been called.
func (m *Miner) Stopped() bool {
	return m.stop.Load()
}

// SolveAsync starts Solve in its own goroutine and returns a result channel
// of capacity 1 (the "result sink" of §4.3/§5). The channel receives exactly
// one value: the Result on success, or nil if mining was cancelled. Callers
// poll or select on the channel rather than blocking the listener thread.
func (m *Miner) SolveAsync(canonical []byte, difficulty int) <-chan *Result {
	out := make(chan *Result, 1)
	go func() {
		res, ok := m.Solve(canonical, difficulty)
		if !ok {
			out <- nil
			return
		}
		out <- res
	}()
	return out
}

// Solve iterates nonce = 0, 1, 2, … computing SHA256(canonical || ascii(nonce))
// until it finds a hash with `difficulty` leading hex zero characters, or
// until Stop is called, whichever comes first. It returns (nil, false) on
// cancellation, observing the stop latch every iteration so cancellation
// latency is bounded by one hash computation (§5).
func (m *Miner) Solve(canonical []byte, difficulty int) (*Result, bool) {
	for nonce := uint64(0); ; nonce++ {
		if m.stop.Load() {
			return nil, false
		}
		attemptsCounter.Inc(1)
		hash := chaintypes.HashWithNonce(canonical, nonce)
		if chaintypes.MeetsDifficulty(hash, difficulty) {
			solvedCounter.Inc(1)
			return &Result{Nonce: nonce, Hash: hash}, true
		}
	}
}
