package node

import (
	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/pow"
)

// ensureMining starts a miner over the mempool head if one isn't already
// running — the "mining start policy" of §4.4: only the head transaction is
// included, one transaction sealed per block.
func (n *Node) ensureMining() {
	n.mu.Lock()
	if n.activeMiner != nil {
		n.mu.Unlock()
		return
	}
	head, ok := n.mempool.Peek()
	if !ok {
		n.mu.Unlock()
		return
	}

	miner := pow.New()
	n.activeMiner = miner
	lastHash := n.lastHash
	nextIndex := uint64(n.lastIndex + 1)
	n.mu.Unlock()

	timestamp := chaintypes.NowISO8601()
	canonical := chaintypes.CanonicalBytes(lastHash, timestamp, nextIndex, head)
	resultCh := miner.SolveAsync(canonical, n.cfg.Difficulty)

	go n.awaitMiningResult(miner, resultCh, lastHash, timestamp, nextIndex, head)
}

// stopMining cancels whatever miner is currently running. Idempotent: a
// Stop on an already-stopped or absent miner is a no-op, matching §4.4's
// STOP_MINING contract.
func (n *Node) stopMining() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.activeMiner != nil {
		n.activeMiner.Stop()
	}
}

func (n *Node) awaitMiningResult(miner *pow.Miner, resultCh <-chan *pow.Result, prevHash, timestamp string, index uint64, head chaintypes.MempoolEntry) {
	res := <-resultCh

	n.mu.Lock()
	// Only clear activeMiner if it's still the one we started — a newer
	// miner may already have replaced it after a STOP_MINING + restart race.
	if n.activeMiner == miner {
		n.activeMiner = nil
	}
	n.mu.Unlock()

	if res == nil {
		// cancelled: a peer's block for this index already landed.
		return
	}

	n.completeLocalMining(prevHash, timestamp, index, head, res)
}

// completeLocalMining implements §4.4's "On local mining success" sequence:
// sign, append locally, update tip, broadcast, emit confirmation, pop
// mempool head, maybe start the next miner. A local DB write failure aborts
// before any broadcast and leaves the chain tip unchanged (§4.4 failure
// semantics).
func (n *Node) completeLocalMining(prevHash, timestamp string, index uint64, head chaintypes.MempoolEntry, res *pow.Result) {
	sig, err := n.keys.Sign(res.Hash)
	if err != nil {
		logger.Error("failed to sign sealed block, discarding", "err", err)
		return
	}

	block := chaintypes.Block{
		Index:        index,
		Timestamp:    timestamp,
		PrevHash:     prevHash,
		CurrentHash:  res.Hash,
		Nonce:        res.Nonce,
		MinerID:      n.nodeID,
		Signature:    sig,
		PublicKeyPEM: n.keys.PublicKeyPEM(),
		Transactions: []chaintypes.Transaction{{
			TxID:           head.Data.TxID,
			Sender:         head.Sender,
			Data:           head.Data,
			Signature:      head.Signature,
			StartTimestamp: head.StartTimestamp,
			EndTimestamp:   timestamp,
		}},
	}

	if err := n.ledger.AppendBlock(block); err != nil {
		logger.Error("failed to persist locally-mined block, dropping it", "index", index, "err", err)
		return
	}

	n.mu.Lock()
	n.lastIndex = int64(block.Index)
	n.lastHash = block.CurrentHash
	n.mu.Unlock()

	logger.Info("sealed block", "index", block.Index, "hash", block.CurrentHash, "nonce", block.Nonce)

	n.broadcastBlock(block)

	if n.confirm != nil {
		if err := n.confirm.SendBlockConfirmation(block, n.nodeID); err != nil {
			logger.Warn("failed to emit block confirmation", "err", err)
		}
	}

	n.mempool.Pop()
	n.ensureMining()
}

// handleNewBlock implements §4.4's new_block handler: validate, and on
// success append + cancel local mining; on failure, drop silently.
func (n *Node) handleNewBlock(b chaintypes.Block) {
	n.mu.Lock()
	lastIndex := n.lastIndex
	lastHash := n.lastHash
	n.mu.Unlock()

	if err := validateBlock(b, n.cfg.Difficulty, lastIndex, lastHash, n.pkCache); err != nil {
		logger.Info("rejected incoming block", "err", err)
		return
	}

	if err := n.ledger.AppendBlock(b); err != nil {
		logger.Info("failed to append validated incoming block", "err", err)
		return
	}

	n.mu.Lock()
	n.lastIndex = int64(b.Index)
	n.lastHash = b.CurrentHash
	if n.activeMiner != nil {
		n.activeMiner.Stop()
	}
	n.mu.Unlock()

	logger.Info("accepted peer block", "index", b.Index, "hash", b.CurrentHash, "miner_id", b.MinerID)

	// the losing transaction's head entry is implicitly dropped: a fresh
	// miner, if the mempool still has work, starts over the new tip.
	n.mempool.Pop()
	n.ensureMining()
}
