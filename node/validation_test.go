package node

import (
	"path/filepath"
	"testing"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/cryptokeys"
	"github.com/aurex-chain/aurex/pow"
)

func sealedBlock(t *testing.T, keys *cryptokeys.Manager, index uint64, prevHash string, difficulty int) chaintypes.Block {
	t.Helper()
	tx := chaintypes.MempoolEntry{
		Sender:         "alice",
		Data:           chaintypes.TransactionData{From: "alice", To: "bob", Amount: 25, AssetID: "deer", AssetName: "Deer", TxID: "T1"},
		Signature:      "txsig",
		StartTimestamp: "2026-01-01T00:00:00Z",
	}
	timestamp := "2026-01-01T00:00:01Z"
	canonical := chaintypes.CanonicalBytes(prevHash, timestamp, index, tx)
	res, ok := pow.New().Solve(canonical, difficulty)
	if !ok {
		t.Fatal("failed to mine test block")
	}
	sig, err := keys.Sign(res.Hash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return chaintypes.Block{
		Index:        index,
		Timestamp:    timestamp,
		PrevHash:     prevHash,
		CurrentHash:  res.Hash,
		Nonce:        res.Nonce,
		MinerID:      "miner-1",
		Signature:    sig,
		PublicKeyPEM: keys.PublicKeyPEM(),
		Transactions: []chaintypes.Transaction{{
			TxID: "T1", Sender: "alice", Data: tx.Data, Signature: "txsig",
			StartTimestamp: "2026-01-01T00:00:00Z", EndTimestamp: timestamp,
		}},
	}
}

func testKeys(t *testing.T) *cryptokeys.Manager {
	t.Helper()
	dir := t.TempDir()
	k, err := cryptokeys.Load(filepath.Join(dir, "priv.pem"), filepath.Join(dir, "pub.pem"))
	if err != nil {
		t.Fatalf("cryptokeys.Load: %v", err)
	}
	return k
}

func TestValidateBlockAccepted(t *testing.T) {
	keys := testKeys(t)
	b := sealedBlock(t, keys, 0, chaintypes.GenesisHash, 1)
	if err := validateBlock(b, 1, -1, chaintypes.GenesisHash, newPubKeyCache()); err != nil {
		t.Fatalf("expected valid block to pass, got %v", err)
	}
}

func TestValidateBlockRejectsBadSignature(t *testing.T) {
	keys := testKeys(t)
	b := sealedBlock(t, keys, 0, chaintypes.GenesisHash, 1)
	sigBytes := []byte(b.Signature)
	sigBytes[0] ^= 0xff
	b.Signature = string(sigBytes)

	err := validateBlock(b, 1, -1, chaintypes.GenesisHash, newPubKeyCache())
	if err == nil {
		t.Fatal("expected tampered signature to be rejected")
	}
	ve, ok := err.(*ValidationError)
	if !ok || ve.Step != "signature" {
		t.Fatalf("expected signature validation error, got %v", err)
	}
}

func TestValidateBlockRejectsOutOfOrderIndex(t *testing.T) {
	keys := testKeys(t)
	b := sealedBlock(t, keys, 7, chaintypes.GenesisHash, 1)
	err := validateBlock(b, 1, 5, "sometip", newPubKeyCache())
	if err == nil {
		t.Fatal("expected out-of-order index to be rejected")
	}
	ve, ok := err.(*ValidationError)
	if !ok || ve.Step != "chain_link" {
		t.Fatalf("expected chain_link validation error, got %v", err)
	}
}

func TestValidateBlockRejectsBadHashBinding(t *testing.T) {
	keys := testKeys(t)
	b := sealedBlock(t, keys, 0, chaintypes.GenesisHash, 1)
	b.Nonce = b.Nonce + 1 // hash no longer matches recomputation
	err := validateBlock(b, 1, -1, chaintypes.GenesisHash, newPubKeyCache())
	if err == nil {
		t.Fatal("expected hash-binding mismatch to be rejected")
	}
}
