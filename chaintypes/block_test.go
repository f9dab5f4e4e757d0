package chaintypes

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func TestCanonicalBytesDeterministic(t *testing.T) {
	tx := MempoolEntry{
		Sender:         "alice",
		Data:           TransactionData{From: "alice", To: "bob", Amount: 25, AssetID: "deer", AssetName: "Deer", TxID: "T1"},
		Signature:      "sig",
		StartTimestamp: "2026-01-01T00:00:00Z",
	}
	a := CanonicalBytes(GenesisHash, "2026-01-01T00:00:00Z", 0, tx)
	b := CanonicalBytes(GenesisHash, "2026-01-01T00:00:00Z", 0, tx)
	if string(a) != string(b) {
		t.Fatalf("canonical encoding is not deterministic for %s: %s != %s", spew.Sdump(tx), a, b)
	}
}

func TestHashWithNonceStable(t *testing.T) {
	canon := []byte(`{"index":0}`)
	h1 := HashWithNonce(canon, 42)
	h2 := HashWithNonce(canon, 42)
	if h1 != h2 {
		t.Fatalf("hash not stable for same input: %s != %s", h1, h2)
	}
	if h3 := HashWithNonce(canon, 43); h3 == h1 {
		t.Fatalf("different nonce produced same hash")
	}
}

func TestMeetsDifficulty(t *testing.T) {
	cases := []struct {
		hash string
		diff int
		want bool
	}{
		{"00abc", 2, true},
		{"0abc", 2, false},
		{"abc", 0, true},
		{"", 1, false},
	}
	for _, c := range cases {
		if got := MeetsDifficulty(c.hash, c.diff); got != c.want {
			t.Errorf("MeetsDifficulty(%q, %d) = %v, want %v", c.hash, c.diff, got, c.want)
		}
	}
}

func TestGenesisHashLength(t *testing.T) {
	if len(GenesisHash) != 64 {
		t.Fatalf("genesis hash must be 64 hex chars, got %d", len(GenesisHash))
	}
}
