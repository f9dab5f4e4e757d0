package cryptokeys

import (
	"path/filepath"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mgr, err := Load(filepath.Join(dir, "priv.pem"), filepath.Join(dir, "pub.pem"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	sig, err := mgr.Sign("deadbeef")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !VerifySignature(mgr.PublicKeyPEM(), "deadbeef", sig) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	dir := t.TempDir()
	mgr, err := Load(filepath.Join(dir, "priv.pem"), filepath.Join(dir, "pub.pem"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sig, err := mgr.Sign("deadbeef")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tampered := []byte(sig)
	tampered[0] ^= 0xff
	if VerifySignature(mgr.PublicKeyPEM(), "deadbeef", string(tampered)) {
		t.Fatal("tampered signature must not verify")
	}
}

func TestVerifyRejectsMalformedPEM(t *testing.T) {
	if VerifySignature("not a pem", "deadbeef", "00") {
		t.Fatal("malformed PEM must return false, not panic or error")
	}
}

func TestLoadPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "priv.pem")
	pubPath := filepath.Join(dir, "pub.pem")

	first, err := Load(privPath, pubPath)
	if err != nil {
		t.Fatalf("first Load: %v", err)
	}
	second, err := Load(privPath, pubPath)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if first.PublicKeyPEM() != second.PublicKeyPEM() {
		t.Fatal("restart must reload the same keypair, not mint a new one")
	}
}
