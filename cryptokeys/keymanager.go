// Package cryptokeys implements the per-node RSA keypair used to sign and
// verify block hashes. It is a direct Go re-expression of
// original_source/blockchain/key_manager.py's NodeKeyManager: PKCS#8 private
// key, SubjectPublicKeyInfo public key, both PEM-encoded and persisted next
// to the node's data directory, and RSA-PSS(SHA-256, max salt) signatures.
package cryptokeys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/aurex-chain/aurex/log"
)

const keyBits = 2048

var logger = log.NewModuleLogger(log.Common)

// KeyManager signs and verifies block hashes on behalf of one node identity.
type KeyManager interface {
	Sign(dataHex string) (string, error)
	PublicKeyPEM() string
}

// Manager is the concrete, file-backed KeyManager.
type Manager struct {
	priv *rsa.PrivateKey
	pub  *rsa.PublicKey
}

// Load reads an existing keypair from privPath/pubPath, generating and
// persisting a fresh RSA-2048 keypair on first use — matching the Python
// original's "generate on first boot, load on restart" behavior.
func Load(privPath, pubPath string) (*Manager, error) {
	if fileExists(privPath) && fileExists(pubPath) {
		priv, err := loadPrivate(privPath)
		if err != nil {
			return nil, errors.Wrap(err, "cryptokeys: load private key")
		}
		return &Manager{priv: priv, pub: &priv.PublicKey}, nil
	}

	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, errors.Wrap(err, "cryptokeys: generate key")
	}
	if err := persist(priv, privPath, pubPath); err != nil {
		return nil, err
	}
	logger.Info("generated new node keypair", "priv", privPath, "pub", pubPath)
	return &Manager{priv: priv, pub: &priv.PublicKey}, nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func loadPrivate(path string) (*rsa.PrivateKey, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("cryptokeys: invalid PEM in private key file")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("cryptokeys: private key is not RSA")
	}
	return rsaKey, nil
}

func persist(priv *rsa.PrivateKey, privPath, pubPath string) error {
	if err := os.MkdirAll(filepath.Dir(privPath), 0o700); err != nil {
		return errors.Wrap(err, "cryptokeys: mkdir")
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return errors.Wrap(err, "cryptokeys: marshal pkcs8")
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := ioutil.WriteFile(privPath, privPEM, 0o600); err != nil {
		return errors.Wrap(err, "cryptokeys: write private key")
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return errors.Wrap(err, "cryptokeys: marshal spki")
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return errors.Wrap(ioutil.WriteFile(pubPath, pubPEM, 0o644), "cryptokeys: write public key")
}

// Sign computes an RSA-PSS(SHA-256, MGF1-SHA-256, max salt length) signature
// over dataHex (the hex ASCII of current_hash, per §4.1) and returns it
// hex-encoded.
func (m *Manager) Sign(dataHex string) (string, error) {
	digest := sha256.Sum256([]byte(dataHex))
	sig, err := rsa.SignPSS(rand.Reader, m.priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", errors.Wrap(err, "cryptokeys: sign")
	}
	return hex.EncodeToString(sig), nil
}

// PublicKeyPEM returns this node's SPKI public key in PEM form, transported
// with every block this node mines so verifiers need no prior knowledge of
// the signer.
func (m *Manager) PublicKeyPEM() string {
	der, err := x509.MarshalPKIXPublicKey(m.pub)
	if err != nil {
		// marshaling our own already-valid public key cannot fail.
		panic(err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// VerifySignature verifies dataHex against sigHex using the RSA public key
// embedded in pemStr. It returns false on any malformed input, decoding
// error, or signature mismatch — it never returns an error, mirroring the
// Python original's static verify_signature, which swallows every
// cryptographic exception into a boolean.
func VerifySignature(pemStr, dataHex, sigHex string) bool {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return false
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return false
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(dataHex))
	err = rsa.VerifyPSS(rsaPub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	return err == nil
}
