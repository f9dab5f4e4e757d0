package node

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	lru "github.com/hashicorp/golang-lru"
)

// pubKeyCache keeps parsed RSA public keys keyed by the miner's
// PEM-transported public key text (§3: "public_key_pem: miner's RSA public
// key ... transported with the block"). validateBlock uses it to reject a
// malformed public_key_pem, and a cache hit skips re-parsing for that check.
// The signature check itself goes through cryptokeys.VerifySignature, which
// parses the PEM again on every block; the cached key is not used there.
// This is the one place this node package's go.mod entry for
// hashicorp/golang-lru is exercised.
type pubKeyCache struct {
	cache *lru.Cache
}

const pubKeyCacheSize = 256

func newPubKeyCache() *pubKeyCache {
	c, err := lru.New(pubKeyCacheSize)
	if err != nil {
		// lru.New only fails for a non-positive size, which pubKeyCacheSize
		// never is.
		panic(err)
	}
	return &pubKeyCache{cache: c}
}

// Parse returns the *rsa.PublicKey for pemStr, serving from cache when
// possible. A cache hit or miss never changes validation semantics: a
// malformed PEM or non-RSA key still yields (nil, false) every time.
func (c *pubKeyCache) Parse(pemStr string) (*rsa.PublicKey, bool) {
	if v, ok := c.cache.Get(pemStr); ok {
		key, ok := v.(*rsa.PublicKey)
		return key, ok
	}

	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, false
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, false
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, false
	}
	c.cache.Add(pemStr, rsaKey)
	return rsaKey, true
}
