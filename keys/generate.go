package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// Generate creates a fresh key pair for alg and returns it PEM encoded as
// PKCS#8 private key and PKIX public key.
func Generate(alg Algorithm) (privatePEM, publicPEM []byte, err error) {
	var (
		priv crypto.Signer
		pub  crypto.PublicKey
	)

	switch alg {
	case AlgorithmRS256, "":
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, nil, err
		}
		priv, pub = key, key.Public()
	case AlgorithmEdDSA:
		pk, sk, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		priv, pub = sk, pk
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, err
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}
