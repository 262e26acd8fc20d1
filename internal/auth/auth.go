// Package auth signs exchange requests with RSA-PSS per the exchange's
// API-key scheme. The same headers are attached to REST calls and to the
// websocket handshake.
package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Header names expected by the exchange on every authenticated request.
const (
	HeaderAccessKey = "KALSHI-ACCESS-KEY"
	HeaderTimestamp = "KALSHI-ACCESS-TIMESTAMP"
	HeaderSignature = "KALSHI-ACCESS-SIGNATURE"
)

// Credentials holds the API key id and the RSA key that signs requests.
type Credentials struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
}

// Load reads credentials from a key id and a PEM private key file.
func Load(keyID, keyPath string) (*Credentials, error) {
	if keyID == "" {
		return nil, fmt.Errorf("api key id is required")
	}
	if keyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	key, err := LoadPrivateKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Credentials{KeyID: keyID, PrivateKey: key}, nil
}

// LoadPrivateKey reads and parses an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParsePrivateKey(data)
}

// ParsePrivateKey decodes a PEM-encoded RSA private key. PKCS#8 is tried
// first, then PKCS#1 for older key files.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return rsaKey, nil
}

// Headers produces the three authentication headers for a request signed
// at the current time. Callers reconnecting a websocket must call this
// again per attempt; a signature is only valid close to its timestamp.
func (c *Credentials) Headers(method, path string) (http.Header, error) {
	return c.headersAt(time.Now().UnixMilli(), method, path)
}

func (c *Credentials) headersAt(timestampMs int64, method, path string) (http.Header, error) {
	sig, err := c.sign(timestampMs, method, path)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set(HeaderAccessKey, c.KeyID)
	h.Set(HeaderTimestamp, strconv.FormatInt(timestampMs, 10))
	h.Set(HeaderSignature, sig)
	return h, nil
}

// sign computes the RSA-PSS signature over "<timestamp_ms><METHOD><path>"
// hashed with SHA-256, salt length equal to the hash size.
func (c *Credentials) sign(timestampMs int64, method, path string) (string, error) {
	message := strconv.FormatInt(timestampMs, 10) + method + path
	hashed := sha256.Sum256([]byte(message))

	sig, err := rsa.SignPSS(rand.Reader, c.PrivateKey, crypto.SHA256, hashed[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}
