// Package auth provides Kalshi API authentication using RSA-PSS signatures.
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
	"os"
	"time"
)

// Credentials holds the API key and private key for signing requests.
// A watcher holds its own Credentials for its lifetime only; call Zero
// once they are no longer needed.
type Credentials struct {
	KeyID      string          // API key ID from Kalshi dashboard
	PrivateKey *rsa.PrivateKey // RSA private key for signing
}

// NewCredentials builds credentials from a key ID and PEM-encoded private
// key material, as returned by the credential store.
func NewCredentials(keyID string, privateKeyPEM []byte) (*Credentials, error) {
	if keyID == "" {
		return nil, fmt.Errorf("API key ID is required")
	}

	privateKey, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Credentials{
		KeyID:      keyID,
		PrivateKey: privateKey,
	}, nil
}

// LoadCredentials loads credentials from a key ID and a private key file.
func LoadCredentials(keyID, privateKeyPath string) (*Credentials, error) {
	if keyID == "" {
		return nil, fmt.Errorf("API key ID is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	privateKey, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Credentials{
		KeyID:      keyID,
		PrivateKey: privateKey,
	}, nil
}

// LoadPrivateKey loads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParsePrivateKey(data)
}

// ParsePrivateKey parses an RSA private key from PEM bytes.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	// Try PKCS#8 first (newer format)
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	// Fall back to PKCS#1 (older format)
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return rsaKey, nil
}

// Zero discards the key material. The credentials are unusable afterwards.
func (c *Credentials) Zero() {
	c.KeyID = ""
	c.PrivateKey = nil
}

// SignRequest generates authentication headers for a Kalshi API request.
// For WebSocket connections, method should be "GET" and path should be
// "/trade-api/ws/v2". A non-empty body is included in the signed message
// as its SHA-256 hash.
func (c *Credentials) SignRequest(method, path string, body []byte) (headers map[string]string, err error) {
	timestampMs := time.Now().UnixMilli()

	signature, err := c.generateSignature(timestampMs, method, path, body)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"KALSHI-ACCESS-KEY":       c.KeyID,
		"KALSHI-ACCESS-TIMESTAMP": fmt.Sprintf("%d", timestampMs),
		"KALSHI-ACCESS-SIGNATURE": signature,
	}, nil
}

// generateSignature creates an RSA-PSS signature for the given request.
// Message format: timestamp_ms + method + path [+ hex(sha256(body))]
func (c *Credentials) generateSignature(timestampMs int64, method, path string, body []byte) (string, error) {
	if c.PrivateKey == nil {
		return "", fmt.Errorf("credentials have no private key")
	}

	message := fmt.Sprintf("%d%s%s", timestampMs, method, path)
	if len(body) > 0 {
		bodyHash := sha256.Sum256(body)
		message += fmt.Sprintf("%x", bodyHash)
	}

	// Hash the message with SHA-256
	hashed := sha256.Sum256([]byte(message))

	// Sign with RSA-PSS
	signature, err := rsa.SignPSS(
		rand.Reader,
		c.PrivateKey,
		crypto.SHA256,
		hashed[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash},
	)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}

// WebSocketPath is the path used for WebSocket signature generation.
const WebSocketPath = "/trade-api/ws/v2"

// SignWebSocket generates authentication headers specifically for WebSocket connections.
func (c *Credentials) SignWebSocket() (headers map[string]string, err error) {
	return c.SignRequest("GET", WebSocketPath, nil)
}
