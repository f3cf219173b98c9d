package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Token lifetime and used-set retention. The eviction horizon is far larger
// than the freshness window so replay protection stays correct while memory
// stays bounded.
const (
	Freshness  = 20 * time.Second
	usedRetain = 5 * time.Minute
	nonceSize  = 16
	gcmTagSize = 16
)

var nowFunc = time.Now

// Status is the redemption outcome. Exactly one is returned per attempt;
// the HTTP boundary collapses all failures to one generic response.
type Status int

const (
	StatusOK Status = iota
	StatusInvalid
	StatusExpired
	StatusReplayed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalid:
		return "invalid"
	case StatusExpired:
		return "expired"
	case StatusReplayed:
		return "replayed"
	}
	return "unknown"
}

// payload is the encrypted token body.
type payload struct {
	RealURL   string `json:"realUrl"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
}

// Service mints and redeems single-use redirect tokens. The cipher key is
// a SHA-256 digest of the configured secret; the secret is a high-entropy
// config value, not a user password, so no slow KDF is involved.
type Service struct {
	aead cipher.AEAD
	used *gocache.Cache
}

func NewService(secret string) (*Service, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		aead: aead,
		used: gocache.New(usedRetain, time.Minute),
	}, nil
}

// Issue encrypts a fresh payload for the destination URL. The inbound
// request's query string is re-appended so tracking parameters survive the
// token hop.
func (s *Service) Issue(destinationURL, rawQuery string) (string, error) {
	dest := strings.TrimSuffix(destinationURL, "?")
	if rawQuery != "" {
		dest += "?" + rawQuery
	}
	p := payload{
		RealURL:   dest,
		SessionID: uuid.NewString(),
		Timestamp: nowFunc().UnixMilli(),
	}
	plaintext, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return s.seal(plaintext)
}

// Redeem validates a token and marks it used. Order matters: replayed
// tokens are rejected before any crypto work, and marking used is the last,
// atomic step so concurrent redemptions of one token produce exactly one
// winner.
func (s *Service) Redeem(tok string) (string, Status) {
	if _, found := s.used.Get(tok); found {
		return "", StatusReplayed
	}

	plaintext, err := s.open(tok)
	if err != nil {
		return "", StatusInvalid
	}
	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return "", StatusInvalid
	}

	if nowFunc().UnixMilli()-p.Timestamp > Freshness.Milliseconds() {
		return "", StatusExpired
	}

	if err := s.used.Add(tok, struct{}{}, usedRetain); err != nil {
		return "", StatusReplayed
	}
	return p.RealURL, StatusOK
}

// seal produces base64url(nonce || tag || ciphertext). Any bit flip in the
// encoded form makes open fail closed.
func (s *Service) seal(plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nil, nonce, plaintext, nil)
	if len(sealed) < gcmTagSize {
		return "", errors.New("short ciphertext")
	}
	ct := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	out := make([]byte, 0, nonceSize+gcmTagSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *Service) open(tok string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return nil, err
	}
	if len(data) < nonceSize+gcmTagSize {
		return nil, errors.New("token too short")
	}
	nonce := data[:nonceSize]
	tag := data[nonceSize : nonceSize+gcmTagSize]
	ct := data[nonceSize+gcmTagSize:]

	sealed := make([]byte, 0, len(ct)+gcmTagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	return s.aead.Open(nil, nonce, sealed, nil)
}
