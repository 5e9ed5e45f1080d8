package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed and tampered tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned once a token's deadline has passed.
	ErrTokenExpired = errors.New("token expired")
)

// SignedObject is the content of a verified download token.
type SignedObject struct {
	OwnerID   string
	Key       string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token granting temporary access to key on behalf of ownerID.
func (s *SignedURLSigner) Generate(ownerID, key string) (string, time.Time, error) {
	if ownerID == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("owner and key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	token := strings.Join([]string{ownerID, ts, encodedKey, s.sign(ownerID, ts, encodedKey)}, ".")
	return token, time.Unix(expiresAt.Unix(), 0), nil
}

// Parse validates a token and returns the object it grants access to.
func (s *SignedURLSigner) Parse(token string) (SignedObject, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return SignedObject{}, fmt.Errorf("%w: format", ErrInvalidToken)
	}
	ownerID, ts, encodedKey, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(ownerID, ts, encodedKey)), []byte(signature)) {
		return SignedObject{}, fmt.Errorf("%w: signature", ErrInvalidToken)
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return SignedObject{}, fmt.Errorf("%w: timestamp", ErrInvalidToken)
	}
	rawKey, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return SignedObject{}, fmt.Errorf("%w: key", ErrInvalidToken)
	}
	expiresAt := time.Unix(expUnix, 0)
	if s.now().After(expiresAt) {
		return SignedObject{}, ErrTokenExpired
	}
	return SignedObject{OwnerID: ownerID, Key: string(rawKey), ExpiresAt: expiresAt}, nil
}

func (s *SignedURLSigner) sign(ownerID, ts, encodedKey string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(ownerID + "|" + ts + "|" + encodedKey))
	return hex.EncodeToString(mac.Sum(nil))
}
