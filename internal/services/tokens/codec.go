package tokens

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/Merdeus/dndinventory/internal/model"
)

// DefaultCredentialTTL is how long a resume credential stays valid
const DefaultCredentialTTL = 8 * time.Hour

// Scope used when deriving command tokens
const ScopeCommand = "command"

// Subkey labels. Each purpose gets its own key derived from the secret.
const (
	labelDerive = "dndinv/derive"
	labelSign   = "dndinv/sign"
	labelSeal   = "dndinv/seal"
)

var errEmptySecret = errors.New("token secret must not be empty")

// ResumeClaims is the payload of a resume credential
type ResumeClaims struct {
	GameID   model.GameID   `json:"gameId"`
	PlayerID model.PlayerID `json:"playerId"`
	IsDM     bool           `json:"isDM"`
	jwt.RegisteredClaims
}

// Codec derives opaque tokens and seals resume credentials with a single
// process-wide secret. It holds no mutable state and is safe for concurrent
// use.
type Codec struct {
	deriveKey []byte
	signKey   []byte
	aead      cipher.AEAD
	ttl       time.Duration
}

// New creates a Codec from secret. ttl <= 0 uses DefaultCredentialTTL.
func New(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}

	sealKey := subkey(secret, labelSeal, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(sealKey)
	if err != nil {
		return nil, fmt.Errorf("creating credential cipher: %w", err)
	}

	return &Codec{
		deriveKey: subkey(secret, labelDerive, 32),
		signKey:   subkey(secret, labelSign, 32),
		aead:      aead,
		ttl:       ttl,
	}, nil
}

// TTL returns the credential validity window
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Derive returns the hex keyed hash of (subject, scope, address)
func (c *Codec) Derive(subject, scope, address string) string {
	h, _ := blake2b.New256(c.deriveKey)
	for _, field := range []string{subject, scope, address} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(field)))
		h.Write(n[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether token was derived from (subject, scope, address)
func (c *Codec) Verify(token, subject, scope, address string) bool {
	want := c.Derive(subject, scope, address)
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}

// CommandToken builds the token a connection presents on the command
// endpoint: "<clientId>.<mac>"
func (c *Codec) CommandToken(clientID int64, address string) string {
	id := strconv.FormatInt(clientID, 10)
	return id + "." + c.Derive(id, ScopeCommand, address)
}

// ParseCommandToken checks a command token against address and returns the
// client id it names.
func (c *Codec) ParseCommandToken(token, address string) (int64, error) {
	id, mac, ok := strings.Cut(token, ".")
	if !ok || id == "" || mac == "" {
		return 0, model.ErrInvalidOrExpiredToken
	}
	clientID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, model.ErrInvalidOrExpiredToken
	}
	if !c.Verify(mac, id, ScopeCommand, address) {
		return 0, model.ErrInvalidOrExpiredToken
	}
	return clientID, nil
}

// SealCredential signs claims as a JWT, stamping iat and exp from now, and
// encrypts the result.
func (c *Codec) SealCredential(claims ResumeClaims, now time.Time) (string, error) {
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signKey)
	if err != nil {
		return "", fmt.Errorf("signing credential: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(signed)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(signed), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// OpenCredential decrypts and validates a credential at time now. Every
// failure is reported as ErrInvalidOrExpiredToken.
func (c *Codec) OpenCredential(credential string, now time.Time) (*ResumeClaims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(credential)
	if err != nil || len(raw) < c.aead.NonceSize() {
		return nil, model.ErrInvalidOrExpiredToken
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, model.ErrInvalidOrExpiredToken
	}

	claims := &ResumeClaims{}
	_, err = jwt.ParseWithClaims(string(plain), claims,
		func(t *jwt.Token) (any, error) { return c.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, model.ErrInvalidOrExpiredToken
	}
	return claims, nil
}

func subkey(secret []byte, label string, size int) []byte {
	h, _ := blake2b.New(size, secret[:min(len(secret), blake2b.Size)])
	h.Write([]byte(label))
	h.Write(secret)
	return h.Sum(nil)
}
