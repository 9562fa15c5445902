package tokens

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Merdeus/dndinventory/internal/model"
)

type CodecSuite struct {
	suite.Suite
	codec *Codec
	now   time.Time
}

func TestCodecSuite(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

func (s *CodecSuite) SetupTest() {
	codec, err := New([]byte("a-secret-for-tests"), 0)
	s.Require().NoError(err)
	s.codec = codec
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *CodecSuite) TestNewRejectsEmptySecret() {
	_, err := New(nil, time.Hour)
	s.Error(err)
}

func (s *CodecSuite) TestDefaultTTL() {
	s.Equal(DefaultCredentialTTL, s.codec.TTL())
}

// Derive tests

func (s *CodecSuite) TestDeriveIsDeterministic() {
	a := s.codec.Derive("1:2", "nonce", "10.0.0.1")
	b := s.codec.Derive("1:2", "nonce", "10.0.0.1")
	s.Equal(a, b)
	s.Len(a, 64)
}

func (s *CodecSuite) TestDeriveDependsOnEveryField() {
	base := s.codec.Derive("1:2", "nonce", "10.0.0.1")
	s.NotEqual(base, s.codec.Derive("1:3", "nonce", "10.0.0.1"))
	s.NotEqual(base, s.codec.Derive("1:2", "other", "10.0.0.1"))
	s.NotEqual(base, s.codec.Derive("1:2", "nonce", "10.0.0.2"))
}

func (s *CodecSuite) TestDeriveFieldBoundariesMatter() {
	s.NotEqual(
		s.codec.Derive("ab", "c", "x"),
		s.codec.Derive("a", "bc", "x"),
	)
}

func (s *CodecSuite) TestDeriveDependsOnSecret() {
	other, err := New([]byte("another-secret"), 0)
	s.Require().NoError(err)
	s.NotEqual(s.codec.Derive("s", "c", "a"), other.Derive("s", "c", "a"))
}

func (s *CodecSuite) TestVerify() {
	token := s.codec.Derive("s", "c", "a")
	s.True(s.codec.Verify(token, "s", "c", "a"))
	s.False(s.codec.Verify(token, "s", "c", "b"))
	s.False(s.codec.Verify("", "s", "c", "a"))
}

// Command token tests

func (s *CodecSuite) TestCommandTokenRoundTrip() {
	token := s.codec.CommandToken(42, "127.0.0.1")
	s.True(strings.HasPrefix(token, "42."))

	id, err := s.codec.ParseCommandToken(token, "127.0.0.1")
	s.Require().NoError(err)
	s.Equal(int64(42), id)
}

func (s *CodecSuite) TestCommandTokenBoundToAddress() {
	token := s.codec.CommandToken(42, "127.0.0.1")
	_, err := s.codec.ParseCommandToken(token, "10.1.1.1")
	s.ErrorIs(err, model.ErrInvalidOrExpiredToken)
}

func (s *CodecSuite) TestCommandTokenRejectsForgedID() {
	token := s.codec.CommandToken(42, "127.0.0.1")
	_, mac, _ := strings.Cut(token, ".")
	_, err := s.codec.ParseCommandToken("43."+mac, "127.0.0.1")
	s.ErrorIs(err, model.ErrInvalidOrExpiredToken)
}

func (s *CodecSuite) TestCommandTokenMalformed() {
	for _, token := range []string{"", "42", ".abc", "42.", "x.abc"} {
		_, err := s.codec.ParseCommandToken(token, "127.0.0.1")
		s.ErrorIs(err, model.ErrInvalidOrExpiredToken, token)
	}
}

// Credential tests

func (s *CodecSuite) TestCredentialRoundTrip() {
	cred, err := s.codec.SealCredential(ResumeClaims{GameID: 3, PlayerID: 7}, s.now)
	s.Require().NoError(err)

	claims, err := s.codec.OpenCredential(cred, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(model.GameID(3), claims.GameID)
	s.Equal(model.PlayerID(7), claims.PlayerID)
	s.False(claims.IsDM)
	s.True(claims.ExpiresAt.Time.Equal(s.now.Add(DefaultCredentialTTL)))
}

func (s *CodecSuite) TestCredentialCarriesDMFlag() {
	cred, err := s.codec.SealCredential(ResumeClaims{GameID: 3, PlayerID: model.DMPlayerID, IsDM: true}, s.now)
	s.Require().NoError(err)

	claims, err := s.codec.OpenCredential(cred, s.now)
	s.Require().NoError(err)
	s.True(claims.IsDM)
	s.Equal(model.DMPlayerID, claims.PlayerID)
}

func (s *CodecSuite) TestCredentialNoncesDiffer() {
	a, _ := s.codec.SealCredential(ResumeClaims{GameID: 3, PlayerID: 7}, s.now)
	b, _ := s.codec.SealCredential(ResumeClaims{GameID: 3, PlayerID: 7}, s.now)
	s.NotEqual(a, b)
}

func (s *CodecSuite) TestCredentialExpired() {
	cred, err := s.codec.SealCredential(ResumeClaims{GameID: 3, PlayerID: 7}, s.now)
	s.Require().NoError(err)

	_, err = s.codec.OpenCredential(cred, s.now.Add(DefaultCredentialTTL+time.Second))
	s.ErrorIs(err, model.ErrInvalidOrExpiredToken)
}

func (s *CodecSuite) TestCredentialTampered() {
	cred, err := s.codec.SealCredential(ResumeClaims{GameID: 3, PlayerID: 7}, s.now)
	s.Require().NoError(err)

	raw, err := base64.RawURLEncoding.DecodeString(cred)
	s.Require().NoError(err)
	raw[len(raw)/2] ^= 0x01

	_, err = s.codec.OpenCredential(base64.RawURLEncoding.EncodeToString(raw), s.now)
	s.ErrorIs(err, model.ErrInvalidOrExpiredToken)
}

func (s *CodecSuite) TestCredentialFromOtherSecret() {
	other, err := New([]byte("another-secret"), 0)
	s.Require().NoError(err)
	cred, err := other.SealCredential(ResumeClaims{GameID: 3, PlayerID: 7}, s.now)
	s.Require().NoError(err)

	_, err = s.codec.OpenCredential(cred, s.now)
	s.ErrorIs(err, model.ErrInvalidOrExpiredToken)
}

func (s *CodecSuite) TestCredentialGarbage() {
	for _, cred := range []string{"", "not base64!", "AAAA"} {
		_, err := s.codec.OpenCredential(cred, s.now)
		s.ErrorIs(err, model.ErrInvalidOrExpiredToken, cred)
	}
}
