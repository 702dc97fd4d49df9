package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/domain"
)

// ErrInvalid is returned for any token that fails verification. Callers do
// not need to distinguish a bad signature from a malformed or expired token.
var ErrInvalid = errors.New("invalid token")

// SessionClaims is the custom JWT payload carried next to the standard
// claim set.
type SessionClaims struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	ExternalID string `json:"external_id"`
}

// Signer mints and validates HS256 session tokens with a single
// process-wide secret loaded once at startup.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner constructs a Signer. An empty secret is accepted so the process
// can still boot in misconfigured environments; callers are expected to warn.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Signer{secret: secret, ttl: ttl}
}

// Issue produces a signed session token for the user, valid from now until
// now plus the configured validity window.
func (s *Signer) Issue(user domain.User) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: s.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		// A unique jti keeps tokens distinct even when two are issued for
		// the same user within one second.
		ID:       uuid.NewString(),
		Subject:  strconv.FormatInt(user.ID, 10),
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(s.ttl)),
	}
	custom := SessionClaims{
		Email:      user.Email,
		Name:       user.Name,
		Role:       string(user.Role),
		ExternalID: user.ExternalID,
	}

	raw, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return raw, nil
}

// Verify checks the signature and expiry of a token. Only HS256 is accepted;
// tokens signed with any other algorithm fail. All failures map to ErrInvalid.
func (s *Signer) Verify(raw string) (*gojwt.Claims, *SessionClaims, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var std gojwt.Claims
	var custom SessionClaims
	if err := parsed.Claims(s.secret, &std, &custom); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := std.Validate(gojwt.Expected{Time: time.Now()}); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return &std, &custom, nil
}
