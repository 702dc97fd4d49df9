package token_test

import (
	"testing"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/domain"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef0123456789abcdef")

func testUser() domain.User {
	return domain.User{
		ID:         42,
		ExternalID: "ext-42",
		Email:      "ana@x.si",
		Name:       "Ana",
		Role:       domain.RoleUser,
	}
}

func TestIssueAndVerify(t *testing.T) {
	signer := token.NewSigner(testSecret, 7*24*time.Hour)

	raw, err := signer.Issue(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	std, custom, err := signer.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "42", std.Subject)
	require.Equal(t, "ana@x.si", custom.Email)
	require.Equal(t, "Ana", custom.Name)
	require.Equal(t, "user", custom.Role)
	require.Equal(t, "ext-42", custom.ExternalID)

	expiry := std.Expiry.Time()
	require.WithinDuration(t, time.Now().Add(7*24*time.Hour), expiry, time.Minute)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	signer := token.NewSigner(testSecret, time.Hour)
	other := token.NewSigner([]byte("another-secret-another-secret-12"), time.Hour)

	raw, err := other.Issue(testUser())
	require.NoError(t, err)

	_, _, err = signer.Verify(raw)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	signer := token.NewSigner(testSecret, time.Hour)

	raw := signRaw(t, gojose.HS256, gojwt.Claims{
		Subject:  "42",
		IssuedAt: gojwt.NewNumericDate(time.Now().Add(-3 * time.Hour)),
		Expiry:   gojwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
	})

	_, _, err := signer.Verify(raw)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	signer := token.NewSigner(testSecret, time.Hour)

	raw := signRaw(t, gojose.HS384, gojwt.Claims{
		Subject: "42",
		Expiry:  gojwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, _, err := signer.Verify(raw)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	signer := token.NewSigner(testSecret, time.Hour)

	_, _, err := signer.Verify("not.a.jwt")
	require.ErrorIs(t, err, token.ErrInvalid)
}

func signRaw(t *testing.T, alg gojose.SignatureAlgorithm, claims gojwt.Claims) string {
	t.Helper()
	joseSigner, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: alg, Key: testSecret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)
	raw, err := gojwt.Signed(joseSigner).Claims(claims).Serialize()
	require.NoError(t, err)
	return raw
}
