package password_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/password"
)

func TestSetAndVerifyRoundTrip(t *testing.T) {
	salt, hash, err := password.Set("correct horse battery staple")
	require.NoError(t, err)
	require.Len(t, salt, 32)
	require.Len(t, hash, 128)

	require.True(t, password.Verify("correct horse battery staple", salt, hash))
	require.False(t, password.Verify("correct horse battery stapler", salt, hash))
	require.False(t, password.Verify("", salt, hash))
}

func TestSetProducesUniqueSalts(t *testing.T) {
	saltA, hashA, err := password.Set("pw")
	require.NoError(t, err)
	saltB, hashB, err := password.Set("pw")
	require.NoError(t, err)

	require.NotEqual(t, saltA, saltB)
	require.NotEqual(t, hashA, hashB)

	require.True(t, password.Verify("pw", saltA, hashA))
	require.True(t, password.Verify("pw", saltB, hashB))
	require.False(t, password.Verify("pw", saltA, hashB))
}

func TestVerifyRejectsEmptyCredentials(t *testing.T) {
	require.False(t, password.Verify("pw", "", ""))
	require.False(t, password.Verify("pw", "abcd", ""))
}
