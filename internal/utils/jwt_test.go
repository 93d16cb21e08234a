package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    at, err := NewAccessToken("s3cret", 42, "ADMIN", "Ada", time.Minute)
    require.NoError(t, err)

    claims, err := ParseAccessToken("s3cret", at.Token)
    require.NoError(t, err)
    id, err := claims.AccountID()
    require.NoError(t, err)
    assert.Equal(t, uint64(42), id)
    assert.Equal(t, "ADMIN", claims.Role)
    assert.Equal(t, "Ada", claims.Name)
}

func TestParseAccessTokenRejects(t *testing.T) {
    at, err := NewAccessToken("s3cret", 1, "CLIENT", "", time.Minute)
    require.NoError(t, err)
    _, err = ParseAccessToken("other", at.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)

    expired, err := NewAccessToken("s3cret", 1, "CLIENT", "", -time.Minute)
    require.NoError(t, err)
    _, err = ParseAccessToken("s3cret", expired.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)

    none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1"}).
        SignedString(jwt.UnsafeAllowNoneSignatureType)
    require.NoError(t, err)
    _, err = ParseAccessToken("s3cret", none)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensAreRandomAndHashed(t *testing.T) {
    a, err := NewApprovalToken()
    require.NoError(t, err)
    b, err := NewApprovalToken()
    require.NoError(t, err)
    assert.Len(t, a, 64)
    assert.NotEqual(t, a, b)
    assert.Len(t, HashToken(a), 64)
    assert.Equal(t, HashToken(a), HashToken(a))

    rt, err := NewRefreshToken(time.Hour)
    require.NoError(t, err)
    assert.Len(t, rt.Raw, 96)
    assert.True(t, rt.Exp.After(time.Now()))
}
