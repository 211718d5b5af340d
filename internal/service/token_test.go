package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/go-accounts/internal/models"
	"github.com/stretchr/testify/require"
)

func testUser() *models.User {
	return &models.User{
		ID:       uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Liddell",
	}
}

func TestMintAccessToken_AndVerify_OK(t *testing.T) {
	t.Parallel()

	tk := NewTokens(testAuthCfg())
	u := testUser()

	token, exp, err := tk.MintAccessToken(u)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 2*time.Second)

	claims, err := tk.VerifyAndDecode(token, testAuthCfg().AccessTokenSecret)
	require.NoError(t, err)
	require.Equal(t, u.ID.String(), claims.UserID)
	require.Equal(t, u.ID.String(), claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, "Alice Liddell", claims.FullName)
	require.Equal(t, "accounts-service", claims.Issuer)

	uid, err := tk.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, u.ID, uid)
}

func TestMintRefreshToken_MinimalClaims_UniqueJTI(t *testing.T) {
	t.Parallel()

	tk := NewTokens(testAuthCfg())
	uid := uuid.New()

	r1, exp, err := tk.MintRefreshToken(uid)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), exp, 2*time.Second)

	r2, _, err := tk.MintRefreshToken(uid)
	require.NoError(t, err)
	require.NotEqual(t, r1, r2, "tokens minted in the same second must differ")

	claims, err := tk.VerifyAndDecode(r1, testAuthCfg().RefreshTokenSecret)
	require.NoError(t, err)
	require.Equal(t, uid.String(), claims.UserID)
	require.NotEmpty(t, claims.ID)
	require.Empty(t, claims.Email)
	require.Empty(t, claims.Username)

	got, err := tk.ValidateRefreshToken(r1)
	require.NoError(t, err)
	require.Equal(t, uid, got)
}

// Access и refresh подписаны разными секретами и не взаимозаменяемы.
func TestVerify_SecretsAreIndependent(t *testing.T) {
	t.Parallel()

	tk := NewTokens(testAuthCfg())
	u := testUser()

	access, _, err := tk.MintAccessToken(u)
	require.NoError(t, err)
	refresh, _, err := tk.MintRefreshToken(u.ID)
	require.NoError(t, err)

	_, err = tk.ValidateRefreshToken(access)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = tk.ValidateAccessToken(refresh)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	tk := NewTokens(testAuthCfg())
	tk.now = func() time.Time { return time.Now().Add(-time.Hour).UTC() }

	token, _, err := tk.MintAccessToken(testUser())
	require.NoError(t, err)

	tk.now = func() time.Time { return time.Now().UTC() }

	_, err = tk.ValidateAccessToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	tk := NewTokens(testAuthCfg())
	secret := testAuthCfg().AccessTokenSecret

	for _, tc := range []string{
		"",
		"not-a-jwt",
		"a.b",
		"@@@.###.$$$",
	} {
		_, err := tk.VerifyAndDecode(tc, secret)
		require.ErrorIs(t, err, ErrMalformedToken, "token %q", tc)
	}
}

func TestVerify_MissingOrBadUserID_IsMalformed(t *testing.T) {
	t.Parallel()

	tk := NewTokens(testAuthCfg())
	cfg := testAuthCfg()

	for _, id := range []string{"", "not-a-uuid"} {
		claims := Claims{
			UserID: id,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    cfg.Issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		token, err := sign(claims, cfg.AccessTokenSecret)
		require.NoError(t, err)

		_, err = tk.VerifyAndDecode(token, cfg.AccessTokenSecret)
		require.ErrorIs(t, err, ErrMalformedToken, "id %q", id)
	}
}

func TestVerify_WrongAlg_WrongIssuer_NoExpiry(t *testing.T) {
	t.Parallel()

	tk := NewTokens(testAuthCfg())
	cfg := testAuthCfg()
	uid := uuid.NewString()

	valid := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}

	// HS512 вместо HS256.
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: uid, RegisteredClaims: valid}).
		SignedString([]byte(cfg.AccessTokenSecret))
	require.NoError(t, err)
	_, err = tk.VerifyAndDecode(hs512, cfg.AccessTokenSecret)
	require.ErrorIs(t, err, ErrInvalidToken)

	// alg=none.
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: uid, RegisteredClaims: valid}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tk.VerifyAndDecode(none, cfg.AccessTokenSecret)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Чужой issuer.
	foreign := valid
	foreign.Issuer = "someone-else"
	token, err := sign(Claims{UserID: uid, RegisteredClaims: foreign}, cfg.AccessTokenSecret)
	require.NoError(t, err)
	_, err = tk.VerifyAndDecode(token, cfg.AccessTokenSecret)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Без exp.
	noExp := valid
	noExp.ExpiresAt = nil
	token, err = sign(Claims{UserID: uid, RegisteredClaims: noExp}, cfg.AccessTokenSecret)
	require.NoError(t, err)
	_, err = tk.VerifyAndDecode(token, cfg.AccessTokenSecret)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_TamperedSignature(t *testing.T) {
	t.Parallel()

	tk := NewTokens(testAuthCfg())

	token, _, err := tk.MintAccessToken(testUser())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = tk.ValidateAccessToken(tampered)
	require.ErrorIs(t, err, ErrInvalidToken)
}
