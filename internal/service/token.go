package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/go-accounts/internal/config"
	"github.com/pribylovaa/go-accounts/internal/models"
)

// leeway — допустимое расхождение часов при проверке exp/iat.
const leeway = 5 * time.Second

// Claims — набор клеймов access- и refresh-токенов.
// В refresh-токене заполнены только UserID и зарегистрированные клеймы.
type Claims struct {
	UserID   string `json:"_id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
	jwt.RegisteredClaims
}

// Tokens выпускает и проверяет JWT (HS256).
// Access и refresh подписываются независимыми секретами и имеют разные TTL.
type Tokens struct {
	cfg config.AuthConfig
	now func() time.Time
}

// NewTokens создаёт токен-сервис.
func NewTokens(cfg config.AuthConfig) *Tokens {
	return &Tokens{
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// MintAccessToken выпускает access-токен с идентификационными клеймами пользователя.
func (t *Tokens) MintAccessToken(user *models.User) (string, time.Time, error) {
	const op = "service.token.MintAccessToken"

	now := t.now()
	exp := now.Add(t.cfg.AccessTokenTTL)

	claims := Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := sign(claims, t.cfg.AccessTokenSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// MintRefreshToken выпускает refresh-токен с минимальным набором клеймов.
// jti делает токены, выпущенные в одну секунду, различимыми.
func (t *Tokens) MintRefreshToken(userID uuid.UUID) (string, time.Time, error) {
	const op = "service.token.MintRefreshToken"

	now := t.now()
	exp := now.Add(t.cfg.RefreshTokenTTL)

	claims := Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := sign(claims, t.cfg.RefreshTokenSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// VerifyAndDecode проверяет подпись и срок токена и возвращает его клеймы.
//   - ErrMalformedToken: токен не разбирается или в нём нет корректного _id;
//   - ErrInvalidToken: подпись/алгоритм/issuer не сходятся либо токен просрочен.
func (t *Tokens) VerifyAndDecode(tokenStr, secret string) (*Claims, error) {
	const op = "service.token.VerifyAndDecode"

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	return claims, nil
}

// ValidateAccessToken проверяет access-токен и возвращает id пользователя.
func (t *Tokens) ValidateAccessToken(tokenStr string) (uuid.UUID, error) {
	return t.validate(tokenStr, t.cfg.AccessTokenSecret)
}

// ValidateRefreshToken проверяет refresh-токен и возвращает id пользователя.
func (t *Tokens) ValidateRefreshToken(tokenStr string) (uuid.UUID, error) {
	return t.validate(tokenStr, t.cfg.RefreshTokenSecret)
}

func (t *Tokens) validate(tokenStr, secret string) (uuid.UUID, error) {
	claims, err := t.VerifyAndDecode(tokenStr, secret)
	if err != nil {
		return uuid.Nil, err
	}

	// Формат _id уже проверен в VerifyAndDecode.
	return uuid.MustParse(claims.UserID), nil
}

func sign(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
