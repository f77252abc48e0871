package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	piazza_errors "piazza-chat/pkg/errors"
)

// Identity is the authenticated platform user. Accounts live in the main
// community service; this module only verifies the tokens it mints.
type Identity struct {
	UserID string
	Name   string
	Avatar string
}

// AccessClaims is the JWT claim set issued by the platform.
type AccessClaims struct {
	UserID string `json:"uid"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret)}
}

func (s *AuthService) ParseAccessToken(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, piazza_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, piazza_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Identity{}, piazza_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return Identity{}, piazza_errors.ErrUnauthorized
	}

	return Identity{
		UserID: claims.UserID,
		Name:   claims.Name,
		Avatar: claims.Avatar,
	}, nil
}

type identityContextKey struct{}

func WithIdentityContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// HTTPStatus maps service errors onto HTTP status codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, piazza_errors.ErrInvalidInput),
		errors.Is(err, piazza_errors.ErrUnsupportedType),
		errors.Is(err, piazza_errors.ErrTooShort):
		return http.StatusBadRequest
	case errors.Is(err, piazza_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, piazza_errors.ErrForbidden),
		errors.Is(err, piazza_errors.ErrNotAuthor),
		errors.Is(err, piazza_errors.ErrReadOnlyTopic):
		return http.StatusForbidden
	case errors.Is(err, piazza_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, piazza_errors.ErrConflict),
		errors.Is(err, piazza_errors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, piazza_errors.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, piazza_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
