package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errNoAuthHeader  = errors.New("authorization header is missing")
	errNotBearer     = errors.New("authorization header must be 'Bearer {token}'")
	errNoSubject     = errors.New("token has no subject claim")
	errInvalidClaims = errors.New("invalid token claims")
)

// ExtractTokenFromRequest pulls the bearer token out of the Authorization
// header without verifying it.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoAuthHeader
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" || strings.ContainsRune(token, ' ') {
		return "", errNotBearer
	}
	return token, nil
}

// ExtractUserIDFromJWT reads the sub claim from an already-verified token.
// Signature validation happens in the middleware; this only attributes
// created_by on occasion records.
func ExtractUserIDFromJWT(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("empty token")
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidClaims
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errNoSubject
	}
	return sub, nil
}
