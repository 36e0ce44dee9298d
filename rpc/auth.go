package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	adminScope = "admin"
	clockSkew  = 2 * time.Minute
)

// authenticator checks HS256 bearer tokens carrying the admin scope.
type authenticator struct {
	secret []byte
	issuer string
}

func newAuthenticator(secret, issuer string) *authenticator {
	return &authenticator{secret: []byte(strings.TrimSpace(secret)), issuer: strings.TrimSpace(issuer)}
}

func (a *authenticator) authorize(r *http.Request) *RPCError {
	if len(a.secret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "admin access not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	token := extractBearer(header)
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	claims, err := a.parse(token)
	if err != nil {
		return &RPCError{Code: codeUnauthorized, Message: "invalid token"}
	}
	if !hasScope(claims, adminScope) {
		return &RPCError{Code: codeUnauthorized, Message: "insufficient scope"}
	}
	return nil
}

func (a *authenticator) parse(tokenString string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(clockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func hasScope(claims jwt.MapClaims, want string) bool {
	switch v := claims["scope"].(type) {
	case string:
		for _, s := range strings.Fields(v) {
			if s == want {
				return true
			}
		}
	case []interface{}:
		for _, entry := range v {
			if s, ok := entry.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func extractBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
