package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// InsecureDefaultSecret is the fallback signing secret. Anything signed
// with it is forgeable, deployments must override it.
const InsecureDefaultSecret = "default-secret-key-change-in-production"

// TokenIssuer mints and verifies the signed service tokens used for
// service-to-service calls. Tokens never expire; validity is purely a
// signature check and no session state is kept server-side.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) TokenIssuer {
	if secret == "" {
		secret = InsecureDefaultSecret
	}
	if secret == InsecureDefaultSecret {
		slog.Warn("signing service tokens with the insecure default secret, set JWT_SECRET_KEY")
	}
	return TokenIssuer{secret: []byte(secret)}
}

type serviceClaims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// Issue signs a token identifying the named service. No expiration
// claim is set.
func (t TokenIssuer) Issue(serviceName string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, serviceClaims{
		Service: serviceName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	})
	return token.SignedString(t.secret)
}

// Verify checks a token's signature and returns the service it was
// issued to.
func (t TokenIssuer) Verify(tokenString string) (string, error) {
	var claims serviceClaims
	_, err := jwt.ParseWithClaims(
		tokenString, &claims,
		func(token *jwt.Token) (any, error) {
			return t.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return claims.Service, nil
}
