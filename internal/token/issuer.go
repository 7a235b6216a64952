package token

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-auth-service/internal/model"
	"go-auth-service/pkg/apierror"
)

// Issuer signs and validates HS256 access tokens. Access tokens are
// stateless: once issued they stay valid until expiry, so the TTL
// should be short.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

func NewIssuer(secret string, issuer string, audience string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
	}
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue builds the claim set for the user and signs it. Each token
// carries a fresh jti so two tokens minted in the same instant remain
// distinguishable.
func (i *Issuer) Issue(user model.User) (string, error) {
	now := time.Now().UTC()

	claims := jwt.MapClaims{
		"sub":   user.Username,
		"jti":   uuid.NewString(),
		"email": user.Email,
		"uid":   user.ID,
		"roles": user.Roles,
		"iss":   i.issuer,
		"aud":   i.audience,
		"iat":   now.Unix(),
		"exp":   now.Add(i.ttl).Unix(),
	}

	// Custom claims stored with the user never override registered ones.
	for name, value := range user.Claims {
		if _, reserved := claims[name]; reserved {
			continue
		}
		claims[name] = value
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Validate checks signature, issuer, audience and expiry with zero
// clock-skew tolerance and returns the identity claims.
func (i *Issuer) Validate(tokenString string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(0),
	)
	if err != nil || !parsed.Valid {
		return nil, apierror.New("UNAUTHORIZED", "invalid or expired token", "", http.StatusUnauthorized)
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.New("UNAUTHORIZED", "invalid token claims", "", http.StatusUnauthorized)
	}

	claims := &model.AuthClaims{}
	claims.Username, _ = claimsMap["sub"].(string)
	claims.UserID, _ = claimsMap["uid"].(string)
	claims.Email, _ = claimsMap["email"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if rawRoles, ok := claimsMap["roles"].([]any); ok {
		for _, raw := range rawRoles {
			if role, ok := raw.(string); ok {
				claims.Roles = append(claims.Roles, role)
			}
		}
	}

	if claims.Username == "" || claims.UserID == "" {
		return nil, apierror.New("UNAUTHORIZED", "invalid token subject", "", http.StatusUnauthorized)
	}

	return claims, nil
}
