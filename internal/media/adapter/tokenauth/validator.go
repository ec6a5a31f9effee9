// Package tokenauth resolves principals from signed bearer tokens.
package tokenauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mediagate/internal/domain"
)

const maxClockSkew = 30 * time.Second

// Validator verifies RS256 JWTs against keys from a KeyProvider and
// maps their claims onto a Principal. Failures come back as the domain
// token sentinels so callers can tell expired from malformed, though
// the delivery path treats them all as "anonymous".
type Validator struct {
	keys KeyProvider
}

// NewValidator creates a Validator backed by the given key provider.
func NewValidator(keys KeyProvider) *Validator {
	return &Validator{keys: keys}
}

// Validate implements media.IdentityValidator.
func (v *Validator) Validate(ctx context.Context, tokenStr string) (domain.Principal, error) {
	// Only RS256 — prevents algorithm confusion attacks.
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, domain.ErrTokenInvalid
		}
		return v.keys.GetKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(maxClockSkew),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.Principal{}, domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return domain.Principal{}, domain.ErrTokenMalformed
		default:
			return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err)
		}
	}
	if !token.Valid {
		return domain.Principal{}, domain.ErrTokenInvalid
	}

	p, err := principalFromClaims(token.Claims)
	if err != nil {
		return domain.Principal{}, err
	}
	if !p.Active {
		// Deactivated accounts authenticate like a bad token.
		return domain.Principal{}, fmt.Errorf("%w: principal inactive", domain.ErrTokenInvalid)
	}
	return p, nil
}

func principalFromClaims(claims jwt.Claims) (domain.Principal, error) {
	mc, ok := claims.(jwt.MapClaims)
	if !ok {
		return domain.Principal{}, domain.ErrTokenInvalid
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing subject", domain.ErrTokenInvalid)
	}

	var groups []string
	if groupStr, ok := mc["groups"].(string); ok && groupStr != "" {
		groups = strings.Fields(groupStr)
	}

	privileged, _ := mc["privileged"].(bool)

	// Tokens without an active claim are treated as active; issuers
	// only set it when deactivating an account ahead of token expiry.
	active := true
	if v, ok := mc["active"].(bool); ok {
		active = v
	}

	return domain.Principal{
		ID:         sub,
		Groups:     groups,
		Privileged: privileged,
		Active:     active,
	}, nil
}
