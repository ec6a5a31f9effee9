package tokenauth_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mediagate/internal/domain"
	"mediagate/internal/media/adapter/tokenauth"
	"mediagate/internal/testutil"
)

func newValidator(t *testing.T) (*tokenauth.Validator, string, func(domain.Principal, time.Duration) string) {
	t.Helper()
	kid, priv, pub := testutil.GenerateTestKeyPair(t)

	jwksSrv := httptest.NewServer(testutil.MockJWKSHandler(kid, pub))
	t.Cleanup(jwksSrv.Close)

	v := tokenauth.NewValidator(tokenauth.NewJWKSClient(jwksSrv.URL, time.Minute))
	issue := func(p domain.Principal, ttl time.Duration) string {
		return testutil.IssueTestToken(t, kid, priv, p, ttl)
	}
	return v, kid, issue
}

func TestValidateResolvesPrincipal(t *testing.T) {
	v, _, issue := newValidator(t)

	want := domain.Principal{
		ID:         "user-42",
		Groups:     []string{"staff", domain.GroupGuest},
		Privileged: true,
		Active:     true,
	}
	token := issue(want, 15*time.Minute)

	got, err := v.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("ID = %q, want %q", got.ID, want.ID)
	}
	if !got.InGroup("staff") || !got.InGroup(domain.GroupGuest) {
		t.Errorf("groups = %v, want staff and guest", got.Groups)
	}
	if !got.Privileged {
		t.Error("expected privileged principal")
	}
	if !got.Active {
		t.Error("expected active principal")
	}
}

func TestValidateExpiredToken(t *testing.T) {
	v, _, issue := newValidator(t)

	token := issue(domain.Principal{ID: "user-1", Active: true}, -time.Hour)
	_, err := v.Validate(context.Background(), token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestValidateMalformedToken(t *testing.T) {
	v, _, _ := newValidator(t)

	_, err := v.Validate(context.Background(), "not-a-jwt")
	if !errors.Is(err, domain.ErrTokenMalformed) {
		t.Errorf("err = %v, want ErrTokenMalformed", err)
	}
}

func TestValidateInactivePrincipal(t *testing.T) {
	v, _, issue := newValidator(t)

	token := issue(domain.Principal{ID: "user-1", Active: false}, 15*time.Minute)
	_, err := v.Validate(context.Background(), token)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestValidateRejectsUnsignedAlgorithm(t *testing.T) {
	v, kid, _ := newValidator(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	unsigned.Header["kid"] = kid
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing alg=none token: %v", err)
	}

	if _, err := v.Validate(context.Background(), token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestValidateMissingSubject(t *testing.T) {
	v, _, issue := newValidator(t)

	token := issue(domain.Principal{Active: true}, 15*time.Minute)
	if _, err := v.Validate(context.Background(), token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestValidateUnknownKeyID(t *testing.T) {
	v, _, _ := newValidator(t)

	// Signed by a key the JWKS endpoint never published.
	otherKid, otherPriv, _ := testutil.GenerateTestKeyPair(t)
	token := testutil.IssueTestToken(t, otherKid, otherPriv,
		domain.Principal{ID: "user-1", Active: true}, 15*time.Minute)

	if _, err := v.Validate(context.Background(), token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}
