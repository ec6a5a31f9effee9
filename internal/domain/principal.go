package domain

import "slices"

// GroupGuest is the membership that marks a caller as a visitor account.
// Guests authenticate like any other user but are excluded from
// members-only resources.
const GroupGuest = "guest"

// Principal represents an authenticated caller. It is constructed fresh
// per request from the identity validator's output and never cached
// across requests.
type Principal struct {
	ID         string
	Groups     []string
	Privileged bool // administrative override; never bypasses private ownership
	Active     bool
}

// InGroup reports whether the principal belongs to the given group.
func (p Principal) InGroup(group string) bool {
	return slices.Contains(p.Groups, group)
}

// TokenPair is the response shape of the token issuance endpoint.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}
