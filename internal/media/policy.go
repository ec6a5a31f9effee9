package media

import "mediagate/internal/domain"

// DenyReason says which policy rule rejected the caller. Reasons are
// logged server-side only; clients get a generic forbidden body.
type DenyReason int

const (
	DenyNone DenyReason = iota
	DenyUnauthenticated
	DenyInsufficientRole
	DenyNotOwner
)

func (r DenyReason) String() string {
	switch r {
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyInsufficientRole:
		return "insufficient_role"
	case DenyNotOwner:
		return "not_owner"
	default:
		return "none"
	}
}

// AccessDecision is the outcome of one policy evaluation. Computed
// fresh per request, never cached: visibility can change between
// requests.
type AccessDecision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() AccessDecision {
	return AccessDecision{Allowed: true}
}

func deny(reason DenyReason) AccessDecision {
	return AccessDecision{Reason: reason}
}

// Decide evaluates the visibility policy for a caller against a
// resource. A nil principal is an anonymous caller.
//
// Tier rules, first match wins:
//
//	public   anyone                        → allow
//	members  anonymous                     → deny unauthenticated
//	members  guest group                   → deny insufficient_role
//	members  any other authenticated       → allow
//	private  anonymous                     → deny unauthenticated
//	private  owner                         → allow
//	private  anyone else, privileged too   → deny not_owner
//
// Profile images are always public regardless of stored tier.
func Decide(p *domain.Principal, res domain.Resource) AccessDecision {
	tier := res.Visibility
	if res.Class == domain.ClassProfileImage {
		tier = domain.VisibilityPublic
	}

	switch tier {
	case domain.VisibilityPublic:
		return allow()

	case domain.VisibilityMembers:
		switch {
		case p == nil:
			return deny(DenyUnauthenticated)
		case p.InGroup(domain.GroupGuest):
			return deny(DenyInsufficientRole)
		default:
			return allow()
		}

	case domain.VisibilityPrivate:
		switch {
		case p == nil:
			return deny(DenyUnauthenticated)
		case res.OwnerID != "" && p.ID == res.OwnerID:
			return allow()
		default:
			// Ownership, not role, gates private resources.
			return deny(DenyNotOwner)
		}

	default:
		return deny(DenyNotOwner)
	}
}
