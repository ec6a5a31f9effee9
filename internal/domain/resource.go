package domain

import "fmt"

// Visibility is the access tier stored on a resource.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityMembers
	VisibilityPrivate
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityMembers:
		return "members"
	case VisibilityPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// ParseVisibility converts a stored tier name into a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "public":
		return VisibilityPublic, nil
	case "members":
		return VisibilityMembers, nil
	case "private":
		return VisibilityPrivate, nil
	default:
		return 0, fmt.Errorf("unknown visibility tier %q", s)
	}
}

// ResourceClass distinguishes ordinary media files from profile images,
// which are always served publicly regardless of their stored tier.
type ResourceClass int

const (
	ClassFile ResourceClass = iota
	ClassProfileImage
)

func (c ResourceClass) String() string {
	if c == ClassProfileImage {
		return "profile_image"
	}
	return "file"
}

// Resource is the stored metadata for one media file. It is read-only
// input to the delivery path; uploads and visibility changes happen
// elsewhere.
type Resource struct {
	ID          string
	Path        string // storage key, relative to the blob store root
	Size        int64
	ContentType string
	Visibility  Visibility
	Class       ResourceClass
	OwnerID     string // empty when the resource has no owner
}
