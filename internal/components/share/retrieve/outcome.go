package retrieve

import (
	"time"

	"github.com/sharelock/sharelock-go/internal/components/share/itemcrypto"
	"github.com/sharelock/sharelock-go/internal/components/share/spec"
)

// Kind discriminates the outcome variants of a completed retrieval.
type Kind string

const (
	KindSuccess          Kind = "success"
	KindUnauthorized     Kind = "unauthorized"
	KindMaxViewsExceeded Kind = "max_views_exceeded"
	KindExpired          Kind = "expired"
	KindNotFound         Kind = "not_found"
)

// Outcome is the tagged result of a completed retrieval call. Exactly one
// variant is produced per call; Item and Metadata are set only on
// KindSuccess. Unauthorized, MaxViewsExceeded, Expired, and NotFound are
// first-class outcomes, not errors.
type Outcome struct {
	Kind       Kind
	ResourceID string
	Item       *itemcrypto.Item
	Metadata   *Metadata
}

// Metadata describes a successfully retrieved share. Purely descriptive.
type Metadata struct {
	// MaxViews is the server-side view cap, when one is set.
	MaxViews *int `json:"maxViews,omitempty"`

	// ExpiresAt is the share expiry instant, when one is set.
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	// AccountName is the sharing account's display name, when disclosed.
	AccountName string `json:"accountName,omitempty"`

	// AccountType is the sharing account's type; empty when the server
	// omitted it.
	AccountType string `json:"accountType"`

	// CanJoinTeam indicates the viewer may join the sharing account's team.
	// Pass-through only; no session behavior is attached to it.
	CanJoinTeam bool `json:"canJoinTeam"`

	// Template is the item template descriptor, when present.
	Template *spec.Template `json:"template,omitempty"`
}

// Success builds the success variant.
func Success(resourceID string, item *itemcrypto.Item, md *Metadata) *Outcome {
	return &Outcome{Kind: KindSuccess, ResourceID: resourceID, Item: item, Metadata: md}
}

// Unauthorized builds the identity-rejected variant.
func Unauthorized(resourceID string) *Outcome {
	return &Outcome{Kind: KindUnauthorized, ResourceID: resourceID}
}

// MaxViewsExceeded builds the view-cap-reached variant.
func MaxViewsExceeded(resourceID string) *Outcome {
	return &Outcome{Kind: KindMaxViewsExceeded, ResourceID: resourceID}
}

// Expired builds the share-expired variant.
func Expired(resourceID string) *Outcome {
	return &Outcome{Kind: KindExpired, ResourceID: resourceID}
}

// NotFound builds the unknown-resource variant.
func NotFound(resourceID string) *Outcome {
	return &Outcome{Kind: KindNotFound, ResourceID: resourceID}
}
