// Package spec defines the wire types for the share retrieval protocol.
package spec

// Proof and correlation header names for share retrieval requests.
const (
	// HeaderShareToken proves possession of the share secret. Always present.
	HeaderShareToken = "X-Share-Token"

	// HeaderIdentityToken proves control of an account identity. Present
	// only when the caller supplied an identity token for the attempt.
	HeaderIdentityToken = "X-Identity-Token"

	// HeaderRequestID carries a per-attempt correlation id.
	HeaderRequestID = "X-Request-ID"
)

// Reason enumerators the share service may return in an error body.
// Any other value is unclassified and must not be mapped to an outcome.
const (
	ReasonUnauthorized = "unauthorized"
	ReasonMaxViews     = "max_views"
	ReasonExpired      = "expired"
	ReasonNotFound     = "not_found"
)

// EncryptedBlob is an encrypted payload field of a share record.
// All byte fields are unpadded base64url; Data is ciphertext with the
// AEAD tag appended.
type EncryptedBlob struct {
	KeyID       string `json:"kid,omitempty"`
	Enc         string `json:"enc"`
	ContentType string `json:"cty,omitempty"`
	IV          string `json:"iv"`
	Data        string `json:"data"`
}

// ShareRecord is the success body of a share retrieval request.
type ShareRecord struct {
	UUID         string        `json:"uuid"`
	TemplateUUID string        `json:"templateUuid,omitempty"`
	EncOverview  EncryptedBlob `json:"encOverview"`
	EncDetails   EncryptedBlob `json:"encDetails"`
	MaxViews     *int          `json:"maxViews,omitempty"`
	ExpiresAt    string        `json:"expiresAt,omitempty"`
	CanJoinTeam  bool          `json:"canJoinTeam"`
	AccountName  string        `json:"accountName,omitempty"`
	AccountType  string        `json:"accountType,omitempty"`
	Template     *Template     `json:"template,omitempty"`
}

// Template describes the item template a share record was created from.
type Template struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// ErrorResponse is the error body of a share retrieval request.
type ErrorResponse struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}
