package auth

import "context"

// Identity is the resolved participant behind a bearer credential.
// Display fields are denormalized snapshots taken by the identity service
// at token issue time; the gateway never re-resolves them.
type Identity struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Role        string // "resident" (default), "staff", or "admin"
}

// IsAdmin reports whether the identity may act on other residents' content.
func (id *Identity) IsAdmin() bool {
	return id.Role == "admin" || id.Role == "staff"
}

// Verifier validates an opaque bearer credential supplied at connect time.
// The credential itself is issued by the society's identity service; this
// process only checks the signature and extracts the identity.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}
