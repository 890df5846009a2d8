package models

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
}

// SameIdentity reports whether a and b refer to the same user (both nil counts).
func SameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}
