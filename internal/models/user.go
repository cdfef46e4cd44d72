package models

type AuthProvider string

const (
	ProviderEmail  AuthProvider = "email"
	ProviderGoogle AuthProvider = "google"
	ProviderGitHub AuthProvider = "github"
)

// User is the identity record. PassHash is a bcrypt hash, or the legacy
// 8-hex-digit FNV-1a digest for documents imported from older versions.
type User struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	PassHash  string       `json:"passHash"`
	Provider  AuthProvider `json:"provider"`
	CreatedAt int64        `json:"createdAt"`
}

type ResetToken struct {
	Code      string `json:"code"`
	ExpiresAt int64  `json:"expiresAt"`
	Attempts  int    `json:"attempts,omitempty"`
}
