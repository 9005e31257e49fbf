package models

// TOTPDevice holds the base32 secret for a user's second factor.
// At most one device exists per user. An unverified device never gates
// login; Verified flips true exactly once, when the owner proves
// possession of a valid code.
type TOTPDevice struct {
	UserID   string
	Secret   string
	Verified bool
}
