package models

import "time"

// ShareLink is an anonymous, token-gated capability to redeem one file's
// plaintext. It is valid only while now < ExpiresAt and
// CurrentDownloads < MaxDownloads; both states are terminal once crossed.
type ShareLink struct {
	ID               string
	FileID           string
	Token            string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	MaxDownloads     int
	CurrentDownloads int
	AllowView        bool
	AllowDownload    bool
}
