package models

// Permission ties a file to an assigned user with an access-type tag.
// OwnerID denormalizes the file owner for fast filtering.
type Permission struct {
	ID         string
	FileID     string
	OwnerID    string
	AssignedID string
	AccessType string
}

// AccessTypeView is the default access type for a grant.
const AccessTypeView = "view"
