package objfs

import "github.com/koustreak/bucketfs/internal/filestore"

// Visibility is the filesystem-level access setting of an object.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ToACL maps v to the canned ACL applied to the object. Anything other
// than public is private.
func ToACL(v Visibility) filestore.ACL {
	if v == VisibilityPublic {
		return filestore.ACLPublicRead
	}
	return filestore.ACLPrivate
}

// FromACL maps a canned object ACL back to a visibility.
func FromACL(acl filestore.ACL) Visibility {
	switch acl {
	case filestore.ACLPublicRead, filestore.ACLPublicReadWrite:
		return VisibilityPublic
	default:
		return VisibilityPrivate
	}
}
