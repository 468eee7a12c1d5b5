// Package policy is the single source of truth for authorization decisions.
// Every predicate is pure; callers supply the facts and services invoke the
// relevant predicate before any write. The package sits below identity so it
// owns the Role and Actor types the predicates judge.
package policy

// Role distinguishes family administrators from regular members.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Actor is the resolved identity behind a validated session. It never carries
// the password hash.
type Actor struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	FamilyID    string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanManageFamily gates membership, invite, and catalog administration.
func CanManageFamily(actor Actor) bool {
	return actor.IsAdmin()
}

// CanEditEntry allows admins and the entry's original author.
func CanEditEntry(actor Actor, entryCreatedBy string) bool {
	return actor.IsAdmin() || actor.ID == entryCreatedBy
}

// CanDeleteEntry restricts soft deletion to admins.
func CanDeleteEntry(actor Actor) bool {
	return actor.IsAdmin()
}

// CanDeleteAttachment allows admins and the original uploader.
func CanDeleteAttachment(actor Actor, uploadedBy string) bool {
	return actor.IsAdmin() || actor.ID == uploadedBy
}
