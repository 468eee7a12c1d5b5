package identity

import (
	"strings"
	"time"

	"github.com/hearthvault/backend/internal/policy"
)

// Role and Actor are owned by the policy package so authorization predicates
// stay a dependency leaf; they are aliased here because the identity service
// is what resolves sessions into actors.
type (
	Role  = policy.Role
	Actor = policy.Actor
)

const (
	RoleAdmin  = policy.RoleAdmin
	RoleMember = policy.RoleMember
)

// ParseRole normalizes raw input into a Role.
func ParseRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(RoleAdmin):
		return RoleAdmin, true
	case string(RoleMember):
		return RoleMember, true
	default:
		return "", false
	}
}

// Family is the tenant root; all vault data is scoped to exactly one family.
type Family struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	Name      string    `gorm:"column:name;size:320;not null"`
	CreatedBy string    `gorm:"column:created_by;size:190"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Family) TableName() string {
	return "families"
}

// User is a family member account. Removal is a hard delete.
type User struct {
	ID             string    `gorm:"column:id;primaryKey;size:190;not null"`
	Email          string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	HashedPassword string    `gorm:"column:hashed_password;size:190;not null"`
	DisplayName    string    `gorm:"column:display_name;size:320;not null"`
	Role           Role      `gorm:"column:role;size:32;not null;default:member"`
	FamilyID       string    `gorm:"column:family_id;size:190;not null;index"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// Session maps an opaque bearer token to a user until its expiry.
type Session struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Session) TableName() string {
	return "sessions"
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
