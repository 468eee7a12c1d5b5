package invites

import "time"

// Status tracks the invite lifecycle: pending until accepted or expired, both
// terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
)

// Invite is a time-boxed, single-use credential allowing one new member to
// join a family.
type Invite struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	FamilyID  string    `gorm:"column:family_id;size:190;not null;index"`
	Email     string    `gorm:"column:email;size:320;not null;index"`
	Token     string    `gorm:"column:token;size:190;not null;uniqueIndex"`
	InvitedBy string    `gorm:"column:invited_by;size:190"`
	Status    Status    `gorm:"column:status;size:32;not null;default:pending"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Invite) TableName() string {
	return "invites"
}
