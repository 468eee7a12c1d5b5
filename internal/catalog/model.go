package catalog

import (
	"strings"
	"time"
)

// Section is a named category grouping entries within a family. The 15
// built-in sections are seeded at family setup; admins may add custom ones.
type Section struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	FamilyID    string    `gorm:"column:family_id;size:190;not null;index"`
	Name        string    `gorm:"column:name;size:320;not null"`
	Description string    `gorm:"column:description;type:text"`
	Icon        string    `gorm:"column:icon;size:64"`
	SortOrder   int       `gorm:"column:sort_order;not null;default:0"`
	IsDefault   bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Section) TableName() string {
	return "sections"
}

// Direction selects a neighbor for section reordering.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection normalizes raw input into a Direction.
func ParseDirection(value string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DirectionUp):
		return DirectionUp, true
	case string(DirectionDown):
		return DirectionDown, true
	default:
		return "", false
	}
}
