package entries

import "time"

// Entry is a single piece of recorded information in one section. Deletion is
// soft: DeletedAt is set and the row retained, and every read filters it out.
type Entry struct {
	ID          string     `gorm:"column:id;primaryKey;size:190;not null"`
	FamilyID    string     `gorm:"column:family_id;size:190;not null;index:idx_entries_family_section,priority:1"`
	SectionID   string     `gorm:"column:section_id;size:190;not null;index:idx_entries_family_section,priority:2"`
	Title       string     `gorm:"column:title;size:320;not null"`
	Content     string     `gorm:"column:content;type:text;not null"`
	IsSensitive bool       `gorm:"column:is_sensitive;not null;default:false"`
	CreatedBy   string     `gorm:"column:created_by;size:190"`
	UpdatedBy   string     `gorm:"column:updated_by;size:190"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null"`
	DeletedAt   *time.Time `gorm:"column:deleted_at"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "entries"
}

// EntryHistory is an append-only snapshot of an entry as it stood before an
// edit. EditedAt records when that state became current (the entry's prior
// updatedAt), not when the edit happened.
type EntryHistory struct {
	ID       string    `gorm:"column:id;primaryKey;size:190;not null"`
	EntryID  string    `gorm:"column:entry_id;size:190;not null;index"`
	Title    string    `gorm:"column:title;size:320;not null"`
	Content  string    `gorm:"column:content;type:text;not null"`
	EditedBy string    `gorm:"column:edited_by;size:190"`
	EditedAt time.Time `gorm:"column:edited_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (EntryHistory) TableName() string {
	return "entry_history"
}
