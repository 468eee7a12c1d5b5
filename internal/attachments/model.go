package attachments

import "time"

// Attachment is the metadata row for an object uploaded out-of-band through a
// presigned URL. The bytes themselves never pass through this service.
type Attachment struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	EntryID     string    `gorm:"column:entry_id;size:190;not null;index"`
	FamilyID    string    `gorm:"column:family_id;size:190;not null;index"`
	Filename    string    `gorm:"column:filename;size:512;not null"`
	StoragePath string    `gorm:"column:storage_path;size:1024;not null"`
	MimeType    string    `gorm:"column:mime_type;size:190;not null"`
	SizeBytes   int64     `gorm:"column:size_bytes;not null"`
	UploadedBy  string    `gorm:"column:uploaded_by;size:190"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Attachment) TableName() string {
	return "attachments"
}
