package attachments

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hearthvault/backend/internal/entries"
	"github.com/hearthvault/backend/internal/fault"
	"github.com/hearthvault/backend/internal/identity"
	"github.com/hearthvault/backend/internal/policy"
)

// MaxUploadBytes caps a single attachment at 25 MB.
const MaxUploadBytes = 25 << 20

const (
	opRequestUpload   = "attachments.request_upload"
	opRecord          = "attachments.record"
	opRequestDownload = "attachments.request_download"
	opDelete          = "attachments.delete"
	opListForEntry    = "attachments.list_for_entry"
)

var (
	errMissingDatabase    = errors.New("database handle is required")
	errMissingIDProvider  = errors.New("id provider is required")
	errMissingObjectStore = errors.New("object store is required")
	noOpLogger            = zap.NewNop()
)

// allowedMimeTypes is the upload allow-list: common image formats, PDF, Word,
// Excel, plain text, CSV, and zip.
var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/png":          {},
	"image/gif":          {},
	"image/webp":         {},
	"image/heic":         {},
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"text/plain":      {},
	"text/csv":        {},
	"application/zip": {},
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename restricts a filename to a safe character set before it
// becomes part of a storage key.
func SanitizeFilename(filename string) string {
	return unsafeFilenameChars.ReplaceAllString(filename, "_")
}

// ServiceConfig describes the dependencies of the attachment gateway.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identity.IDProvider
	Store      ObjectStore
	Logger     *zap.Logger
}

// Service is the attachment gateway: it issues scoped upload and download
// capabilities against the object store and owns the metadata rows.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	ids    identity.IDProvider
	store  ObjectStore
	logger *zap.Logger
}

// NewService validates the configuration and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.Store == nil {
		return nil, errMissingObjectStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, ids: cfg.IDProvider, store: cfg.Store, logger: logger}, nil
}

// UploadGrant is a time-boxed upload capability plus the storage key the
// client must report back through RecordAttachment.
type UploadGrant struct {
	UploadURL   string
	StoragePath string
}

// RequestUpload validates the content type against the allow-list and the
// entry's liveness, then issues a presigned PUT capability. The storage key is
// namespaced {familyID}/{entryID}/{randomID}-{sanitizedFilename}.
func (s *Service) RequestUpload(ctx context.Context, actor identity.Actor, entryID, filename, contentType string) (UploadGrant, error) {
	if strings.TrimSpace(filename) == "" || strings.TrimSpace(contentType) == "" || strings.TrimSpace(entryID) == "" {
		return UploadGrant{}, fault.New(fault.KindValidationFailed, opRequestUpload, "filename, contentType, and entryId are required")
	}
	if _, ok := allowedMimeTypes[contentType]; !ok {
		return UploadGrant{}, fault.New(fault.KindValidationFailed, opRequestUpload, "file type not allowed")
	}

	if err := s.requireActiveEntry(ctx, actor, entryID, opRequestUpload); err != nil {
		return UploadGrant{}, err
	}

	randomID, err := s.ids.NewID()
	if err != nil {
		return UploadGrant{}, err
	}
	storagePath := actor.FamilyID + "/" + entryID + "/" + randomID + "-" + SanitizeFilename(filename)

	uploadURL, err := s.store.PresignUpload(ctx, storagePath, contentType)
	if err != nil {
		s.logError(opRequestUpload, "presign_failed", err, zap.String("entry_id", entryID))
		return UploadGrant{}, err
	}
	return UploadGrant{UploadURL: uploadURL, StoragePath: storagePath}, nil
}

// RecordInput carries the metadata reported after an out-of-band upload.
type RecordInput struct {
	EntryID     string
	Filename    string
	StoragePath string
	MimeType    string
	SizeBytes   int64
}

// Record persists the metadata row once the client has completed the upload.
// The entry must still be active and in-family.
func (s *Service) Record(ctx context.Context, actor identity.Actor, input RecordInput) (Attachment, error) {
	if strings.TrimSpace(input.EntryID) == "" || strings.TrimSpace(input.Filename) == "" ||
		strings.TrimSpace(input.StoragePath) == "" || strings.TrimSpace(input.MimeType) == "" {
		return Attachment{}, fault.New(fault.KindValidationFailed, opRecord, "missing required fields")
	}
	if input.SizeBytes <= 0 || input.SizeBytes > MaxUploadBytes {
		return Attachment{}, fault.New(fault.KindValidationFailed, opRecord, "file size must be between 1 byte and 25 MB")
	}
	if _, ok := allowedMimeTypes[input.MimeType]; !ok {
		return Attachment{}, fault.New(fault.KindValidationFailed, opRecord, "file type not allowed")
	}

	if err := s.requireActiveEntry(ctx, actor, input.EntryID, opRecord); err != nil {
		return Attachment{}, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Attachment{}, err
	}
	attachment := Attachment{
		ID:          id,
		EntryID:     input.EntryID,
		FamilyID:    actor.FamilyID,
		Filename:    input.Filename,
		StoragePath: input.StoragePath,
		MimeType:    input.MimeType,
		SizeBytes:   input.SizeBytes,
		UploadedBy:  actor.ID,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&attachment).Error; err != nil {
		s.logError(opRecord, "insert_failed", err, zap.String("entry_id", input.EntryID))
		return Attachment{}, err
	}
	return attachment, nil
}

// RequestDownload issues a presigned GET capability. Cross-family attachments
// are indistinguishable from absent ones.
func (s *Service) RequestDownload(ctx context.Context, actor identity.Actor, attachmentID string) (string, error) {
	attachment, err := s.loadInFamily(ctx, actor, attachmentID, opRequestDownload)
	if err != nil {
		return "", err
	}

	downloadURL, err := s.store.PresignDownload(ctx, attachment.StoragePath)
	if err != nil {
		s.logError(opRequestDownload, "presign_failed", err, zap.String("attachment_id", attachmentID))
		return "", err
	}
	return downloadURL, nil
}

// Delete removes the stored object first and the metadata row second. A
// metadata delete failing after a successful object delete leaves an orphaned
// row pointing at a missing object, which is tolerated and logged rather than
// surfaced as a failure.
func (s *Service) Delete(ctx context.Context, actor identity.Actor, attachmentID string) error {
	attachment, err := s.loadInFamily(ctx, actor, attachmentID, opDelete)
	if err != nil {
		return err
	}
	if !policy.CanDeleteAttachment(actor, attachment.UploadedBy) {
		return fault.New(fault.KindPermissionDenied, opDelete, "not the uploader of this attachment")
	}

	if err := s.store.DeleteObject(ctx, attachment.StoragePath); err != nil {
		s.logError(opDelete, "object_delete_failed", err, zap.String("attachment_id", attachmentID))
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&Attachment{}, "id = ?", attachment.ID).Error; err != nil {
		s.logger.Warn("attachment metadata orphaned after object delete",
			zap.String("attachment_id", attachment.ID),
			zap.String("storage_path", attachment.StoragePath),
			zap.Error(err))
		return nil
	}
	return nil
}

// ListForEntry returns the attachments of an active entry. Attachments of a
// soft-deleted entry are invisible but preserved: visibility is filtered
// through the owning entry's deletedAt rather than a storage-level cascade.
func (s *Service) ListForEntry(ctx context.Context, actor identity.Actor, entryID string) ([]Attachment, error) {
	if err := s.requireActiveEntry(ctx, actor, entryID, opListForEntry); err != nil {
		return nil, err
	}

	var results []Attachment
	if err := s.db.WithContext(ctx).
		Where("entry_id = ? AND family_id = ?", entryID, actor.FamilyID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		s.logError(opListForEntry, "query_failed", err, zap.String("entry_id", entryID))
		return nil, err
	}
	return results, nil
}

func (s *Service) requireActiveEntry(ctx context.Context, actor identity.Actor, entryID, op string) error {
	var entry entries.Entry
	err := s.db.WithContext(ctx).
		Where("id = ? AND family_id = ? AND deleted_at IS NULL", entryID, actor.FamilyID).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fault.New(fault.KindNotFound, op, "entry not found")
	}
	if err != nil {
		s.logError(op, "entry_lookup_failed", err, zap.String("entry_id", entryID))
		return err
	}
	return nil
}

func (s *Service) loadInFamily(ctx context.Context, actor identity.Actor, attachmentID, op string) (Attachment, error) {
	var attachment Attachment
	err := s.db.WithContext(ctx).Where("id = ?", attachmentID).Take(&attachment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Attachment{}, fault.New(fault.KindNotFound, op, "attachment not found")
	}
	if err != nil {
		s.logError(op, "lookup_failed", err, zap.String("attachment_id", attachmentID))
		return Attachment{}, err
	}
	if attachment.FamilyID != actor.FamilyID {
		return Attachment{}, fault.New(fault.KindNotFound, op, "attachment not found")
	}
	return attachment, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("attachments service error", attrs...)
}
