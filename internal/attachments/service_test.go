package attachments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/hearthvault/backend/internal/entries"
	"github.com/hearthvault/backend/internal/fault"
	"github.com/hearthvault/backend/internal/identity"
)

type sequenceIDProvider struct {
	next int
}

func (g *sequenceIDProvider) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("id-%d", g.next), nil
}

type fakeObjectStore struct {
	presignedUploads   []string
	presignedDownloads []string
	deletedKeys        []string
	deleteErr          error
}

func (f *fakeObjectStore) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	f.presignedUploads = append(f.presignedUploads, key)
	return "https://store.example.com/put/" + key, nil
}

func (f *fakeObjectStore) PresignDownload(ctx context.Context, key string) (string, error) {
	f.presignedDownloads = append(f.presignedDownloads, key)
	return "https://store.example.com/get/" + key, nil
}

func (f *fakeObjectStore) DeleteObject(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedKeys = append(f.deletedKeys, key)
	return nil
}

var (
	uploader    = identity.Actor{ID: "member-1", Role: identity.RoleMember, FamilyID: "family-1"}
	otherMember = identity.Actor{ID: "member-2", Role: identity.RoleMember, FamilyID: "family-1"}
	familyAdmin = identity.Actor{ID: "admin-1", Role: identity.RoleAdmin, FamilyID: "family-1"}
	outsider    = identity.Actor{ID: "stranger-1", Role: identity.RoleAdmin, FamilyID: "family-2"}
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeObjectStore) {
	t.Helper()

	dsn := fmt.Sprintf("file:attachments_test_%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&entries.Entry{}, &Attachment{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := db.Create(&entries.Entry{
		ID:        "entry-1",
		FamilyID:  "family-1",
		SectionID: "section-1",
		Title:     "Passport scans",
		Content:   "both passports",
		CreatedBy: uploader.ID,
		UpdatedBy: uploader.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error; err != nil {
		t.Fatalf("failed to seed entry: %v", err)
	}

	store := &fakeObjectStore{}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return now },
		IDProvider: &sequenceIDProvider{},
		Store:      store,
	})
	if err != nil {
		t.Fatalf("failed to construct attachments service: %v", err)
	}
	return service, db, store
}

func mustRecord(t *testing.T, service *Service, actor identity.Actor) Attachment {
	t.Helper()
	attachment, err := service.Record(context.Background(), actor, RecordInput{
		EntryID:     "entry-1",
		Filename:    "passport.pdf",
		StoragePath: "family-1/entry-1/id-9-passport.pdf",
		MimeType:    "application/pdf",
		SizeBytes:   1024,
	})
	if err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	return attachment
}

func TestRequestUploadValidatesBeforePresigning(t *testing.T) {
	service, _, store := newTestService(t)

	_, err := service.RequestUpload(context.Background(), uploader, "entry-1", "tool.exe", "application/x-msdownload")
	if fault.KindOf(err) != fault.KindValidationFailed {
		t.Fatalf("expected disallowed type to be rejected, got %v", err)
	}
	if len(store.presignedUploads) != 0 {
		t.Fatalf("no capability may be issued for a rejected type")
	}

	grant, err := service.RequestUpload(context.Background(), uploader, "entry-1", "passport (copy).pdf", "application/pdf")
	if err != nil {
		t.Fatalf("unexpected presign error: %v", err)
	}
	if !strings.HasPrefix(grant.StoragePath, "family-1/entry-1/") {
		t.Fatalf("expected namespaced key, got %s", grant.StoragePath)
	}
	if strings.Contains(grant.StoragePath, " ") || strings.Contains(grant.StoragePath, "(") {
		t.Fatalf("expected sanitized filename in key, got %s", grant.StoragePath)
	}
	if grant.UploadURL != "https://store.example.com/put/"+grant.StoragePath {
		t.Fatalf("unexpected upload URL %s", grant.UploadURL)
	}
}

func TestRequestUploadRequiresActiveEntry(t *testing.T) {
	service, db, _ := newTestService(t)

	if _, err := service.RequestUpload(context.Background(), outsider, "entry-1", "a.pdf", "application/pdf"); fault.KindOf(err) != fault.KindNotFound {
		t.Fatalf("expected cross-family entry to be invisible, got %v", err)
	}

	deletedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := db.Model(&entries.Entry{}).Where("id = ?", "entry-1").Update("deleted_at", deletedAt).Error; err != nil {
		t.Fatalf("failed to soft-delete entry: %v", err)
	}
	if _, err := service.RequestUpload(context.Background(), uploader, "entry-1", "a.pdf", "application/pdf"); fault.KindOf(err) != fault.KindNotFound {
		t.Fatalf("expected soft-deleted entry to refuse uploads, got %v", err)
	}
}

func TestRecordEnforcesSizeAndType(t *testing.T) {
	service, _, _ := newTestService(t)

	base := RecordInput{
		EntryID:     "entry-1",
		Filename:    "big.pdf",
		StoragePath: "family-1/entry-1/id-9-big.pdf",
		MimeType:    "application/pdf",
	}

	oversized := base
	oversized.SizeBytes = MaxUploadBytes + 1
	if _, err := service.Record(context.Background(), uploader, oversized); fault.KindOf(err) != fault.KindValidationFailed {
		t.Fatalf("expected oversized upload to be rejected, got %v", err)
	}

	empty := base
	empty.SizeBytes = 0
	if _, err := service.Record(context.Background(), uploader, empty); fault.KindOf(err) != fault.KindValidationFailed {
		t.Fatalf("expected empty upload to be rejected, got %v", err)
	}

	wrongType := base
	wrongType.SizeBytes = 1024
	wrongType.MimeType = "application/x-msdownload"
	if _, err := service.Record(context.Background(), uploader, wrongType); fault.KindOf(err) != fault.KindValidationFailed {
		t.Fatalf("expected disallowed type to be rejected at record time, got %v", err)
	}

	ok := base
	ok.SizeBytes = MaxUploadBytes
	attachment, err := service.Record(context.Background(), uploader, ok)
	if err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	if attachment.UploadedBy != uploader.ID {
		t.Fatalf("expected uploader stamp, got %s", attachment.UploadedBy)
	}
}

func TestRequestDownloadIsFamilyScoped(t *testing.T) {
	service, _, store := newTestService(t)
	attachment := mustRecord(t, service, uploader)

	url, err := service.RequestDownload(context.Background(), otherMember, attachment.ID)
	if err != nil {
		t.Fatalf("unexpected download error: %v", err)
	}
	if url != "https://store.example.com/get/"+attachment.StoragePath {
		t.Fatalf("unexpected download URL %s", url)
	}
	if len(store.presignedDownloads) != 1 {
		t.Fatalf("expected one presigned download")
	}

	if _, err := service.RequestDownload(context.Background(), outsider, attachment.ID); fault.KindOf(err) != fault.KindNotFound {
		t.Fatalf("cross-family attachment must look absent, got %v", err)
	}
	if len(store.presignedDownloads) != 1 {
		t.Fatalf("no capability may be issued across families")
	}
}

func TestDeleteRemovesObjectThenMetadata(t *testing.T) {
	service, db, store := newTestService(t)
	attachment := mustRecord(t, service, uploader)

	if err := service.Delete(context.Background(), otherMember, attachment.ID); fault.KindOf(err) != fault.KindPermissionDenied {
		t.Fatalf("expected non-uploader member to be denied, got %v", err)
	}

	if err := service.Delete(context.Background(), uploader, attachment.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if len(store.deletedKeys) != 1 || store.deletedKeys[0] != attachment.StoragePath {
		t.Fatalf("expected the stored object to be deleted, got %v", store.deletedKeys)
	}
	var count int64
	if err := db.Model(&Attachment{}).Where("id = ?", attachment.ID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count attachments: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected metadata row to be removed")
	}
}

func TestDeleteAdminMayRemoveAnyUpload(t *testing.T) {
	service, _, _ := newTestService(t)
	attachment := mustRecord(t, service, uploader)

	if err := service.Delete(context.Background(), familyAdmin, attachment.ID); err != nil {
		t.Fatalf("expected admin delete to succeed, got %v", err)
	}
}

func TestDeleteStopsWhenObjectDeleteFails(t *testing.T) {
	service, db, store := newTestService(t)
	attachment := mustRecord(t, service, uploader)
	store.deleteErr = errors.New("store unavailable")

	if err := service.Delete(context.Background(), uploader, attachment.ID); err == nil {
		t.Fatalf("expected the object store failure to surface")
	}

	// The metadata row must survive so the delete can be retried.
	var count int64
	if err := db.Model(&Attachment{}).Where("id = ?", attachment.ID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count attachments: %v", err)
	}
	if count != 1 {
		t.Fatalf("metadata must remain when the object delete fails")
	}
}

func TestListForEntryHiddenAfterSoftDelete(t *testing.T) {
	service, db, _ := newTestService(t)
	attachment := mustRecord(t, service, uploader)

	results, err := service.ListForEntry(context.Background(), otherMember, "entry-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(results) != 1 || results[0].ID != attachment.ID {
		t.Fatalf("expected the attachment to be listed")
	}

	deletedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := db.Model(&entries.Entry{}).Where("id = ?", "entry-1").Update("deleted_at", deletedAt).Error; err != nil {
		t.Fatalf("failed to soft-delete entry: %v", err)
	}

	if _, err := service.ListForEntry(context.Background(), otherMember, "entry-1"); fault.KindOf(err) != fault.KindNotFound {
		t.Fatalf("attachments of a deleted entry must be invisible, got %v", err)
	}

	// The rows themselves are preserved.
	var count int64
	if err := db.Model(&Attachment{}).Where("entry_id = ?", "entry-1").Count(&count).Error; err != nil {
		t.Fatalf("failed to count attachments: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected attachment rows to survive the soft delete")
	}
}

func TestSanitizeFilename(t *testing.T) {
	got := SanitizeFilename("tax return (2025) [final].pdf")
	if got != "tax_return__2025___final_.pdf" {
		t.Fatalf("unexpected sanitized filename %q", got)
	}
}
