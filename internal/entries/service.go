package entries

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hearthvault/backend/internal/catalog"
	"github.com/hearthvault/backend/internal/fault"
	"github.com/hearthvault/backend/internal/identity"
	"github.com/hearthvault/backend/internal/policy"
)

const (
	opCreate          = "entries.create"
	opGet             = "entries.get"
	opUpdate          = "entries.update"
	opSoftDelete      = "entries.soft_delete"
	opToggleSensitive = "entries.toggle_sensitive"
	opList            = "entries.list"
	opSearch          = "entries.search"
	opHistory         = "entries.history"
	opActivity        = "entries.activity"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceConfig describes the dependencies of the entry lifecycle manager.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identity.IDProvider
	Logger     *zap.Logger
}

// Service owns the entry lifecycle: creation, edit with a pre-edit history
// snapshot, soft deletion, and sensitivity gating. Every query carries the
// actor's family scope.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	ids    identity.IDProvider
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
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, ids: cfg.IDProvider, logger: logger}, nil
}

// CreateInput carries the entry creation form.
type CreateInput struct {
	SectionID   string
	Title       string
	Content     string
	IsSensitive bool
}

// Create records a new entry in the given section. The section must resolve
// within the actor's family.
func (s *Service) Create(ctx context.Context, actor identity.Actor, input CreateInput) (Entry, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	sectionID := strings.TrimSpace(input.SectionID)
	if title == "" || content == "" || sectionID == "" {
		return Entry{}, fault.New(fault.KindValidationFailed, opCreate, "title, content, and section are required")
	}

	var section catalog.Section
	err := s.db.WithContext(ctx).
		Where("id = ? AND family_id = ?", sectionID, actor.FamilyID).
		Take(&section).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, fault.New(fault.KindNotFound, opCreate, "section not found")
	}
	if err != nil {
		s.logError(opCreate, "section_lookup_failed", err, zap.String("section_id", sectionID))
		return Entry{}, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Entry{}, err
	}

	now := s.clock().UTC()
	entry := Entry{
		ID:          id,
		FamilyID:    actor.FamilyID,
		SectionID:   sectionID,
		Title:       title,
		Content:     content,
		IsSensitive: input.IsSensitive,
		CreatedBy:   actor.ID,
		UpdatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("family_id", actor.FamilyID))
		return Entry{}, err
	}
	return entry, nil
}

// Get loads an active entry scoped to the actor's family.
func (s *Service) Get(ctx context.Context, actor identity.Actor, entryID string) (Entry, error) {
	var entry Entry
	err := s.db.WithContext(ctx).
		Where("id = ? AND family_id = ? AND deleted_at IS NULL", entryID, actor.FamilyID).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, fault.Wrap(fault.KindNotFound, opGet, "entry not found", err)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("entry_id", entryID))
		return Entry{}, err
	}
	return entry, nil
}

// UpdateInput carries the entry edit form.
type UpdateInput struct {
	Title       string
	Content     string
	IsSensitive bool
}

// Update edits an entry, snapshotting the pre-edit title and content into the
// history before overwriting. The snapshot's editedAt is the entry's prior
// updatedAt, so each history row records what the entry looked like until now.
// Snapshot and overwrite share one transaction with a row lock so concurrent
// edits cannot clobber each other's snapshot.
func (s *Service) Update(ctx context.Context, actor identity.Actor, entryID string, input UpdateInput) (Entry, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		return Entry{}, fault.New(fault.KindValidationFailed, opUpdate, "title and content are required")
	}

	var updated Entry
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry Entry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND family_id = ? AND deleted_at IS NULL", entryID, actor.FamilyID).
			Take(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fault.New(fault.KindNotFound, opUpdate, "entry not found")
		}
		if err != nil {
			return err
		}
		if !policy.CanEditEntry(actor, entry.CreatedBy) {
			return fault.New(fault.KindPermissionDenied, opUpdate, "not the author of this entry")
		}

		historyID, err := s.ids.NewID()
		if err != nil {
			return err
		}
		snapshot := EntryHistory{
			ID:       historyID,
			EntryID:  entry.ID,
			Title:    entry.Title,
			Content:  entry.Content,
			EditedBy: actor.ID,
			EditedAt: entry.UpdatedAt,
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}

		now := s.clock().UTC()
		updates := map[string]interface{}{
			"title":        title,
			"content":      content,
			"is_sensitive": input.IsSensitive,
			"updated_by":   actor.ID,
			"updated_at":   now,
		}
		if err := tx.Model(&Entry{}).Where("id = ?", entry.ID).Updates(updates).Error; err != nil {
			return err
		}

		entry.Title = title
		entry.Content = content
		entry.IsSensitive = input.IsSensitive
		entry.UpdatedBy = actor.ID
		entry.UpdatedAt = now
		updated = entry
		return nil
	})
	if txErr != nil {
		if fault.KindOf(txErr) == "" {
			s.logError(opUpdate, "transaction_failed", txErr, zap.String("entry_id", entryID))
		}
		return Entry{}, txErr
	}
	return updated, nil
}

// SoftDelete marks the entry deleted without removing its history or
// attachments. Admin only.
func (s *Service) SoftDelete(ctx context.Context, actor identity.Actor, entryID string) error {
	if !policy.CanDeleteEntry(actor) {
		return fault.New(fault.KindPermissionDenied, opSoftDelete, "only admins can delete entries")
	}

	now := s.clock().UTC()
	result := s.db.WithContext(ctx).Model(&Entry{}).
		Where("id = ? AND family_id = ? AND deleted_at IS NULL", entryID, actor.FamilyID).
		Update("deleted_at", now)
	if result.Error != nil {
		s.logError(opSoftDelete, "update_failed", result.Error, zap.String("entry_id", entryID))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fault.New(fault.KindNotFound, opSoftDelete, "entry not found")
	}

	s.logger.Info("entry soft-deleted",
		zap.String("entry_id", entryID),
		zap.String("deleted_by", actor.ID))
	return nil
}

// ToggleSensitive flips the entry's sensitivity flag under the same permission
// as Update. The flip does not write a history row; the transition is logged
// instead, since snapshots capture title and content only.
func (s *Service) ToggleSensitive(ctx context.Context, actor identity.Actor, entryID string) (Entry, error) {
	var updated Entry
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry Entry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND family_id = ? AND deleted_at IS NULL", entryID, actor.FamilyID).
			Take(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fault.New(fault.KindNotFound, opToggleSensitive, "entry not found")
		}
		if err != nil {
			return err
		}
		if !policy.CanEditEntry(actor, entry.CreatedBy) {
			return fault.New(fault.KindPermissionDenied, opToggleSensitive, "not the author of this entry")
		}

		entry.IsSensitive = !entry.IsSensitive
		if err := tx.Model(&Entry{}).
			Where("id = ?", entry.ID).
			Update("is_sensitive", entry.IsSensitive).Error; err != nil {
			return err
		}
		updated = entry
		return nil
	})
	if txErr != nil {
		if fault.KindOf(txErr) == "" {
			s.logError(opToggleSensitive, "transaction_failed", txErr, zap.String("entry_id", entryID))
		}
		return Entry{}, txErr
	}

	s.logger.Info("entry sensitivity toggled",
		zap.String("entry_id", entryID),
		zap.Bool("is_sensitive", updated.IsSensitive),
		zap.String("toggled_by", actor.ID))
	return updated, nil
}

// List returns the family's active entries, optionally scoped to one section,
// most recently updated first.
func (s *Service) List(ctx context.Context, actor identity.Actor, sectionID string) ([]Entry, error) {
	query := s.db.WithContext(ctx).
		Where("family_id = ? AND deleted_at IS NULL", actor.FamilyID)
	if strings.TrimSpace(sectionID) != "" {
		query = query.Where("section_id = ?", sectionID)
	}

	var results []Entry
	if err := query.Order("updated_at DESC").Find(&results).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("family_id", actor.FamilyID))
		return nil, err
	}
	return results, nil
}

// Search matches active family entries whose title or content contains the
// query substring.
func (s *Service) Search(ctx context.Context, actor identity.Actor, query string) ([]Entry, error) {
	term := strings.TrimSpace(query)
	if term == "" {
		return nil, nil
	}

	pattern := "%" + term + "%"
	var results []Entry
	if err := s.db.WithContext(ctx).
		Where("family_id = ? AND deleted_at IS NULL", actor.FamilyID).
		Where("title LIKE ? OR content LIKE ?", pattern, pattern).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		s.logError(opSearch, "query_failed", err, zap.String("family_id", actor.FamilyID))
		return nil, err
	}
	return results, nil
}

// History returns the entry's edit snapshots, newest first. The entry must be
// active and in the actor's family.
func (s *Service) History(ctx context.Context, actor identity.Actor, entryID string) ([]EntryHistory, error) {
	if _, err := s.Get(ctx, actor, entryID); err != nil {
		return nil, err
	}

	var history []EntryHistory
	if err := s.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("edited_at DESC").
		Find(&history).Error; err != nil {
		s.logError(opHistory, "query_failed", err, zap.String("entry_id", entryID))
		return nil, err
	}
	return history, nil
}

// ActivityItem is one row of the admin activity log.
type ActivityItem struct {
	EntryID     string    `gorm:"column:entry_id" json:"entry_id"`
	Title       string    `gorm:"column:title" json:"title"`
	IsSensitive bool      `gorm:"column:is_sensitive" json:"is_sensitive"`
	SectionID   string    `gorm:"column:section_id" json:"section_id"`
	SectionName string    `gorm:"column:section_name" json:"section_name"`
	SectionIcon string    `gorm:"column:section_icon" json:"section_icon"`
	AuthorName  string    `gorm:"column:author_name" json:"author_name"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// RecentActivity returns the family's most recently updated active entries
// with section and editor context. Admin only.
func (s *Service) RecentActivity(ctx context.Context, actor identity.Actor, limit int) ([]ActivityItem, error) {
	if !policy.CanManageFamily(actor) {
		return nil, fault.New(fault.KindPermissionDenied, opActivity, "admin role required")
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var items []ActivityItem
	err := s.db.WithContext(ctx).
		Table("entries").
		Select("entries.id AS entry_id, entries.title, entries.is_sensitive, entries.section_id, "+
			"sections.name AS section_name, sections.icon AS section_icon, "+
			"users.display_name AS author_name, entries.created_at, entries.updated_at").
		Joins("LEFT JOIN sections ON sections.id = entries.section_id").
		Joins("LEFT JOIN users ON users.id = entries.updated_by").
		Where("entries.family_id = ? AND entries.deleted_at IS NULL", actor.FamilyID).
		Order("entries.updated_at DESC").
		Limit(limit).
		Scan(&items).Error
	if err != nil {
		s.logError(opActivity, "query_failed", err, zap.String("family_id", actor.FamilyID))
		return nil, err
	}
	return items, nil
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
	s.logger.Error("entries service error", attrs...)
}
