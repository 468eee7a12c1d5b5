package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hearthvault/backend/internal/fault"
	"github.com/hearthvault/backend/internal/identity"
	"github.com/hearthvault/backend/internal/policy"
)

const (
	opList    = "catalog.list"
	opCreate  = "catalog.create_custom"
	opUpdate  = "catalog.update"
	opReorder = "catalog.reorder"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceConfig describes the dependencies of the section catalog.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identity.IDProvider
	Logger     *zap.Logger
}

// Service maintains the per-family ordered section catalog.
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

// SeedDefaultsTx inserts the built-in sections for a new family, sortOrder
// 1..15, inside the caller's transaction.
func (s *Service) SeedDefaultsTx(tx *gorm.DB, familyID string) error {
	now := s.clock().UTC()
	for index, def := range defaultSections {
		id, err := s.ids.NewID()
		if err != nil {
			return err
		}
		section := Section{
			ID:          id,
			FamilyID:    familyID,
			Name:        def.name,
			Description: def.description,
			Icon:        def.icon,
			SortOrder:   index + 1,
			IsDefault:   true,
			CreatedAt:   now,
		}
		if err := tx.Create(&section).Error; err != nil {
			return err
		}
	}
	return nil
}

// ListSections returns the family's sections in display order.
func (s *Service) ListSections(ctx context.Context, familyID string) ([]Section, error) {
	var sections []Section
	if err := s.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Order("sort_order ASC").
		Find(&sections).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("family_id", familyID))
		return nil, err
	}
	return sections, nil
}

// CreateSectionInput carries the admin form for a custom section.
type CreateSectionInput struct {
	Name        string
	Description string
	Icon        string
}

// CreateCustom appends a custom section after the current maximum sort order.
// Admin only.
func (s *Service) CreateCustom(ctx context.Context, actor identity.Actor, input CreateSectionInput) (Section, error) {
	if !policy.CanManageFamily(actor) {
		return Section{}, fault.New(fault.KindPermissionDenied, opCreate, "admin role required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Section{}, fault.New(fault.KindValidationFailed, opCreate, "section name is required")
	}
	icon := strings.TrimSpace(input.Icon)
	if icon == "" {
		icon = defaultIcon
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Section{}, err
	}

	var section Section
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxOrder int
		row := tx.Model(&Section{}).
			Where("family_id = ?", actor.FamilyID).
			Select("COALESCE(MAX(sort_order), 0)").
			Row()
		if err := row.Scan(&maxOrder); err != nil {
			return err
		}
		section = Section{
			ID:          id,
			FamilyID:    actor.FamilyID,
			Name:        name,
			Description: strings.TrimSpace(input.Description),
			Icon:        icon,
			SortOrder:   maxOrder + 1,
			IsDefault:   false,
			CreatedAt:   s.clock().UTC(),
		}
		return tx.Create(&section).Error
	})
	if txErr != nil {
		s.logError(opCreate, "transaction_failed", txErr, zap.String("family_id", actor.FamilyID))
		return Section{}, txErr
	}
	return section, nil
}

// UpdateSection renames a section and updates its description and icon.
// Admin only; the section must belong to the actor's family.
func (s *Service) UpdateSection(ctx context.Context, actor identity.Actor, sectionID string, input CreateSectionInput) error {
	if !policy.CanManageFamily(actor) {
		return fault.New(fault.KindPermissionDenied, opUpdate, "admin role required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return fault.New(fault.KindValidationFailed, opUpdate, "section name is required")
	}

	result := s.db.WithContext(ctx).Model(&Section{}).
		Where("id = ? AND family_id = ?", sectionID, actor.FamilyID).
		Updates(map[string]interface{}{
			"name":        name,
			"description": strings.TrimSpace(input.Description),
			"icon":        strings.TrimSpace(input.Icon),
		})
	if result.Error != nil {
		s.logError(opUpdate, "update_failed", result.Error, zap.String("section_id", sectionID))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fault.New(fault.KindNotFound, opUpdate, "section not found")
	}
	return nil
}

// Reorder swaps the section's sort order with its neighbor in the requested
// direction. Moving the first section up or the last one down is a silent
// no-op. The two-row swap runs in one transaction so a crash cannot leave the
// catalog with a duplicated sort order.
func (s *Service) Reorder(ctx context.Context, actor identity.Actor, sectionID string, direction Direction) error {
	if !policy.CanManageFamily(actor) {
		return fault.New(fault.KindPermissionDenied, opReorder, "admin role required")
	}
	if direction != DirectionUp && direction != DirectionDown {
		return fault.New(fault.KindValidationFailed, opReorder, "unknown direction")
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sections []Section
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("family_id = ?", actor.FamilyID).
			Order("sort_order ASC").
			Find(&sections).Error; err != nil {
			return err
		}

		index := -1
		for i, section := range sections {
			if section.ID == sectionID {
				index = i
				break
			}
		}
		if index == -1 {
			return fault.New(fault.KindNotFound, opReorder, "section not found")
		}

		neighbor := index - 1
		if direction == DirectionDown {
			neighbor = index + 1
		}
		if neighbor < 0 || neighbor >= len(sections) {
			return nil
		}

		target, other := sections[index], sections[neighbor]
		if err := tx.Model(&Section{}).
			Where("id = ?", target.ID).
			Update("sort_order", other.SortOrder).Error; err != nil {
			return err
		}
		return tx.Model(&Section{}).
			Where("id = ?", other.ID).
			Update("sort_order", target.SortOrder).Error
	})
	if txErr != nil {
		if fault.KindOf(txErr) == "" {
			s.logError(opReorder, "transaction_failed", txErr, zap.String("section_id", sectionID))
		}
		return txErr
	}
	return nil
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
	s.logger.Error("catalog service error", attrs...)
}
