package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/hearthvault/backend/internal/fault"
	"github.com/hearthvault/backend/internal/identity"
)

type sequenceIDProvider struct {
	next int
}

func (g *sequenceIDProvider) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("section-%d", g.next), nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:catalog_test_%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Section{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("failed to construct catalog service: %v", err)
	}
	return service, db
}

func adminActor(familyID string) identity.Actor {
	return identity.Actor{ID: "admin-1", Role: identity.RoleAdmin, FamilyID: familyID}
}

func TestSeedDefaultsCreatesOrderedCatalog(t *testing.T) {
	service, db := newTestService(t)

	if err := service.SeedDefaultsTx(db, "family-1"); err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}

	sections, err := service.ListSections(context.Background(), "family-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(sections) != 15 {
		t.Fatalf("expected 15 default sections, got %d", len(sections))
	}
	for i, section := range sections {
		if section.SortOrder != i+1 {
			t.Fatalf("expected contiguous sort order, got %d at position %d", section.SortOrder, i)
		}
		if !section.IsDefault {
			t.Fatalf("expected section %s to be marked default", section.Name)
		}
		if section.Icon == "" {
			t.Fatalf("expected section %s to carry an icon", section.Name)
		}
	}
	if sections[0].Name != "Personal Information" {
		t.Fatalf("unexpected first section %s", sections[0].Name)
	}
}

func TestSeedDefaultsIsFamilyScoped(t *testing.T) {
	service, db := newTestService(t)

	if err := service.SeedDefaultsTx(db, "family-1"); err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}
	if err := service.SeedDefaultsTx(db, "family-2"); err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}

	sections, err := service.ListSections(context.Background(), "family-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(sections) != 15 {
		t.Fatalf("expected the other family's catalog to stay invisible, got %d sections", len(sections))
	}
}

func TestCreateCustomAppendsAfterMaxOrder(t *testing.T) {
	service, db := newTestService(t)
	if err := service.SeedDefaultsTx(db, "family-1"); err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}

	section, err := service.CreateCustom(context.Background(), adminActor("family-1"), CreateSectionInput{
		Name:        "  Garden Plans  ",
		Description: "Seasonal planting notes",
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if section.SortOrder != 16 {
		t.Fatalf("expected sort order 16, got %d", section.SortOrder)
	}
	if section.Name != "Garden Plans" {
		t.Fatalf("expected trimmed name, got %q", section.Name)
	}
	if section.Icon != defaultIcon {
		t.Fatalf("expected fallback icon, got %q", section.Icon)
	}
	if section.IsDefault {
		t.Fatalf("custom section must not be marked default")
	}
}

func TestCreateCustomGuards(t *testing.T) {
	service, _ := newTestService(t)

	memberActor := identity.Actor{ID: "member-1", Role: identity.RoleMember, FamilyID: "family-1"}
	if _, err := service.CreateCustom(context.Background(), memberActor, CreateSectionInput{Name: "X"}); fault.KindOf(err) != fault.KindPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := service.CreateCustom(context.Background(), adminActor("family-1"), CreateSectionInput{Name: "   "}); fault.KindOf(err) != fault.KindValidationFailed {
		t.Fatalf("expected validation failure for blank name, got %v", err)
	}
}

func TestUpdateSectionScopedToFamily(t *testing.T) {
	service, db := newTestService(t)
	if err := service.SeedDefaultsTx(db, "family-1"); err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}

	err := service.UpdateSection(context.Background(), adminActor("family-1"), "section-1", CreateSectionInput{
		Name: "Vital Papers",
		Icon: "🗂️",
	})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	var stored Section
	if err := db.First(&stored, "id = ?", "section-1").Error; err != nil {
		t.Fatalf("failed to load section: %v", err)
	}
	if stored.Name != "Vital Papers" {
		t.Fatalf("expected renamed section, got %s", stored.Name)
	}

	err = service.UpdateSection(context.Background(), adminActor("family-2"), "section-1", CreateSectionInput{Name: "Hijack"})
	if fault.KindOf(err) != fault.KindNotFound {
		t.Fatalf("expected not found across families, got %v", err)
	}
}

func TestReorderSwapsNeighbors(t *testing.T) {
	service, db := newTestService(t)
	if err := service.SeedDefaultsTx(db, "family-1"); err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}

	if err := service.Reorder(context.Background(), adminActor("family-1"), "section-2", DirectionUp); err != nil {
		t.Fatalf("unexpected reorder error: %v", err)
	}

	sections, err := service.ListSections(context.Background(), "family-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if sections[0].ID != "section-2" || sections[1].ID != "section-1" {
		t.Fatalf("expected sections 1 and 2 to swap, got %s then %s", sections[0].ID, sections[1].ID)
	}
}

func TestReorderEdgesAreSilentNoOps(t *testing.T) {
	service, db := newTestService(t)
	if err := service.SeedDefaultsTx(db, "family-1"); err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}

	if err := service.Reorder(context.Background(), adminActor("family-1"), "section-1", DirectionUp); err != nil {
		t.Fatalf("moving the first section up must be a no-op, got %v", err)
	}
	if err := service.Reorder(context.Background(), adminActor("family-1"), "section-15", DirectionDown); err != nil {
		t.Fatalf("moving the last section down must be a no-op, got %v", err)
	}

	sections, err := service.ListSections(context.Background(), "family-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if sections[0].ID != "section-1" || sections[14].ID != "section-15" {
		t.Fatalf("expected order unchanged at the edges")
	}
}

func TestReorderUnknownSection(t *testing.T) {
	service, db := newTestService(t)
	if err := service.SeedDefaultsTx(db, "family-1"); err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}

	err := service.Reorder(context.Background(), adminActor("family-1"), "missing", DirectionUp)
	if fault.KindOf(err) != fault.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParseDirection(t *testing.T) {
	if direction, ok := ParseDirection("UP"); !ok || direction != DirectionUp {
		t.Fatalf("expected UP to parse, got %v %v", direction, ok)
	}
	if _, ok := ParseDirection("sideways"); ok {
		t.Fatalf("expected sideways to be rejected")
	}
}
