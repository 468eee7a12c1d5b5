package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hearthvault/backend/internal/fault"
	"github.com/hearthvault/backend/internal/policy"
)

const defaultSessionTTL = 30 * 24 * time.Hour

const (
	opSetup         = "identity.setup"
	opLogin         = "identity.login"
	opValidate      = "identity.validate"
	opLogout        = "identity.logout"
	opInvalidateAll = "identity.invalidate_all"
	opListMembers   = "identity.members.list"
	opRemoveMember  = "identity.members.remove"
	opUpdateRole    = "identity.members.update_role"
	opSetupRequired = "identity.setup_required"
)

var (
	errMissingDatabase      = errors.New("database handle is required")
	errMissingIDProvider    = errors.New("id provider is required")
	errMissingTokenProvider = errors.New("token provider is required")
	noOpLogger              = zap.NewNop()
)

// SectionSeeder inserts the built-in section catalog for a new family inside
// the bootstrap transaction.
type SectionSeeder interface {
	SeedDefaultsTx(tx *gorm.DB, familyID string) error
}

// ServiceConfig describes the dependencies of the identity service.
type ServiceConfig struct {
	Database      *gorm.DB
	Clock         func() time.Time
	IDProvider    IDProvider
	TokenProvider TokenProvider
	SectionSeeder SectionSeeder
	SessionTTL    time.Duration
	Logger        *zap.Logger
}

// Service owns families, users, and sessions: first-run bootstrap, login,
// opaque-token session validation, and member administration.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	ids        IDProvider
	tokens     TokenProvider
	seeder     SectionSeeder
	sessionTTL time.Duration
	logger     *zap.Logger
}

// NewService validates the configuration and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.TokenProvider == nil {
		return nil, errMissingTokenProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		ids:        cfg.IDProvider,
		tokens:     cfg.TokenProvider,
		seeder:     cfg.SectionSeeder,
		sessionTTL: ttl,
		logger:     logger,
	}, nil
}

// Credential is an issued session token and its expiry, destined for a cookie.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// SetupInput carries the first-run bootstrap form.
type SetupInput struct {
	FamilyName  string
	Email       string
	DisplayName string
	Password    string
}

// SetupRequired reports whether no user exists yet anywhere in the store.
func (s *Service) SetupRequired(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Count(&count).Error; err != nil {
		s.logError(opSetupRequired, "count_failed", err)
		return false, err
	}
	return count == 0, nil
}

// InitializeSystem performs the one-time bootstrap: family, admin user, the
// default section catalog, and a first session, all in a single transaction.
// The no-user precondition is re-checked inside the same transaction so two
// racing setups cannot both succeed.
func (s *Service) InitializeSystem(ctx context.Context, input SetupInput) (Actor, Credential, error) {
	if strings.TrimSpace(input.FamilyName) == "" || strings.TrimSpace(input.Email) == "" ||
		strings.TrimSpace(input.DisplayName) == "" || input.Password == "" {
		return Actor{}, Credential{}, fault.New(fault.KindValidationFailed, opSetup, "all fields are required")
	}
	if len(input.Password) < MinPasswordLength {
		return Actor{}, Credential{}, fault.New(fault.KindValidationFailed, opSetup, "password must be at least 8 characters")
	}

	hashed, err := HashPassword(input.Password)
	if err != nil {
		s.logError(opSetup, "hash_failed", err)
		return Actor{}, Credential{}, err
	}

	familyID, err := s.ids.NewID()
	if err != nil {
		return Actor{}, Credential{}, err
	}
	userID, err := s.ids.NewID()
	if err != nil {
		return Actor{}, Credential{}, err
	}

	now := s.clock().UTC()
	user := User{
		ID:             userID,
		Email:          NormalizeEmail(input.Email),
		HashedPassword: hashed,
		DisplayName:    strings.TrimSpace(input.DisplayName),
		Role:           RoleAdmin,
		FamilyID:       familyID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var credential Credential
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fault.New(fault.KindConflict, opSetup, "setup already completed")
		}
		if err := tx.Create(&Family{
			ID:        familyID,
			Name:      strings.TrimSpace(input.FamilyName),
			CreatedBy: userID,
			CreatedAt: now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if s.seeder != nil {
			if err := s.seeder.SeedDefaultsTx(tx, familyID); err != nil {
				return err
			}
		}
		issued, err := s.createSessionTx(tx, userID, now)
		if err != nil {
			return err
		}
		credential = issued
		return nil
	})
	if txErr != nil {
		if fault.KindOf(txErr) == "" {
			s.logError(opSetup, "transaction_failed", txErr)
		}
		return Actor{}, Credential{}, txErr
	}

	s.logger.Info("system initialized",
		zap.String("family_id", familyID),
		zap.String("user_id", userID))
	return actorFromUser(user), credential, nil
}

// Login verifies the password for the email and issues a fresh session.
// Unknown email and wrong password are deliberately indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (Actor, Credential, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Actor{}, Credential{}, fault.New(fault.KindValidationFailed, opLogin, "email and password are required")
	}

	var user User
	err := s.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Actor{}, Credential{}, fault.New(fault.KindUnauthorized, opLogin, "invalid email or password")
	}
	if err != nil {
		s.logError(opLogin, "lookup_failed", err)
		return Actor{}, Credential{}, err
	}
	if !VerifyPassword(user.HashedPassword, password) {
		return Actor{}, Credential{}, fault.New(fault.KindUnauthorized, opLogin, "invalid email or password")
	}

	var credential Credential
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issued, err := s.createSessionTx(tx, user.ID, s.clock().UTC())
		if err != nil {
			return err
		}
		credential = issued
		return nil
	})
	if txErr != nil {
		s.logError(opLogin, "session_create_failed", txErr, zap.String("user_id", user.ID))
		return Actor{}, Credential{}, txErr
	}
	return actorFromUser(user), credential, nil
}

// Validate resolves an opaque session token to its actor. A missing, expired,
// or orphaned session is the anonymous outcome, never a storage fault; expired
// rows are removed on sight.
func (s *Service) Validate(ctx context.Context, rawToken string) (Actor, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return Actor{}, fault.New(fault.KindUnauthorized, opValidate, "no session")
	}

	var session Session
	err := s.db.WithContext(ctx).Where("id = ?", token).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Actor{}, fault.New(fault.KindUnauthorized, opValidate, "no session")
	}
	if err != nil {
		s.logError(opValidate, "session_lookup_failed", err)
		return Actor{}, err
	}

	if !session.ExpiresAt.After(s.clock().UTC()) {
		if err := s.db.WithContext(ctx).Delete(&Session{}, "id = ?", session.ID).Error; err != nil {
			s.logError(opValidate, "stale_session_delete_failed", err)
		}
		return Actor{}, fault.New(fault.KindUnauthorized, opValidate, "session expired")
	}

	var user User
	err = s.db.WithContext(ctx).Where("id = ?", session.UserID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The member was removed; the session is orphaned.
		return Actor{}, fault.New(fault.KindUnauthorized, opValidate, "no session")
	}
	if err != nil {
		s.logError(opValidate, "user_lookup_failed", err, zap.String("user_id", session.UserID))
		return Actor{}, err
	}

	return actorFromUser(user), nil
}

// Logout removes the session row; an unknown token is a no-op.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil
	}
	if err := s.db.WithContext(ctx).Delete(&Session{}, "id = ?", token).Error; err != nil {
		s.logError(opLogout, "delete_failed", err)
		return err
	}
	return nil
}

// InvalidateAllSessions revokes every session belonging to the user.
func (s *Service) InvalidateAllSessions(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Delete(&Session{}, "user_id = ?", userID).Error; err != nil {
		s.logError(opInvalidateAll, "delete_failed", err, zap.String("user_id", userID))
		return err
	}
	return nil
}

// Member is the admin-facing view of a family account.
type Member struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
}

// ListMembers returns the actor's family roster. Admin only.
func (s *Service) ListMembers(ctx context.Context, actor Actor) ([]Member, error) {
	if !policy.CanManageFamily(actor) {
		return nil, fault.New(fault.KindPermissionDenied, opListMembers, "admin role required")
	}

	var users []User
	if err := s.db.WithContext(ctx).
		Where("family_id = ?", actor.FamilyID).
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		s.logError(opListMembers, "query_failed", err, zap.String("family_id", actor.FamilyID))
		return nil, err
	}

	members := make([]Member, 0, len(users))
	for _, u := range users {
		members = append(members, Member{
			ID:          u.ID,
			Email:       u.Email,
			DisplayName: u.DisplayName,
			Role:        u.Role,
			CreatedAt:   u.CreatedAt,
		})
	}
	return members, nil
}

// RemoveMember hard-deletes a member account and revokes their sessions.
// Admin only; self-removal is rejected so a family always keeps its admin.
func (s *Service) RemoveMember(ctx context.Context, actor Actor, memberID string) error {
	if !policy.CanManageFamily(actor) {
		return fault.New(fault.KindPermissionDenied, opRemoveMember, "admin role required")
	}
	if memberID == actor.ID {
		return fault.New(fault.KindValidationFailed, opRemoveMember, "cannot remove yourself")
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND family_id = ?", memberID, actor.FamilyID).
			Take(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fault.New(fault.KindNotFound, opRemoveMember, "member not found")
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&Session{}, "user_id = ?", member.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&User{}, "id = ?", member.ID).Error
	})
	if txErr != nil {
		if fault.KindOf(txErr) == "" {
			s.logError(opRemoveMember, "transaction_failed", txErr, zap.String("member_id", memberID))
		}
		return txErr
	}

	s.logger.Info("member removed",
		zap.String("family_id", actor.FamilyID),
		zap.String("member_id", memberID),
		zap.String("removed_by", actor.ID))
	return nil
}

// UpdateMemberRole changes a member's role. Admin only.
func (s *Service) UpdateMemberRole(ctx context.Context, actor Actor, memberID string, role Role) error {
	if !policy.CanManageFamily(actor) {
		return fault.New(fault.KindPermissionDenied, opUpdateRole, "admin role required")
	}
	if role != RoleAdmin && role != RoleMember {
		return fault.New(fault.KindValidationFailed, opUpdateRole, "unknown role")
	}

	result := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND family_id = ?", memberID, actor.FamilyID).
		Updates(map[string]interface{}{"role": role, "updated_at": s.clock().UTC()})
	if result.Error != nil {
		s.logError(opUpdateRole, "update_failed", result.Error, zap.String("member_id", memberID))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fault.New(fault.KindNotFound, opUpdateRole, "member not found")
	}
	return nil
}

// CreateSessionTx issues a session for userID inside an existing transaction.
// The invite acceptance flow uses it to keep user creation and session
// issuance atomic.
func (s *Service) CreateSessionTx(tx *gorm.DB, userID string) (Credential, error) {
	return s.createSessionTx(tx, userID, s.clock().UTC())
}

func (s *Service) createSessionTx(tx *gorm.DB, userID string, now time.Time) (Credential, error) {
	token, err := s.tokens.NewToken()
	if err != nil {
		return Credential{}, err
	}
	expiresAt := now.Add(s.sessionTTL)
	if err := tx.Create(&Session{ID: token, UserID: userID, ExpiresAt: expiresAt}).Error; err != nil {
		return Credential{}, err
	}
	return Credential{Token: token, ExpiresAt: expiresAt}, nil
}

func actorFromUser(user User) Actor {
	return Actor{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		FamilyID:    user.FamilyID,
	}
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
	s.logger.Error("identity service error", attrs...)
}
