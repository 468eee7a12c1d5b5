package invites

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

const defaultInviteTTL = 7 * 24 * time.Hour

const (
	opCreate  = "invites.create"
	opResolve = "invites.resolve"
	opAccept  = "invites.accept"
	opRevoke  = "invites.revoke"
	opList    = "invites.list"
)

var (
	errMissingDatabase      = errors.New("database handle is required")
	errMissingIDProvider    = errors.New("id provider is required")
	errMissingTokenProvider = errors.New("token provider is required")
	errMissingIdentity      = errors.New("identity service is required")
	noOpLogger              = zap.NewNop()
)

// ServiceConfig describes the dependencies of the invite lifecycle manager.
type ServiceConfig struct {
	Database      *gorm.DB
	Clock         func() time.Time
	IDProvider    identity.IDProvider
	TokenProvider identity.TokenProvider
	Identity      *identity.Service
	Origin        string
	InviteTTL     time.Duration
	Logger        *zap.Logger
}

// Service issues, validates, and consumes invite tokens, and provisions new
// member accounts on acceptance.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	ids       identity.IDProvider
	tokens    identity.TokenProvider
	identity  *identity.Service
	origin    string
	inviteTTL time.Duration
	logger    *zap.Logger
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
	if cfg.Identity == nil {
		return nil, errMissingIdentity
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := cfg.InviteTTL
	if ttl <= 0 {
		ttl = defaultInviteTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:        cfg.Database,
		clock:     clock,
		ids:       cfg.IDProvider,
		tokens:    cfg.TokenProvider,
		identity:  cfg.Identity,
		origin:    strings.TrimRight(cfg.Origin, "/"),
		inviteTTL: ttl,
		logger:    logger,
	}, nil
}

// Link is an issued invite token plus its shareable URL.
type Link struct {
	InviteID  string
	Token     string
	URL       string
	ExpiresAt time.Time
}

// Create issues an invite for the email, or returns the existing pending one
// idempotently. Admin only. An email that already belongs to a user is a
// conflict.
func (s *Service) Create(ctx context.Context, actor identity.Actor, email string) (Link, error) {
	if !policy.CanManageFamily(actor) {
		return Link{}, fault.New(fault.KindPermissionDenied, opCreate, "admin role required")
	}
	normalized := identity.NormalizeEmail(email)
	if normalized == "" {
		return Link{}, fault.New(fault.KindValidationFailed, opCreate, "email is required")
	}

	var link Link
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existingUser identity.User
		err := tx.Where("email = ?", normalized).Take(&existingUser).Error
		if err == nil {
			return fault.New(fault.KindConflict, opCreate, "this email is already registered")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := s.clock().UTC()

		var pending Invite
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("family_id = ? AND email = ? AND status = ?", actor.FamilyID, normalized, StatusPending).
			Take(&pending).Error
		if err == nil {
			if pending.ExpiresAt.After(now) {
				link = s.linkFor(pending)
				return nil
			}
			// Lazy expiry: the stale pending invite flips and a fresh one is issued.
			if err := tx.Model(&Invite{}).
				Where("id = ?", pending.ID).
				Update("status", StatusExpired).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		id, err := s.ids.NewID()
		if err != nil {
			return err
		}
		token, err := s.tokens.NewToken()
		if err != nil {
			return err
		}
		invite := Invite{
			ID:        id,
			FamilyID:  actor.FamilyID,
			Email:     normalized,
			Token:     token,
			InvitedBy: actor.ID,
			Status:    StatusPending,
			CreatedAt: now,
			ExpiresAt: now.Add(s.inviteTTL),
		}
		if err := tx.Create(&invite).Error; err != nil {
			return err
		}
		link = s.linkFor(invite)
		return nil
	})
	if txErr != nil {
		if fault.KindOf(txErr) == "" {
			s.logError(opCreate, "transaction_failed", txErr, zap.String("family_id", actor.FamilyID))
		}
		return Link{}, txErr
	}

	s.logger.Info("invite issued",
		zap.String("family_id", actor.FamilyID),
		zap.String("invite_id", link.InviteID),
		zap.String("invited_by", actor.ID))
	return link, nil
}

// Resolve loads an invite by token and reports whether it is still
// acceptable. A pending invite past its expiry is lazily flipped to expired.
func (s *Service) Resolve(ctx context.Context, token string) (Invite, error) {
	var invite Invite
	err := s.db.WithContext(ctx).Where("token = ?", strings.TrimSpace(token)).Take(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Invite{}, fault.New(fault.KindNotFound, opResolve, "invalid invite link")
	}
	if err != nil {
		s.logError(opResolve, "lookup_failed", err)
		return Invite{}, err
	}

	switch invite.Status {
	case StatusAccepted:
		return Invite{}, fault.New(fault.KindConflict, opResolve, "this invite has already been used")
	case StatusExpired:
		return Invite{}, fault.New(fault.KindExpired, opResolve, "this invite link has expired")
	}

	if !invite.ExpiresAt.After(s.clock().UTC()) {
		if err := s.db.WithContext(ctx).Model(&Invite{}).
			Where("id = ?", invite.ID).
			Update("status", StatusExpired).Error; err != nil {
			s.logError(opResolve, "lazy_expiry_failed", err, zap.String("invite_id", invite.ID))
		}
		return Invite{}, fault.New(fault.KindExpired, opResolve, "this invite link has expired")
	}

	return invite, nil
}

// Accept consumes a pending invite: it creates the member account, flips the
// invite to accepted, and issues a session, all in one transaction. Two
// concurrent acceptances of the same token cannot both succeed because the
// status flip is a conditional update on the pending state.
func (s *Service) Accept(ctx context.Context, token, displayName, password string) (identity.Actor, identity.Credential, error) {
	name := strings.TrimSpace(displayName)
	if name == "" || password == "" {
		return identity.Actor{}, identity.Credential{}, fault.New(fault.KindValidationFailed, opAccept, "all fields are required")
	}
	if len(password) < identity.MinPasswordLength {
		return identity.Actor{}, identity.Credential{}, fault.New(fault.KindValidationFailed, opAccept, "password must be at least 8 characters")
	}

	hashed, err := identity.HashPassword(password)
	if err != nil {
		s.logError(opAccept, "hash_failed", err)
		return identity.Actor{}, identity.Credential{}, err
	}

	userID, err := s.ids.NewID()
	if err != nil {
		return identity.Actor{}, identity.Credential{}, err
	}

	var (
		actor      identity.Actor
		credential identity.Credential
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invite Invite
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ?", strings.TrimSpace(token)).
			Take(&invite).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fault.New(fault.KindNotFound, opAccept, "invalid invite link")
		}
		if err != nil {
			return err
		}

		now := s.clock().UTC()
		switch {
		case invite.Status == StatusAccepted:
			return fault.New(fault.KindConflict, opAccept, "this invite has already been used")
		case invite.Status == StatusExpired:
			return fault.New(fault.KindExpired, opAccept, "this invite link has expired")
		case !invite.ExpiresAt.After(now):
			if err := tx.Model(&Invite{}).
				Where("id = ?", invite.ID).
				Update("status", StatusExpired).Error; err != nil {
				return err
			}
			return fault.New(fault.KindExpired, opAccept, "this invite link has expired")
		}

		var existingUser identity.User
		err = tx.Where("email = ?", invite.Email).Take(&existingUser).Error
		if err == nil {
			return fault.New(fault.KindConflict, opAccept, "an account with this email already exists")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user := identity.User{
			ID:             userID,
			Email:          invite.Email,
			HashedPassword: hashed,
			DisplayName:    name,
			Role:           identity.RoleMember,
			FamilyID:       invite.FamilyID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		flip := tx.Model(&Invite{}).
			Where("id = ? AND status = ?", invite.ID, StatusPending).
			Update("status", StatusAccepted)
		if flip.Error != nil {
			return flip.Error
		}
		if flip.RowsAffected == 0 {
			return fault.New(fault.KindConflict, opAccept, "this invite has already been used")
		}

		issued, err := s.identity.CreateSessionTx(tx, userID)
		if err != nil {
			return err
		}

		actor = identity.Actor{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Role:        user.Role,
			FamilyID:    user.FamilyID,
		}
		credential = issued
		return nil
	})
	if txErr != nil {
		if fault.KindOf(txErr) == "" {
			s.logError(opAccept, "transaction_failed", txErr)
		}
		return identity.Actor{}, identity.Credential{}, txErr
	}

	s.logger.Info("invite accepted",
		zap.String("family_id", actor.FamilyID),
		zap.String("user_id", actor.ID))
	return actor, credential, nil
}

// Revoke force-expires an invite regardless of its current state. Admin only,
// scoped to the actor's family, idempotent.
func (s *Service) Revoke(ctx context.Context, actor identity.Actor, inviteID string) error {
	if !policy.CanManageFamily(actor) {
		return fault.New(fault.KindPermissionDenied, opRevoke, "admin role required")
	}

	result := s.db.WithContext(ctx).Model(&Invite{}).
		Where("id = ? AND family_id = ?", inviteID, actor.FamilyID).
		Update("status", StatusExpired)
	if result.Error != nil {
		s.logError(opRevoke, "update_failed", result.Error, zap.String("invite_id", inviteID))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fault.New(fault.KindNotFound, opRevoke, "invite not found")
	}
	return nil
}

// List returns the family's invites, newest first. Admin only.
func (s *Service) List(ctx context.Context, actor identity.Actor) ([]Invite, error) {
	if !policy.CanManageFamily(actor) {
		return nil, fault.New(fault.KindPermissionDenied, opList, "admin role required")
	}

	var results []Invite
	if err := s.db.WithContext(ctx).
		Where("family_id = ?", actor.FamilyID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("family_id", actor.FamilyID))
		return nil, err
	}
	return results, nil
}

func (s *Service) linkFor(invite Invite) Link {
	return Link{
		InviteID:  invite.ID,
		Token:     invite.Token,
		URL:       s.origin + "/invite/" + invite.Token,
		ExpiresAt: invite.ExpiresAt,
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
	s.logger.Error("invites service error", attrs...)
}
