package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/failures"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	emptyPreferences = "{}"
	maxEmailLength   = 320
	maxNameLength    = 190
	maxAvatarLength  = 32

	opServiceNew         = "users.service.new"
	opCreateUser         = "users.create_user"
	opAuthenticate       = "users.authenticate"
	opGetUser            = "users.get_user"
	opUpdateProfile      = "users.update_profile"
	opUpdatePreferences  = "users.update_preferences"
	opDeleteUser         = "users.delete_user"
	reasonMissingDB      = "missing_database"
	reasonQueryFailed    = "query_failed"
	reasonHashFailed     = "hash_failed"
	reasonInsertFailed   = "insert_failed"
	reasonUpdateFailed   = "update_failed"
	reasonCascadeFailed  = "cascade_failed"
	reasonDeleteFailed   = "delete_failed"
	queryUserID          = "id = ?"
	queryEmail           = "email = ?"
	queryOwnedByUserID   = "user_id = ?"
	columnLastLoginAt    = "last_login_at"
	columnUpdatedAt      = "updated_at"
	columnName           = "name"
	columnAvatar         = "avatar"
	columnPreferences    = "preferences"
	defaultPasswordCost  = bcrypt.DefaultCost
	passwordMinimumBytes = 1
)

var (
	// ErrDuplicateEmail indicates that another account already uses the email.
	ErrDuplicateEmail = errors.New("users: email already registered")
	// ErrAuthenticationFailed is returned for any email/password mismatch.
	ErrAuthenticationFailed = errors.New("users: authentication failed")
	// ErrUserNotFound indicates that no account exists for the identifier.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrInvalidInput indicates that a field failed validation before touching storage.
	ErrInvalidInput = errors.New("users: invalid input")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
	// PasswordCost is the bcrypt cost; zero selects bcrypt.DefaultCost.
	PasswordCost int
	// OwnedModels are deleted by user_id together with the account.
	OwnedModels []any
}

// Service manages user accounts and their credentials.
type Service struct {
	db           *gorm.DB
	now          func() time.Time
	logger       *zap.Logger
	passwordCost int
	ownedModels  []any
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, failures.New(opServiceNew, reasonMissingDB, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	cost := cfg.PasswordCost
	if cost == 0 {
		cost = defaultPasswordCost
	}
	return &Service{
		db:           cfg.Database,
		now:          clock,
		logger:       logger,
		passwordCost: cost,
		ownedModels:  append([]any(nil), cfg.OwnedModels...),
	}, nil
}

// CreateUser registers a new account and returns its identifier.
func (s *Service) CreateUser(ctx context.Context, email, password, name, avatar string) (uint, error) {
	if s.db == nil {
		return 0, failures.New(opCreateUser, reasonMissingDB, errMissingDatabase)
	}
	normalizedEmail := normalizeEmail(email)
	if err := validateEmail(normalizedEmail); err != nil {
		return 0, err
	}
	if len(password) < passwordMinimumBytes {
		return 0, fmt.Errorf("%w: password required", ErrInvalidInput)
	}
	displayName := normalize(name)
	if utf8.RuneCountInString(displayName) > maxNameLength {
		return 0, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, maxNameLength)
	}
	avatarGlyph := normalize(avatar)
	if len(avatarGlyph) > maxAvatarLength {
		return 0, fmt.Errorf("%w: avatar exceeds %d bytes", ErrInvalidInput, maxAvatarLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return 0, fmt.Errorf("%w: password too long", ErrInvalidInput)
	}
	if err != nil {
		s.logError(opCreateUser, reasonHashFailed, err)
		return 0, failures.New(opCreateUser, reasonHashFailed, err)
	}

	now := s.now().UTC()
	user := User{
		Email:        normalizedEmail,
		PasswordHash: string(hash),
		Name:         displayName,
		Avatar:       avatarGlyph,
		Preferences:  emptyPreferences,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&User{}).Where(queryEmail, normalizedEmail).Count(&existing).Error; err != nil {
			s.logError(opCreateUser, reasonQueryFailed, err)
			return failures.New(opCreateUser, reasonQueryFailed, err)
		}
		if existing > 0 {
			return ErrDuplicateEmail
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateEmail
			}
			s.logError(opCreateUser, reasonInsertFailed, err)
			return failures.New(opCreateUser, reasonInsertFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}

	s.logger.Info("user created", zap.Uint("user_id", user.ID))
	return user.ID, nil
}

// Authenticate verifies the credentials and returns the stored profile.
// Unknown emails and wrong passwords yield the same ErrAuthenticationFailed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	if s.db == nil {
		return Profile{}, failures.New(opAuthenticate, reasonMissingDB, errMissingDatabase)
	}
	normalizedEmail := normalizeEmail(email)
	if normalizedEmail == "" || password == "" {
		return Profile{}, ErrAuthenticationFailed
	}

	var user User
	err := s.db.WithContext(ctx).Where(queryEmail, normalizedEmail).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, ErrAuthenticationFailed
	}
	if err != nil {
		s.logError(opAuthenticate, reasonQueryFailed, err)
		return Profile{}, failures.New(opAuthenticate, reasonQueryFailed, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Profile{}, ErrAuthenticationFailed
	}

	loginAt := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&User{}).
		Where(queryUserID, user.ID).
		Update(columnLastLoginAt, loginAt).Error; err != nil {
		s.logError(opAuthenticate, reasonUpdateFailed, err, zap.Uint("user_id", user.ID))
		return Profile{}, failures.New(opAuthenticate, reasonUpdateFailed, err)
	}
	user.LastLoginAt = &loginAt

	return user.profile(), nil
}

// GetUser loads the profile for the identifier.
func (s *Service) GetUser(ctx context.Context, userID uint) (Profile, error) {
	user, err := s.loadUser(ctx, opGetUser, userID)
	if err != nil {
		return Profile{}, err
	}
	return user.profile(), nil
}

// UpdateProfile replaces the display name and avatar glyph.
func (s *Service) UpdateProfile(ctx context.Context, userID uint, name, avatar string) (Profile, error) {
	displayName := normalize(name)
	if displayName == "" || utf8.RuneCountInString(displayName) > maxNameLength {
		return Profile{}, fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidInput, maxNameLength)
	}
	avatarGlyph := normalize(avatar)
	if len(avatarGlyph) > maxAvatarLength {
		return Profile{}, fmt.Errorf("%w: avatar exceeds %d bytes", ErrInvalidInput, maxAvatarLength)
	}
	return s.update(ctx, opUpdateProfile, userID, map[string]any{
		columnName:   displayName,
		columnAvatar: avatarGlyph,
	})
}

// UpdatePreferences stores the free-form preferences blob, which must be a JSON object.
func (s *Service) UpdatePreferences(ctx context.Context, userID uint, preferences json.RawMessage) (Profile, error) {
	trimmed := strings.TrimSpace(string(preferences))
	if trimmed == "" {
		trimmed = emptyPreferences
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil || decoded == nil {
		return Profile{}, fmt.Errorf("%w: preferences must be a JSON object", ErrInvalidInput)
	}
	return s.update(ctx, opUpdatePreferences, userID, map[string]any{
		columnPreferences: trimmed,
	})
}

// DeleteUser removes the account and every owned row in a single transaction.
func (s *Service) DeleteUser(ctx context.Context, userID uint) error {
	if s.db == nil {
		return failures.New(opDeleteUser, reasonMissingDB, errMissingDatabase)
	}
	if userID == 0 {
		return ErrUserNotFound
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range s.ownedModels {
			if err := tx.Where(queryOwnedByUserID, userID).Delete(model).Error; err != nil {
				s.logError(opDeleteUser, reasonCascadeFailed, err,
					zap.Uint("user_id", userID),
					zap.String("model", fmt.Sprintf("%T", model)))
				return failures.New(opDeleteUser, reasonCascadeFailed, err)
			}
		}
		result := tx.Where(queryUserID, userID).Delete(&User{})
		if result.Error != nil {
			s.logError(opDeleteUser, reasonDeleteFailed, result.Error, zap.Uint("user_id", userID))
			return failures.New(opDeleteUser, reasonDeleteFailed, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		s.logger.Info("user deleted", zap.Uint("user_id", userID))
		return nil
	})
}

func (s *Service) update(ctx context.Context, operation string, userID uint, updates map[string]any) (Profile, error) {
	if s.db == nil {
		return Profile{}, failures.New(operation, reasonMissingDB, errMissingDatabase)
	}
	updates[columnUpdatedAt] = s.now().UTC()
	result := s.db.WithContext(ctx).Model(&User{}).Where(queryUserID, userID).Updates(updates)
	if result.Error != nil {
		s.logError(operation, reasonUpdateFailed, result.Error, zap.Uint("user_id", userID))
		return Profile{}, failures.New(operation, reasonUpdateFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return Profile{}, ErrUserNotFound
	}
	return s.GetUser(ctx, userID)
}

func (s *Service) loadUser(ctx context.Context, operation string, userID uint) (User, error) {
	if s.db == nil {
		return User{}, failures.New(operation, reasonMissingDB, errMissingDatabase)
	}
	if userID == 0 {
		return User{}, ErrUserNotFound
	}
	var user User
	err := s.db.WithContext(ctx).Where(queryUserID, userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		s.logError(operation, reasonQueryFailed, err, zap.Uint("user_id", userID))
		return User{}, failures.New(operation, reasonQueryFailed, err)
	}
	return user, nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("%w: email exceeds %d bytes", ErrInvalidInput, maxEmailLength)
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\n") {
		return fmt.Errorf("%w: malformed email", ErrInvalidInput)
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
	s.logger.Error("users service error", attrs...)
}
