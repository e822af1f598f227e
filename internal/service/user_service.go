package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/store"
)

type UserService struct {
	store *store.SQLStore
}

var (
	ErrInvalidUsername       = errors.New("invalid username")
	ErrInvalidDisplayName    = errors.New("invalid display name")
	ErrInvalidPassword       = errors.New("invalid password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidRole           = errors.New("invalid role")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrTokenAlreadyExists    = errors.New("access token already exists")
	ErrTokenAlreadyRevoked   = errors.New("access token already revoked")
	ErrInvalidTokenExpiry    = errors.New("invalid token expiry")
	ErrRegistrationDisabled  = errors.New("registration is disabled")
	ErrPermissionDenied      = errors.New("permission denied")
	usernamePattern          = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,31}$`)
)

type CreateUserInput struct {
	Username    string
	DisplayName string
	Password    string
	Role        string
}

func NewUserService(s *store.SQLStore) *UserService {
	return &UserService{store: s}
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (models.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

func (s *UserService) GetUserByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return models.User{}, sql.ErrNoRows
	}
	if userID, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return s.store.GetUserByID(ctx, userID)
	}
	return s.store.GetUserByUsername(ctx, normalizeUsername(identifier))
}

func (s *UserService) AuthenticateToken(ctx context.Context, rawToken string) (models.User, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return models.User{}, sql.ErrNoRows
	}
	user, token, err := s.store.GetUserByToken(ctx, rawToken)
	if err != nil {
		return models.User{}, err
	}
	_ = s.store.TouchPersonalAccessToken(ctx, token.ID)
	return user, nil
}

// EnsureBootstrap provisions the initial admin account and its access
// token on first start. It is a no-op when either value is unset or
// already present.
func (s *UserService) EnsureBootstrap(ctx context.Context, username string, rawToken string) error {
	username = normalizeUsername(username)
	rawToken = strings.TrimSpace(rawToken)
	if username == "" || rawToken == "" {
		return nil
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		user, err = s.store.CreateUser(ctx, username, username, "", models.RoleAdmin)
		if err != nil {
			return fmt.Errorf("create bootstrap user: %w", err)
		}
	}

	if _, _, err := s.store.GetUserByToken(ctx, rawToken); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if _, err := s.store.CreatePersonalAccessToken(ctx, user.ID, rawToken, "bootstrap token", nil); err != nil {
		return fmt.Errorf("create bootstrap token: %w", err)
	}
	return nil
}

// CreateUser registers an account. The first account ever created is
// promoted to admin; after that only admins may assign a role other
// than editor, and registration can be closed entirely.
func (s *UserService) CreateUser(ctx context.Context, creator *models.User, input CreateUserInput, allowRegistration bool) (models.User, error) {
	username := normalizeUsername(input.Username)
	displayName := strings.TrimSpace(input.DisplayName)
	password := strings.TrimSpace(input.Password)

	if !usernamePattern.MatchString(username) {
		return models.User{}, ErrInvalidUsername
	}
	if displayName == "" {
		displayName = username
	}
	if len([]rune(displayName)) > 64 {
		return models.User{}, ErrInvalidDisplayName
	}
	if password == "" {
		return models.User{}, ErrInvalidPassword
	}

	role := models.Role(strings.ToLower(strings.TrimSpace(input.Role)))
	if role != "" && !role.IsValid() {
		return models.User{}, ErrInvalidRole
	}

	totalUsers, err := s.store.CountUsers(ctx)
	if err != nil {
		return models.User{}, err
	}
	isFirstUser := totalUsers == 0
	isAdminCreator := creator != nil && creator.Role == models.RoleAdmin
	if !isFirstUser && !allowRegistration && !isAdminCreator {
		return models.User{}, ErrRegistrationDisabled
	}

	roleToAssign := models.RoleEditor
	if isFirstUser {
		roleToAssign = models.RoleAdmin
	} else if isAdminCreator && role != "" {
		roleToAssign = role
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return models.User{}, ErrUsernameAlreadyExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, displayName, string(passwordHash), roleToAssign)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return models.User{}, ErrUsernameAlreadyExists
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) SignInWithPassword(ctx context.Context, username string, password string) (models.User, string, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return models.User{}, "", ErrInvalidCredentials
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, "", ErrInvalidCredentials
		}
		return models.User{}, "", err
	}
	if user.PasswordHash == "" {
		return models.User{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, "", ErrInvalidCredentials
	}

	token, err := s.createAccessToken(ctx, user.ID, "signin token", nil)
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

func (s *UserService) CreateAccessToken(ctx context.Context, userID int64, description string, expiresAt *time.Time) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		description = "api token"
	}
	return s.createAccessToken(ctx, userID, description, expiresAt)
}

func (s *UserService) RevokeAccessTokenByID(ctx context.Context, tokenID int64) (models.PersonalAccessToken, error) {
	token, err := s.store.GetPersonalAccessTokenByID(ctx, tokenID)
	if err != nil {
		return models.PersonalAccessToken{}, err
	}
	if token.RevokedAt != nil {
		return token, ErrTokenAlreadyRevoked
	}
	if err := s.store.RevokePersonalAccessToken(ctx, tokenID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return token, ErrTokenAlreadyRevoked
		}
		return models.PersonalAccessToken{}, err
	}
	return s.store.GetPersonalAccessTokenByID(ctx, tokenID)
}

func (s *UserService) createAccessToken(ctx context.Context, userID int64, description string, expiresAt *time.Time) (string, error) {
	var normalizedExpiresAt *time.Time
	if expiresAt != nil {
		expires := expiresAt.UTC()
		if !expires.After(time.Now().UTC()) {
			return "", ErrInvalidTokenExpiry
		}
		normalizedExpiresAt = &expires
	}

	for i := 0; i < 5; i++ {
		token, err := generateAccessToken()
		if err != nil {
			return "", err
		}
		if _, err := s.store.CreatePersonalAccessToken(ctx, userID, token, description, normalizedExpiresAt); err == nil {
			return token, nil
		} else if !isUniqueConstraintErr(err) {
			return "", err
		}
	}
	return "", ErrTokenAlreadyExists
}

func generateAccessToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return "mh_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "constraint failed")
}

func normalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
