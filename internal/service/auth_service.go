package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/store"
	"github.com/iliyamo/venue-reservation/internal/utils"
)

// TokenSettings controls how AuthService signs and expires tokens.
type TokenSettings struct {
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// AuthService registers users and issues access/refresh token pairs.
type AuthService struct {
	Store  store.Store
	Tokens TokenSettings
	Now    func() time.Time
}

func NewAuthService(st store.Store, tokens TokenSettings) *AuthService {
	return &AuthService{Store: st, Tokens: tokens, Now: time.Now}
}

// Session is what a successful login returns to the client. Refresh is the
// raw token; only its hash is stored.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Register creates a CLIENT account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	u, err := s.createUser(ctx, in, model.RoleClient)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// CreateStaff creates an ADMIN or EVENT_MANAGER account.
func (s *AuthService) CreateStaff(ctx context.Context, in RegisterInput, role model.Role) (model.User, error) {
	if !role.Staff() {
		return model.User{}, validationf("role must be ADMIN or EVENT_MANAGER")
	}
	return s.createUser(ctx, in, role)
}

// EnsureAdmin creates the bootstrap admin unless the email is already taken.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (created bool, err error) {
	_, err = s.Store.Users().GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	_, err = s.createUser(ctx, RegisterInput{Email: email, Password: password, FirstName: "Admin"}, model.RoleAdmin)
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	return err == nil, err
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return "", validationf("invalid email")
	}
	return email, nil
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput, role model.Role) (model.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return model.User{}, err
	}
	if err := utils.CheckPassword(in.Password); err != nil {
		return model.User{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	hash, err := utils.HashPassword(in.Password, s.Tokens.BcryptCost)
	if err != nil {
		return model.User{}, err
	}
	now := utc(s.Now())
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().Create(ctx, &u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.User{}, conflictf("email already registered")
		}
		return model.User{}, err
	}
	return u, nil
}

// Login verifies credentials. Unknown emails, wrong passwords and
// deactivated accounts all yield ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.Store.Users().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if err != nil {
		return Session{}, err
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	u, err := s.userForRefresh(ctx, hash)
	if err != nil {
		return Session{}, err
	}
	if err := s.Store.Tokens().RevokeByHash(ctx, hash); err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// RefreshAccess issues a new access token and keeps the refresh token.
func (s *AuthService) RefreshAccess(ctx context.Context, raw string) (utils.AccessToken, error) {
	u, err := s.userForRefresh(ctx, utils.HashRefreshRaw(strings.TrimSpace(raw)))
	if err != nil {
		return utils.AccessToken{}, err
	}
	return utils.NewAccessToken(s.Tokens.Secret, u.ID, string(u.Role), s.Tokens.AccessTTLMin)
}

// Logout revokes one refresh token when raw is given, otherwise every
// token of userID.
func (s *AuthService) Logout(ctx context.Context, userID, raw string) error {
	raw = strings.TrimSpace(raw)
	switch {
	case raw != "":
		hash := utils.HashRefreshRaw(raw)
		if _, err := s.Store.Tokens().ValidateRefresh(ctx, hash, s.Now().UTC()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
			}
			return err
		}
		return s.Store.Tokens().RevokeByHash(ctx, hash)
	case userID != "":
		return s.Store.Tokens().RevokeAllForUser(ctx, userID)
	default:
		return validationf("provide Authorization header or refresh_token")
	}
}

// Me loads the caller's profile.
func (s *AuthService) Me(ctx context.Context, actor Actor) (model.User, error) {
	u, err := s.Store.Users().GetByID(ctx, actor.UserID)
	return u, notFound(err, "user")
}

func (s *AuthService) userForRefresh(ctx context.Context, hash string) (model.User, error) {
	userID, err := s.Store.Tokens().ValidateRefresh(ctx, hash, s.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, fmt.Errorf("%w: invalid refresh", ErrUnauthorized)
	}
	if err != nil {
		return model.User{}, err
	}
	u, err := s.Store.Users().GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !u.IsActive) {
		return model.User{}, fmt.Errorf("%w: invalid refresh", ErrUnauthorized)
	}
	return u, err
}

func (s *AuthService) issue(ctx context.Context, u model.User) (Session, error) {
	access, err := utils.NewAccessToken(s.Tokens.Secret, u.ID, string(u.Role), s.Tokens.AccessTTLMin)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.Tokens.RefreshTTLDays)
	if err != nil {
		return Session{}, err
	}
	if err := s.Store.Tokens().StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, err
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}
