package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"minniegallery/internal/config"
	"minniegallery/internal/gateway"
	"minniegallery/internal/ids"
	"minniegallery/internal/models"
	"minniegallery/internal/repository"
	"minniegallery/internal/security"
)

type userStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
}

type sessionStore interface {
	Create(ctx context.Context, session models.Session) error
	Trim(ctx context.Context, userID string, keepLatest int) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	FindByRefreshHash(ctx context.Context, refreshHash []byte) (models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	Touch(ctx context.Context, sessionID string, ip string, userAgent string) error
}

type verificationStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	Consume(ctx context.Context, token string) (string, error)
}

type verificationMailer interface {
	SendVerification(ctx context.Context, to, token string) error
}

// AuthService implements gateway.Auth on top of the users and sessions
// tables: argon2 passwords, HS512 access tokens and rotating refresh tokens.
type AuthService struct {
	users    userStore
	sessions sessionStore
	verify   verificationStore
	mailer   verificationMailer
	validate *validator.Validate
	cfg      config.SecurityConfig
	log      zerolog.Logger
}

func NewAuthService(
	users userStore,
	sessions sessionStore,
	verify verificationStore,
	mailer verificationMailer,
	cfg config.SecurityConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		verify:   verify,
		mailer:   mailer,
		validate: validator.New(),
		cfg:      cfg,
		log:      log,
	}
}

// CurrentUser returns the viewer attached to ctx by the auth middleware.
func (s *AuthService) CurrentUser(ctx context.Context) (*gateway.Identity, error) {
	id, ok := gateway.IdentityFrom(ctx)
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (s *AuthService) normalize(creds *gateway.Credentials) error {
	creds.Email = strings.TrimSpace(strings.ToLower(creds.Email))
	if err := s.validate.Struct(creds); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// SignUp registers a pending account and mails its verification link.
// Signing up again with the same password while still pending re-sends the
// link.
func (s *AuthService) SignUp(ctx context.Context, creds gateway.Credentials) (gateway.Identity, error) {
	if err := s.normalize(&creds); err != nil {
		return gateway.Identity{}, err
	}

	passwordHash, err := security.HashPassword(creds.Password)
	if err != nil {
		return gateway.Identity{}, err
	}

	user := models.User{
		ID:           ids.NewUserID(),
		Email:        creds.Email,
		PasswordHash: passwordHash,
		Status:       models.UserStatusPending,
	}

	err = s.users.Create(ctx, user)
	if errors.Is(err, repository.ErrEmailTaken) {
		existing, ferr := s.users.FindByEmail(ctx, creds.Email)
		if ferr != nil || existing.Status != models.UserStatusPending {
			return gateway.Identity{}, repository.ErrEmailTaken
		}
		if ok, _ := security.VerifyPassword(creds.Password, existing.PasswordHash); !ok {
			return gateway.Identity{}, repository.ErrEmailTaken
		}
		user = existing
	} else if err != nil {
		return gateway.Identity{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.verify.Issue(ctx, user.ID)
	if err != nil {
		return gateway.Identity{}, err
	}
	if err := s.mailer.SendVerification(ctx, user.Email, token); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("send verification mail failed")
		return gateway.Identity{}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user signed up, verification pending")
	return gateway.Identity{ID: user.ID, Email: user.Email}, nil
}

// Verify activates the account a verification token was issued for.
func (s *AuthService) Verify(ctx context.Context, token string) (gateway.Identity, error) {
	userID, err := s.verify.Consume(ctx, token)
	if err != nil {
		return gateway.Identity{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return gateway.Identity{}, err
	}
	if user.Status == models.UserStatusPending {
		if err := s.users.UpdateStatus(ctx, user.ID, models.UserStatusActive); err != nil {
			return gateway.Identity{}, err
		}
	}
	return gateway.Identity{ID: user.ID, Email: user.Email}, nil
}

func (s *AuthService) SignIn(ctx context.Context, creds gateway.Credentials) (gateway.Session, error) {
	if err := s.normalize(&creds); err != nil {
		return gateway.Session{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return gateway.Session{}, ErrInvalidCredentials
		}
		return gateway.Session{}, err
	}

	ok, err := security.VerifyPassword(creds.Password, user.PasswordHash)
	if err != nil || !ok {
		return gateway.Session{}, ErrInvalidCredentials
	}

	switch user.Status {
	case models.UserStatusActive:
	case models.UserStatusPending:
		return gateway.Session{}, ErrEmailUnverified
	default:
		return gateway.Session{}, ErrUserSuspended
	}

	deviceID := creds.DeviceID
	if deviceID == "" {
		deviceID = ids.New()
	}
	deviceName := creds.DeviceName
	if deviceName == "" {
		deviceName = "Unknown Device"
	}

	session := models.Session{
		ID:         ids.New(),
		UserID:     user.ID,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		IPAddress:  creds.IPAddress,
		UserAgent:  creds.UserAgent,
	}
	out, err := s.issue(ctx, user, session)
	if err != nil {
		return gateway.Session{}, err
	}

	if err := s.sessions.Trim(ctx, user.ID, s.maxSessions()); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enforce session limit failed")
	}
	return out, nil
}

// Refresh rotates the refresh token of a device session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, deviceID string) (gateway.Session, error) {
	session, err := s.sessions.FindByRefreshHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		return gateway.Session{}, ErrInvalidCredentials
	}
	if deviceID != "" && session.DeviceID != deviceID {
		return gateway.Session{}, ErrInvalidCredentials
	}
	if session.ExpiresAt.Before(time.Now()) {
		_ = s.sessions.DeleteByID(ctx, session.ID)
		return gateway.Session{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return gateway.Session{}, ErrInvalidCredentials
	}
	if user.Status != models.UserStatusActive {
		return gateway.Session{}, ErrUserSuspended
	}

	return s.issue(ctx, user, session)
}

// Logout ends a session. Ending an unknown session is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	err := s.sessions.DeleteByID(ctx, sessionID)
	if err != nil && !errors.Is(err, gateway.ErrNotFound) {
		return err
	}
	return nil
}

// Authenticate validates an access token against its stored session and
// returns the viewer and session id.
func (s *AuthService) Authenticate(ctx context.Context, accessToken, ip, userAgent string) (gateway.Identity, string, error) {
	claims, err := security.ParseAccessToken(accessToken, s.cfg.JWTAccessSecret)
	if err != nil {
		return gateway.Identity{}, "", ErrInvalidCredentials
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return gateway.Identity{}, "", ErrInvalidCredentials
	}
	if session.UserID != claims.UserID || session.DeviceID != claims.DeviceID {
		return gateway.Identity{}, "", ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return gateway.Identity{}, "", ErrInvalidCredentials
	}
	if user.Status != models.UserStatusActive {
		return gateway.Identity{}, "", ErrUserSuspended
	}

	if err := s.sessions.Touch(ctx, session.ID, ip, userAgent); err != nil {
		s.log.Debug().Err(err).Str("session_id", session.ID).Msg("touch session failed")
	}
	return gateway.Identity{ID: user.ID, Email: user.Email}, session.ID, nil
}

func (s *AuthService) issue(ctx context.Context, user models.User, session models.Session) (gateway.Session, error) {
	refreshToken, refreshHash, err := security.GenerateOpaqueToken(64)
	if err != nil {
		return gateway.Session{}, err
	}
	session.RefreshTokenHash = refreshHash
	session.ExpiresAt = time.Now().Add(s.cfg.JWTRefreshTTL)

	accessToken, err := security.GenerateAccessToken(s.cfg.JWTAccessSecret, security.AccessSubject{
		UserID:    user.ID,
		Email:     user.Email,
		SessionID: session.ID,
		DeviceID:  session.DeviceID,
	}, s.cfg.JWTAccessTTL)
	if err != nil {
		return gateway.Session{}, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return gateway.Session{}, fmt.Errorf("store session: %w", err)
	}

	return gateway.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		DeviceID:     session.DeviceID,
		SessionID:    session.ID,
		User:         gateway.Identity{ID: user.ID, Email: user.Email},
	}, nil
}

func (s *AuthService) maxSessions() int {
	if s.cfg.MaxSessions <= 0 {
		return 10
	}
	return s.cfg.MaxSessions
}
