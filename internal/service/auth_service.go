package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/kafka"
	"github.com/weiawesome/wes-io-chat/internal/media"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// authServiceImpl implements AuthService.
type authServiceImpl struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	sessions   Sessions
	router     Router
	uploader   Uploader
	producer   kafka.EventProducer
	bcryptCost int
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	tokens TokenIssuer,
	sessions Sessions,
	router Router,
	uploader Uploader,
	producer kafka.EventProducer,
	bcryptCost int,
) AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &authServiceImpl{
		users:      users,
		tokens:     tokens,
		sessions:   sessions,
		router:     router,
		uploader:   uploader,
		producer:   producer,
		bcryptCost: bcryptCost,
	}
}

// Signup registers a new user and opens a session.
func (s *authServiceImpl) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.AuthResponse, error) {
	l := log.Ctx(ctx)

	fullName := strings.TrimSpace(req.FullName)
	email := strings.TrimSpace(req.Email)
	if fullName == "" || email == "" || req.Password == "" {
		return nil, domain.ErrMissingFields
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hashedPassword),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrEmailExists) {
			l.Error().Err(err).Msg("failed to create user")
		}
		return nil, err
	}

	resp, err := s.newSession(user)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to generate token after signup")
		return nil, err
	}

	audit.Log(ctx, audit.ActionSignup, user.ID, "user signed up")
	return resp, nil
}

// Login authenticates a user and opens a session.
func (s *authServiceImpl) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	l := log.Ctx(ctx)

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			audit.LogWithDetail(ctx, audit.ActionLoginFailed, "", req.Email, "login failed: unknown email")
			return nil, domain.ErrInvalidCredentials
		}
		l.Error().Err(err).Msg("failed to get user by email")
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		audit.Log(ctx, audit.ActionLoginFailed, user.ID, "login failed: wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	resp, err := s.newSession(user)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to generate token after login")
		return nil, err
	}

	audit.Log(ctx, audit.ActionLogin, user.ID, "user logged in")
	return resp, nil
}

// Logout revokes the token and drops the user's live connection.
func (s *authServiceImpl) Logout(ctx context.Context, claims *jwt.Claims) {
	if claims == nil {
		return
	}
	s.tokens.RevokeToken(claims)
	disconnected := s.sessions.Disconnect(claims.UserID)

	audit.LogWithDetail(ctx, audit.ActionLogout, claims.UserID, fmt.Sprintf("disconnected=%t", disconnected), "user logged out")
}

// GetUser returns a user by id.
func (s *authServiceImpl) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile uploads the new picture, persists it, then announces it.
func (s *authServiceImpl) UpdateProfile(ctx context.Context, userID string, req *domain.UpdateProfileRequest) (*domain.User, error) {
	l := log.Ctx(ctx)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, key, err := s.uploader.Upload(ctx, media.FolderAvatars, userID, req.ProfilePic)
	if err != nil {
		return nil, err
	}

	user.ProfilePic = url
	if req.FullName != nil {
		if name := strings.TrimSpace(*req.FullName); name != "" {
			user.FullName = name
		}
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to update profile")
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			l.Warn().Err(delErr).Str("key", key).Msg("failed to remove orphaned avatar")
		}
		return nil, err
	}

	upd := wire.ProfileUpdate{
		UserID:     user.ID,
		ProfilePic: user.ProfilePic,
		FullName:   user.FullName,
	}
	s.router.BroadcastProfileUpdate(ctx, upd)
	if err := s.producer.ProduceProfileUpdate(ctx, upd); err != nil {
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to publish profile update")
	}

	audit.Log(ctx, audit.ActionProfileUpdate, userID, "profile updated")
	return user, nil
}

func (s *authServiceImpl) newSession(user *domain.User) (*domain.AuthResponse, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
