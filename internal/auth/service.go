package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/gruzztop/gruzztop/internal/apperr"
)

var errInvalidCredentials = apperr.New(apperr.ErrUnauthorized, "invalid credentials")

type TokenIssuer interface {
	Issue(userID, role string) (string, error)
}

type Service struct {
	log             *logrus.Logger
	store           Store
	tokens          TokenIssuer
	bootstrapSecret string
}

func NewService(log *logrus.Logger, store Store, tokens TokenIssuer, bootstrapSecret string) *Service {
	return &Service{log: log, store: store, tokens: tokens, bootstrapSecret: bootstrapSecret}
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*TokenResponse, error) {
	const op = "auth.Service.Signup"
	log := s.log.WithField("op", op)

	if req.Role != "client" && req.Role != "executor" {
		return nil, apperr.Validation("role must be client or executor")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%s: hash password: %w", op, err)
	}

	u, err := s.store.CreateUser(ctx, &User{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Role:         req.Role,
		PasswordHash: string(hashed),
	})
	if errors.Is(err, ErrEmailTaken) {
		return nil, apperr.Conflict("email already exists")
	}
	if err != nil {
		log.WithError(err).Error("failed to create user")
		return nil, fmt.Errorf("%s: create user: %w", op, err)
	}

	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.WithField("user_id", u.ID).Info("user signed up")
	return &TokenResponse{Token: token, User: u}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	const op = "auth.Service.Login"

	u, err := s.store.UserByEmail(ctx, req.Email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%s: load user: %w", op, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !u.IsActive {
		return nil, apperr.Forbidden("account suspended")
	}

	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &TokenResponse{Token: token, User: u}, nil
}

func (s *Service) Me(ctx context.Context, userID string) (*Me, error) {
	m, err := s.store.Me(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("auth.Service.Me: %w", err)
	}
	return m, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	const op = "auth.Service.ChangePassword"

	current, err := s.store.PasswordHash(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return apperr.NotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(current), []byte(req.CurrentPassword)); err != nil {
		return errInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%s: hash password: %w", op, err)
	}
	if err := s.store.SetPasswordHash(ctx, userID, string(hashed)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "user_id": userID}).Info("password changed")
	return nil
}

// BootstrapAdmin promotes an existing account when the caller knows the
// configured bootstrap secret. Disabled when no secret is configured.
func (s *Service) BootstrapAdmin(ctx context.Context, req BootstrapAdminRequest) error {
	const op = "auth.Service.BootstrapAdmin"

	if s.bootstrapSecret == "" {
		return apperr.NotFound("bootstrap disabled")
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.bootstrapSecret)) != 1 {
		return apperr.Forbidden("invalid secret")
	}

	err := s.store.PromoteToAdmin(ctx, req.Email)
	if errors.Is(err, ErrUserNotFound) {
		return apperr.NotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "email": req.Email}).Warn("user promoted to admin")
	return nil
}
