package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"storerate/apperr"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = apperr.New(apperr.KindInvalidCredentials, "Invalid credentials")
	// ErrIncorrectPassword signals a wrong current password on password change.
	ErrIncorrectPassword = apperr.New(apperr.KindInvalidCredentials, "Incorrect old password")
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = time.Hour

// Service handles authentication business logic.
type Service struct {
	repo      Repository
	jwtSecret []byte
	tokenTTL  time.Duration
	validate  *validator.Validate
	hashCost  int
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// LoginResult bundles the token and domain user returned after a successful login.
type LoginResult struct {
	Token string
	User  User
}

// NewService creates a new authentication service. A non-positive tokenTTL
// falls back to DefaultTokenTTL.
func NewService(repo Repository, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		validate:  NewValidator(),
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// WithHashCost overrides the bcrypt cost.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// WithClock overrides the time source used for token issue and expiry.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates a Normal User account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	params, err := s.PrepareUser(NewUserRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Address:  req.Address,
		Role:     RoleNormalUser,
	})
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, params)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// PrepareUser validates req and hashes its password. It is the single path
// every account creation goes through before reaching the database.
func (s *Service) PrepareUser(req NewUserRequest) (CreateUserParams, error) {
	if err := s.validate.Struct(req); err != nil {
		return CreateUserParams{}, FieldErrors(err, userFieldMessages)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return CreateUserParams{}, fmt.Errorf("auth: hash password: %w", err)
	}

	return CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Address:      req.Address,
		Role:         req.Role,
	}, nil
}

// Login authenticates a user and returns a signed token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	var (
		user User
		err  error = ErrUserNotFound
	)
	// No stored email contains NUL, and PostgreSQL rejects it as a parameter.
	if !HasNUL(req.Email) {
		user, err = s.repo.GetUserByEmail(ctx, req.Email)
	}
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Spend the same bcrypt work as a real comparison.
			_ = bcrypt.CompareHashAndPassword(s.dummyPasswordHash(), []byte(req.Password))
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{
		Token: token,
		User:  user,
	}, nil
}

// UpdatePassword replaces the caller's password after checking the current one.
func (s *Service) UpdatePassword(ctx context.Context, userID int64, req UpdatePasswordRequest) error {
	if !ValidPassword(req.NewPassword) {
		return apperr.Validation(apperr.FieldError{Field: "newPassword", Message: passwordMessage})
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return ErrIncorrectPassword
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}

	return s.repo.UpdatePasswordHash(ctx, userID, string(passwordHash))
}

// Profile retrieves user information by ID.
func (s *Service) Profile(ctx context.Context, userID int64) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) dummyPasswordHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-Passw0rd!"), s.hashCost)
	})
	return s.dummyHash
}
