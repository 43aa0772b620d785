package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/repos"
	"tfsrentals/internal/validate"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrBadCreds = errors.New("invalid email or password")

type AuthService struct {
	Users *repos.UserRepo
}

func NewAuthService(users *repos.UserRepo) *AuthService { return &AuthService{Users: users} }

func (s *AuthService) Login(ctx context.Context, sid, email, password string) (*domain.User, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Users.UnbindSession(ctx, sid)
}

func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	return s.Users.SessionUser(ctx, sid)
}

// CreateUser adds or updates an account with a freshly hashed password.
func (s *AuthService) CreateUser(ctx context.Context, email, name, role, password string) (*domain.User, error) {
	email, ok := validate.Email(email)
	if !ok {
		return nil, fmt.Errorf("%w: email", ErrValidation)
	}
	name, ok = validate.Name(name)
	if !ok {
		return nil, fmt.Errorf("%w: name", ErrValidation)
	}
	role = strings.ToUpper(role)
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: role", ErrValidation)
	}
	if !validate.Password(password) {
		return nil, fmt.Errorf("%w: password too weak", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := domain.User{ID: uuid.NewString(), Email: email, Name: name, Hash: string(hash), Role: role}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return s.Users.ByEmail(ctx, email)
}

func (s *AuthService) DeleteUser(ctx context.Context, email string) error {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return ErrNotFound
	}
	return s.Users.DeleteUserCascade(ctx, u.ID)
}
