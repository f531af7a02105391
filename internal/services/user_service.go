package services

import (
	"context"
	"errors"
	"strings"

	"github.com/giftshift/giftshift-backend/internal/auth"
	"github.com/giftshift/giftshift-backend/internal/config"
	"github.com/giftshift/giftshift-backend/internal/models"
	repo "github.com/giftshift/giftshift-backend/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserService struct {
	r   repo.Users
	cfg config.Config
}

func NewUserService(r repo.Users, cfg config.Config) *UserService {
	return &UserService{r: r, cfg: cfg}
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (models.User, error) {
	u := models.User{Username: strings.TrimSpace(username), Email: strings.ToLower(strings.TrimSpace(email)), Role: "user"}
	if err := u.Validate(); err != nil {
		return models.User{}, err
	}
	if s.cfg.IsAdminEmail(u.Email) {
		u.Role = "admin"
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	return s.r.Create(ctx, u.Username, u.Email, hash, u.Role)
}

func (s *UserService) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	u, err := s.r.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	if err := auth.VerifyPassword(password, u.PasswordHash); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	// The allow-list wins over the stored role so ops can promote an
	// account without touching the database.
	if s.cfg.IsAdminEmail(u.Email) {
		u.Role = "admin"
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) { return s.r.List(ctx) }
