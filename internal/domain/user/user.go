package user

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidLogin  = errors.New("login is required")
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrInvalidRole   = errors.New("role must be user or admin")
	ErrDuplicateUser = errors.New("login or email already in use")
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

var validate = validator.New()

// User is the account record owned by the session collaborator. The embedded basket
// lives next to it in the store and is managed by the basket package.
type User struct {
	ID    string `json:"id"`
	Login string `json:"login" validate:"required"`
	Email string `json:"email" validate:"required"`
	Role  string `json:"role" validate:"oneof=user admin"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func isValidEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}

// Validate checks login, email and role.
func (u *User) Validate() error {
	if err := validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "Login":
				return ErrInvalidLogin
			case "Email":
				return ErrInvalidEmail
			case "Role":
				return ErrInvalidRole
			}
		}
		return err
	}
	if !isValidEmail(u.Email) {
		return ErrInvalidEmail
	}
	return nil
}

// Repository is the user store.
type Repository interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]*User, error)
	CreateUser(ctx context.Context, u *User) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// Create normalizes, validates and stores a user with an empty basket.
func (s *Service) Create(ctx context.Context, u User) (*User, error) {
	u.Login = strings.TrimSpace(u.Login)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleUser
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}

	if err := s.repo.CreateUser(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
