package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rentshield/user-service/internal/auth"
	"github.com/rentshield/user-service/internal/domain"
	"github.com/rentshield/user-service/internal/repository"
	"github.com/rentshield/user-service/pkg/util/errorutil"
)

// CreateUserInput carries a validated create payload.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.UserRole
	Status   string
}

// UpdateUserInput is a partial update: nil fields are left untouched, so
// "field absent" and "field cleared" stay distinguishable by type.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *domain.UserRole
	Status   *string
}

// UserService coordinates user persistence, uniqueness and credential
// handling. All identifier-taking operations reject malformed ids before
// any store round-trip.
type UserService struct {
	users repository.UserRepository
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Create inserts a new user with a freshly salted credential. Status
// defaults to "active" when unset.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	if !domain.ValidRole(in.Role) {
		return nil, invalidRole()
	}

	taken, err := s.users.EmailTaken(ctx, in.Email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errorutil.NewDuplicateEmail("User with this email already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = domain.StatusActive
	}

	user := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Status:       status,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Concurrent creates can both pass the check above; the unique
		// index decides the loser.
		if isUniqueViolation(err) {
			return nil, errorutil.NewDuplicateEmail("User with this email already exists")
		}
		return nil, err
	}
	return user, nil
}

// Get fetches a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return user, nil
}

// GetByEmail fetches a user by exact email match, no case folding.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return user, nil
}

// List returns the filtered page plus the filter-wide total.
func (s *UserService) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	return s.users.List(ctx, filter)
}

// Update merges the present fields into the stored record. Email changes are
// re-checked for uniqueness excluding the record itself; password changes go
// through the hasher.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapNoRows(err)
	}

	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		taken, err := s.users.EmailTaken(ctx, *in.Email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errorutil.NewDuplicateEmail("Email already in use by another user")
		}
		user.Email = *in.Email
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if in.Role != nil {
		if !domain.ValidRole(*in.Role) {
			return nil, invalidRole()
		}
		user.Role = *in.Role
	}
	if in.Status != nil {
		user.Status = *in.Status
	}

	if err := s.users.Update(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return nil, errorutil.NewDuplicateEmail("Email already in use by another user")
		}
		return nil, mapNoRows(err)
	}
	return user, nil
}

// UpdateStatus sets only the status field. The documented values are
// active/suspended/inactive but the set is deliberately not enforced.
func (s *UserService) UpdateStatus(ctx context.Context, id, status string) (*domain.User, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	user, err := s.users.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return user, nil
}

// Delete removes the record permanently.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return mapNoRows(err)
	}
	return nil
}

func invalidRole() error {
	return errorutil.NewInvalidRole("Invalid role. Must be one of: " + domain.RolesList())
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errorutil.NewInvalidID()
	}
	return nil
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewNotFound("User")
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
