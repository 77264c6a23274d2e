package dto

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rentshield/user-service/internal/domain"
	"github.com/rentshield/user-service/pkg/util/errorutil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields under their wire names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// CreateUserRequest is the POST /api/users payload.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin landlord tenant"`
	Status   string `json:"status"`
}

// UpdateUserRequest is the PUT /api/users/:id payload. Pointer fields keep
// "absent" distinct from "set to empty".
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin landlord tenant"`
	Status   *string `json:"status"`
}

// UpdateStatusRequest is the POST /api/users/:id/status payload. Intended
// values are active, suspended and inactive; the set is not enforced.
type UpdateStatusRequest struct {
	Status *string `json:"status"`
}

// Validate runs tag validation and maps failures onto the service error
// taxonomy: missing required fields and out-of-enum roles.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	first := fieldErrs[0]
	switch first.Tag() {
	case "required":
		return errorutil.NewMissingField(first.Field())
	case "oneof":
		return errorutil.NewInvalidRole("Invalid role. Must be one of: " + domain.RolesList())
	default:
		return errorutil.NewValidationError("invalid payload", map[string]any{
			"field": first.Field(),
			"rule":  first.Tag(),
		})
	}
}

// UserResponse is the only outward-facing user shape. It has no hash field:
// the credential can never leak through serialization.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUserResponse converts a domain user for the wire, timestamps in UTC.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		Status:    user.Status,
		CreatedAt: user.CreatedAt.UTC(),
		UpdatedAt: user.UpdatedAt.UTC(),
	}
}

// UserListResponse wraps a page of users with pagination metadata.
type UserListResponse struct {
	Users []UserResponse `json:"users"`
	Total int            `json:"total"`
	Skip  int            `json:"skip"`
	Limit int            `json:"limit"`
}

// DeleteUserResponse confirms a hard delete.
type DeleteUserResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}
