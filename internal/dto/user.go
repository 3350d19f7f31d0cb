package dto

import "github.com/noah-isme/facility-inventory-api/internal/models"

// CreateUserRequest registers a staff account.
type CreateUserRequest struct {
	Username string          `json:"username" validate:"required,min=3,max=64"`
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"max=128"`
	Password string          `json:"password" validate:"required,min=8"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN USER"`
}
