package role

import (
	"errors"
	"time"
)

type Status int

const (
	StatusActive   Status = 1
	StatusInactive Status = 2
)

func (s Status) String() string {
	if s == StatusActive {
		return "Active"
	}
	return "Inactive"
}

var (
	ErrNotFound      = errors.New("role not found")
	ErrDuplicateName = errors.New("role name already exists")
	// deleting a role that users still reference is refused
	ErrInUse = errors.New("role is referenced by users")
)

type Role struct {
	ID          int       `json:"id"`
	RoleName    string    `json:"roleName"`
	Status      Status    `json:"-"`
	StatusLabel string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateRoleRequest struct {
	RoleName string `json:"roleName" binding:"required,min=2,max=40"`
	Status   int    `json:"status" binding:"omitempty,oneof=1 2"`
}

type UpdateRoleRequest struct {
	RoleName string `json:"roleName" binding:"required,min=2,max=40"`
	Status   int    `json:"status" binding:"required,oneof=1 2"`
}
