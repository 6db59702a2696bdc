package user

import (
	"errors"
	"regexp"
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

// ReservedAdminID is the seed admin row. It can never be edited or deleted
// through the API.
const ReservedAdminID = 1

var (
	ErrNotFound     = errors.New("user not found")
	ErrReservedUser = errors.New("reserved admin user cannot be modified")
	ErrDuplicate    = errors.New("username or email already in use")
	ErrHasAssignment = errors.New("user still holds a shift assignment")
)

type User struct {
	ID           int       `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	RoleID       *int      `json:"roleId,omitempty"`
	RoleName     string    `json:"role,omitempty"` // joined on reads
	Status       Status    `json:"-"`
	StatusLabel  string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateUserRequest struct {
	FirstName string `json:"firstName" binding:"required,min=2,max=60"`
	LastName  string `json:"lastName" binding:"required,min=2,max=60"`
	Username  string `json:"username" binding:"required,min=3,max=30"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required,numeric,min=10,max=15"`
	Password  string `json:"password" binding:"required,min=8"`
	Role      int    `json:"role" binding:"required,min=1"`
}

type UpdateUserRequest struct {
	FirstName string `json:"firstName" binding:"required,min=2,max=60"`
	LastName  string `json:"lastName" binding:"required,min=2,max=60"`
	Username  string `json:"username" binding:"required,min=3,max=30"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required,numeric,min=10,max=15"`
	Role      int    `json:"role" binding:"required,min=1"`
	Status    int    `json:"status" binding:"required,oneof=1 2"`
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// ValidUsername enforces the stricter shape the binding tags cannot express.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
