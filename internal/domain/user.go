package domain

import (
	"context"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAuditor Role = "auditor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAuditor:
		return true
	}
	return false
}

// StudentProfile is the payload carried only by users with RoleStudent.
type StudentProfile struct {
	Major     string  `json:"major"`
	GPA       float64 `json:"gpa"`
	Semesters int     `json:"semesters"`
}

// User is identified by its national id (RUT). Role never changes after creation.
type User struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	PasswordHash   string          `json:"-"`
	Role           Role            `json:"role"`
	Blocked        bool            `json:"blocked"`
	FailedAttempts int             `json:"failed_attempts"`
	Student        *StudentProfile `json:"student,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Student != nil {
		s := *u.Student
		c.Student = &s
	}
	return &c
}

type UserInput struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     Role            `json:"role"`
	Student  *StudentProfile `json:"student,omitempty"`
}

type ProfileInput struct {
	Name     *string         `json:"name,omitempty"`
	Email    *string         `json:"email,omitempty"`
	Password *string         `json:"password,omitempty"`
	Student  *StudentProfile `json:"student,omitempty"`
}

type UserRepository interface {
	FindAll(ctx context.Context) ([]*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
}

type UserService interface {
	RegisterUser(ctx context.Context, input UserInput) (*User, error)
	SignUp(ctx context.Context, input UserInput, actor *User) (*User, error)
	UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context, role Role) ([]*User, error)
}

// Session is handed out by a successful login.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AuthService interface {
	Login(ctx context.Context, id, password string) (*Session, error)
	Authenticate(ctx context.Context, token string) (*User, error)
	Logout(ctx context.Context, token string) error
	Unlock(ctx context.Context, userID string) (*User, error)
}
