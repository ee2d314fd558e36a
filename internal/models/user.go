package models

import (
	"sort"
	"time"
)

// Role names recognised by the portal.
const (
	RoleStudent   = "student"
	RoleProfessor = "professor"
	RoleAdmin     = "admin"
)

// Role is a named permission set a user can hold.
type Role struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:32;uniqueIndex;not null" json:"name"`
}

// UserRole links a user to a role. Position keeps the assignment order so the
// first role granted stays the primary one.
type UserRole struct {
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	RoleID    uint      `gorm:"primaryKey" json:"role_id"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	Role      Role      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an account of the portal, student or staff.
type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Email         string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash  string     `gorm:"size:255;not null" json:"-"`
	FirstName     string     `gorm:"size:128" json:"first_name"`
	LastName      string     `gorm:"size:128" json:"last_name"`
	StudentNumber string     `gorm:"size:64" json:"student_number"`
	Active        bool       `gorm:"not null;default:true" json:"active"`
	Roles         []UserRole `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"roles"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PrimaryRole returns the first role granted to the user, or "" when none.
func (u User) PrimaryRole() string {
	if len(u.Roles) == 0 {
		return ""
	}
	roles := make([]UserRole, len(u.Roles))
	copy(roles, u.Roles)
	sort.SliceStable(roles, func(i, j int) bool {
		return roles[i].Position < roles[j].Position
	})
	return roles[0].Role.Name
}

// HasRole reports whether the user holds the named role.
func (u User) HasRole(name string) bool {
	for _, role := range u.Roles {
		if role.Role.Name == name {
			return true
		}
	}
	return false
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
