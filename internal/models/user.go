package models

import (
	"strconv"
	"strings"
	"time"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// MinUID is the first public identifier handed out.
const MinUID = 10000

// ParseRole accepts the two signup roles. Empty input means patient.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RolePatient:
		return RolePatient, true
	case RoleDoctor:
		return RoleDoctor, true
	default:
		return "", false
	}
}

// internal/models/user.go
type User struct {
	ID    uint   `gorm:"primaryKey" json:"-"`
	UID   int    `gorm:"uniqueIndex;not null" json:"uid"`
	Name  string `gorm:"not null" json:"name"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Phone string `gorm:"type:varchar(30)" json:"phone"`

	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"type:varchar(20);not null;default:'patient';index" json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// DashboardPath is where the account lands after signup or login.
func (u *User) DashboardPath() string {
	return DashboardPath(u.Role, u.UID)
}

func DashboardPath(role Role, uid int) string {
	path := "/dashboard"
	if role == RoleDoctor {
		path = "/doctor_dashboard"
	}
	return path + "?uid=" + strconv.Itoa(uid)
}
