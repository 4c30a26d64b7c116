package users

import (
	"encoding/json"
	"strings"
	"time"
)

// User is the persisted account row.
type User struct {
	ID           uint       `gorm:"column:id;primaryKey;autoIncrement"`
	Email        string     `gorm:"column:email;size:320;not null;uniqueIndex:idx_users_email"`
	PasswordHash string     `gorm:"column:password_hash;size:100;not null"`
	Name         string     `gorm:"column:name;size:190;not null;default:''"`
	Avatar       string     `gorm:"column:avatar;size:32;not null;default:''"`
	Preferences  string     `gorm:"column:preferences;type:text;not null;default:'{}'"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

// TableName exposes the table backing user accounts.
func (User) TableName() string {
	return "users"
}

// Profile is the public view of a user; it never carries the credential hash.
type Profile struct {
	ID          uint            `json:"id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Avatar      string          `json:"avatar"`
	Preferences json.RawMessage `json:"preferences"`
	LastLoginAt *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (u User) profile() Profile {
	preferences := json.RawMessage(u.Preferences)
	if !json.Valid(preferences) {
		preferences = json.RawMessage(emptyPreferences)
	}
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Avatar:      u.Avatar,
		Preferences: preferences,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(normalize(value))
}
