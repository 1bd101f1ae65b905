package models

import "time"

// Profile roles.
const (
	RoleHomeowner  = "homeowner"
	RoleContractor = "contractor"
	RoleAdmin      = "admin"
)

// Profile is the identity record owned by the identity provider. The
// lead workflow only reads it.
type Profile struct {
	ID          string  `gorm:"primaryKey;size:64"`
	Role        string  `gorm:"size:16;not null;index"`
	FullName    string  `gorm:"size:128"`
	Email       string  `gorm:"size:256"`
	Phone       string  `gorm:"size:32"`
	CompanyName string  `gorm:"size:128"`
	City        string  `gorm:"size:128;index"`
	ZipCode     string  `gorm:"size:16"`
	Skills      string  `gorm:"type:json"` // JSON array, contractors only
	Rating      float64 `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
