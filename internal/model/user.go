package model

import "time"

// User is a registered planner account. Records never change after signup.
type User struct {
	ID                  string `gorm:"primaryKey"`
	Username            string
	UsernameKey         string `gorm:"uniqueIndex"`
	PasswordFingerprint string
	CreatedAt           time.Time
}
