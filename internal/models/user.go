package models

import "time"

// User is an account that owns conversations and team members.
type User struct {
	ID          string `gorm:"primaryKey;size:36"`
	Email       string `gorm:"size:256;uniqueIndex"`
	DisplayName string `gorm:"size:128"`
	Active      bool   `gorm:"default:true;index"`
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TeamMember is a coached team member belonging to a user.
type TeamMember struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"size:36;not null;index"`
	Name      string `gorm:"size:128;not null"`
	Role      string `gorm:"size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
