// rassrochka-crm/models/user.go
package models

import "gorm.io/gorm"

// User — сотрудник, работающий с CRM.
type User struct {
	gorm.Model
	Login        string `json:"login" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	FullName     string `json:"fullName"`
}

func (User) TableName() string { return "users" }
