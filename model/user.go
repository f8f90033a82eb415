package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/getlisa/copilot-server/platform"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
)

// User is a technician account. FirstName/LastName/Role feed the profile turn
// prepended to agent history.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"type:varchar(255);not null;unique" json:"username"`
	Email     string    `gorm:"type:varchar(255);not null;unique" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	FirstName string    `gorm:"type:varchar(128)" json:"first_name"`
	LastName  string    `gorm:"type:varchar(128)" json:"last_name"`
	Phone     string    `json:"phone"`
	Avatar    string    `json:"avatar"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.Role == "" {
		u.Role = RoleTechnician
	}
	return nil
}

func CreateUser(user *User) error {
	db := platform.DB
	return db.Create(user).Error
}

func UserExists(username, email string) bool {
	db := platform.DB
	var count int64
	db.Model(&User{}).Where("username = ? OR email = ?", username, email).Count(&count)
	return count > 0
}

func GetUserByUsername(username string) (*User, error) {
	db := platform.DB
	var user User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &user, nil
}

func GetUserByID(id int64) (*User, error) {
	db := platform.DB
	var user User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &user, nil
}
