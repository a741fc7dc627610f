package models

import (
	"time"
)

type Workplace struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name      string    `gorm:"not null"                  json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime"            json:"created_at"`
}

type User struct {
	ID           uint       `gorm:"primaryKey;autoIncrement"   json:"id"`
	Name         string     `gorm:"not null"                   json:"name"`
	Email        string     `gorm:"uniqueIndex;not null"       json:"email"`
	PasswordHash string     `gorm:"column:password;not null"   json:"-"`
	IsAdmin      bool       `gorm:"not null;default:false"     json:"is_admin"`
	WorkplaceID  uint       `gorm:"index"                      json:"workplace_id"`
	Workplace    *Workplace `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

type Ticket struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string     `gorm:"not null"                 json:"title"`
	Description string     `gorm:"not null"                 json:"description"`
	Status      string     `gorm:"not null"                 json:"status"`
	Priority    string     `gorm:"not null"                 json:"priority"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"           json:"created_at"`
	OwnerID     uint       `gorm:"index"                    json:"owner_id"`
	Owner       *User      `json:"-"`
	WorkplaceID uint       `gorm:"index"                    json:"workplace_id"`
	Workplace   *Workplace `json:"-"`
}

// All lists the models migrated at startup, in dependency order.
func All() []any {
	return []any{&Workplace{}, &User{}, &Ticket{}}
}
