package models

import "time"

// User represents a registered author account.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"uniqueIndex;type:varchar(80);not null" validate:"required,max=80"`
	Password  string    `gorm:"type:varchar(255);not null" validate:"required,min=6"` // No json tag for security
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the authenticated principal resolved from a session token.
// Write operations receive it as an explicit parameter rather than reading
// it from ambient request state.
type Identity struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}
