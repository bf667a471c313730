package user

import (
	"database/sql"
	"time"
)

type User struct {
	ID              int            `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Email           string         `db:"email" json:"email"`
	PasswordHash    string         `db:"password_hash" json:"-"`
	Role            string         `db:"role" json:"role"` // user, admin
	Tier            string         `db:"tier" json:"tier"` // standard, premium
	TransferPinHash sql.NullString `db:"transfer_pin_hash" json:"-"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}
