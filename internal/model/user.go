package model

import (
	"database/sql"
	"time"
)

type User struct {
	ID          int64     `db:"id"`
	Provider    string    `db:"provider"`
	ProviderID  string    `db:"provider_id"`
	Email       string    `db:"email"`
	Name        string    `db:"name"`
	Picture     string    `db:"picture"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	LastLoginAt time.Time `db:"last_login_at"`
}

type QuotaAccount struct {
	ID              int64        `db:"id" json:"-"`
	UserID          int64        `db:"user_id" json:"user_id"`
	RemainingPoints int          `db:"remaining_points" json:"remaining_points"`
	UsedPoints      int          `db:"used_points" json:"used_points"`
	LastUsageTime   sql.NullTime `db:"last_usage_time" json:"-"`
	CreatedAt       time.Time    `db:"created_at" json:"-"`
	UpdatedAt       time.Time    `db:"updated_at" json:"-"`
}
