package domain

import "time"

// User is a row of the demo application's users table.
type User struct {
	ID         int64
	Name       string
	Email      string
	VisitCount int64
	CreatedAt  time.Time
}

// UserSummary is a user with aggregated order figures.
type UserSummary struct {
	User
	OrderCount int64
	TotalCents int64
}

// Order is a row of the demo application's orders table.
type Order struct {
	ID         int64
	UserID     int64
	TotalCents int64
	CreatedAt  time.Time
}
