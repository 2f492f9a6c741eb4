package repository

import (
	"context"
	"database/sql"
	"fmt"

	"sqlpanel/internal/domain"
)

// UserRepo reads and updates the demo users and their orders.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const listUsers = `SELECT u.id, u.name, u.email, u.visit_count, u.created_at,
       COUNT(o.id) AS order_count,
       CAST(COALESCE(SUM(o.total_cents), 0) AS BIGINT) AS total_cents
FROM users u
LEFT JOIN orders o ON o.user_id = u.id
GROUP BY u.id, u.name, u.email, u.visit_count, u.created_at
ORDER BY u.id`

// List returns every user with order totals.
func (r *UserRepo) List(ctx context.Context) ([]domain.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.UserSummary
	for rows.Next() {
		var s domain.UserSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.VisitCount, &s.CreatedAt, &s.OrderCount, &s.TotalCents); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const getUser = `SELECT id, name, email, visit_count, created_at FROM users WHERE id = ?`

// Get returns a single user.
func (r *UserRepo) Get(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, getUser, id).Scan(&u.ID, &u.Name, &u.Email, &u.VisitCount, &u.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &u, nil
}

const listOrders = `SELECT id, user_id, total_cents, created_at
FROM orders
WHERE user_id = ? AND total_cents >= ?
ORDER BY created_at DESC, id DESC`

// Orders returns the orders of a user at or above minCents.
func (r *UserRepo) Orders(ctx context.Context, userID, minCents int64) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, listOrders, userID, minCents)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalCents, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecordVisit increments the visit counter of a user.
func (r *UserRepo) RecordVisit(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET visit_count = visit_count + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("user %d not found", id)
	}
	return nil
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

var seedUsers = []struct {
	id          int64
	name, email string
}{
	{1, "Ada Lovelace", "ada@example.com"},
	{2, "Grace Hopper", "grace@example.com"},
	{3, "Edsger Dijkstra", "edsger@example.com"},
	{4, "Barbara Liskov", "barbara@example.com"},
}

var seedOrders = []struct {
	id, userID, cents int64
}{
	{1, 1, 1250}, {2, 1, 4999}, {3, 2, 300}, {4, 2, 12000}, {5, 2, 75}, {6, 4, 2100},
}

// Seed inserts demo rows into an empty database.
func (r *UserRepo) Seed(ctx context.Context) error {
	n, err := r.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, u := range seedUsers {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, name, email) VALUES (?, ?, ?)`, u.id, u.name, u.email); err != nil {
			return fmt.Errorf("seed user %d: %w", u.id, mapDBError(err))
		}
	}
	for _, o := range seedOrders {
		if _, err := tx.ExecContext(ctx, `INSERT INTO orders (id, user_id, total_cents) VALUES (?, ?, ?)`, o.id, o.userID, o.cents); err != nil {
			return fmt.Errorf("seed order %d: %w", o.id, mapDBError(err))
		}
	}
	return tx.Commit()
}
