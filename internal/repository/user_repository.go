package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/cliora-storefront/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, name, email, password_hash, role, created_at"

// NormalizeEmail trims and lower-cases an address; every read and write of
// users.email goes through it so lookups are case-insensitive.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// CreateUser inserts a user with an already hashed password and returns the
// stored row.  A duplicate email yields ErrConflict.
func (r *UserRepo) CreateUser(ctx context.Context, name, email, passwordHash string, role model.Role) (model.User, error) {
	email = NormalizeEmail(email)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role) VALUES (?,?,?,?)",
		name, email, passwordHash, string(role))
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.UserByID(ctx, uint64(id))
}

// UserByEmail fetches a user by normalized email.
func (r *UserRepo) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return r.one(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
}

// UserByID fetches a user by id.
func (r *UserRepo) UserByID(ctx context.Context, id uint64) (model.User, error) {
	return r.one(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// UpsertAdmin creates an admin account or promotes the existing account with
// that email and resets its password.
func (r *UserRepo) UpsertAdmin(ctx context.Context, name, email, passwordHash string) (model.User, error) {
	email = NormalizeEmail(email)
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (name, email, password_hash, role) VALUES (?,?,?,'admin')
		ON DUPLICATE KEY UPDATE password_hash=VALUES(password_hash), role='admin'`,
		name, email, passwordHash)
	if err != nil {
		return model.User{}, fmt.Errorf("upsert admin: %w", classify(err))
	}
	return r.UserByEmail(ctx, email)
}

func (r *UserRepo) one(ctx context.Context, q string, arg any) (model.User, error) {
	var (
		u    model.User
		role string
	)
	err := r.DB.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		return model.User{}, classify(err)
	}
	u.Role = model.ParseRole(role)
	return u, nil
}
