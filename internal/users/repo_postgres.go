package users

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: This repository assumes the following table exists:
//
//	CREATE TABLE users (
//	  id            SERIAL PRIMARY KEY,
//	  username      TEXT NOT NULL UNIQUE,
//	  email         TEXT NOT NULL DEFAULT '',
//	  role          TEXT NOT NULL,
//	  password_hash TEXT NOT NULL,
//	  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
//	)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const userColumns = `id, username, email, role, password_hash, created_at`

func (r *PostgresRepo) ByUsername(ctx context.Context, username string) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scan(r.db.QueryRowContext(ctx, q, username))
}

func (r *PostgresRepo) ByID(ctx context.Context, id int) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scan(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) scan(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
