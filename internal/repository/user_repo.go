package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskplanner/internal/model"
)

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var prefs []byte
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &prefs, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Prefs); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

func (r *UserRepository) Insert(ctx context.Context, u *model.User) error {
	prefs, err := json.Marshal(u.Prefs)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO users (username, email, password_hash, prefs)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `
	err = r.db.QueryRow(ctx, query, u.Username, u.Email, u.PasswordHash, prefs).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert user",
			zap.String("username", u.Username),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (*model.User, error) {
	query := `SELECT id, username, email, password_hash, prefs, created_at FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT id, username, email, password_hash, prefs, created_at FROM users WHERE username = $1`
	return scanUser(r.db.QueryRow(ctx, query, username))
}
