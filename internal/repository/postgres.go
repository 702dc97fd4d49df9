package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/domain"
)

var _ UserRepository = (*PostgresUserRepo)(nil)

const uniqueViolation = "23505"

// PostgresUserRepo implements UserRepository over a per-tenant pgx pool.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserSQL = `SELECT id, external_id, email, name, role, password_salt, password_hash, created_at, updated_at FROM users`

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, wrapErr("find user by email", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) FindByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE external_id = $1`, externalID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, wrapErr("find user by external id", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, wrapErr("get user by id", err)
	}
	return user, nil
}

const insertUserSQL = `INSERT INTO users (id, external_id, email, name, role, password_salt, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, external_id, email, name, role, password_salt, password_hash, created_at, updated_at`

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.ExternalID,
		user.Email,
		user.Name,
		user.Role,
		user.PasswordSalt,
		user.PasswordHash,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, wrapErr("create user", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) ListExternalIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT external_id FROM users ORDER BY external_id`)
	if err != nil {
		return nil, fmt.Errorf("list external ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan external id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list external ids: %w", err)
	}
	return ids, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.PasswordSalt,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// wrapErr maps driver errors onto the domain sentinels so callers never
// depend on pgx types.
func wrapErr(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
