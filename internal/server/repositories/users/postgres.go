package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/dbx"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const selectUser = `SELECT id, name, email, password_hash, reset_token_hash, reset_token_expires, created_at
		 FROM users`

// PostgresRepository stores users in the users table and follow edges in
// the follows table. A single follows row (a, b) is both "b in a.Following"
// and "a in b.Followers", so the two sides can never disagree in storage.
// Posts is derived from posts.owner_id and is read-only here.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	u := user.Clone()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO users (id, name, email, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, u.ID, u.Name, u.Email, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	u.Followers, u.Following, u.Posts = []string{}, []string{}, []string{}
	return u, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return findOne(ctx, r.db, selectUser+` WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne(ctx, r.db, selectUser+` WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return findOne(ctx, r.db, selectUser+` WHERE reset_token_hash = $1 AND reset_token_expires > $2`, tokenHash, now)
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		u, err := r.FindByID(ctx, id)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *PostgresRepository) Save(ctx context.Context, user *models.User) error {
	_, err := r.Update(ctx, user.ID, func(u *models.User) error {
		*u = *user.Clone()
		return nil
	})
	return err
}

// Update locks the users row, applies fn and writes back only what fn
// changed. Edge rows are inserted or deleted individually, so concurrent
// edge changes made by the other endpoint are never overwritten.
func (r *PostgresRepository) Update(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error) {
	return dbx.WithTxResult(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		cur, err := findOne(ctx, tx, selectUser+` WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return nil, err
		}
		next := cur.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.ID, next.CreatedAt, next.Posts = cur.ID, cur.CreatedAt, cur.Posts
		if err := applyDiff(ctx, tx, cur, next); err != nil {
			return nil, err
		}
		return next, nil
	})
}

// Delete locks the users row, reads its final state and removes it. The
// follows rows go with it through the foreign key cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (*models.User, error) {
	return dbx.WithTxResult(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		last, err := findOne(ctx, tx, selectUser+` WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return nil, err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if n == 0 {
			return nil, common.ErrorNotFound
		}
		return last, nil
	})
}

func findOne(ctx context.Context, db dbx.DBTX, query string, args ...any) (*models.User, error) {
	u := &models.User{}
	var (
		resetHash    sql.NullString
		resetExpires sql.NullTime
	)
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &resetHash, &resetExpires, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if resetHash.Valid && resetExpires.Valid {
		u.SetResetToken(resetHash.String, resetExpires.Time)
	}
	if err := loadEdges(ctx, db, u); err != nil {
		return nil, err
	}
	return u, nil
}

func loadEdges(ctx context.Context, db dbx.DBTX, u *models.User) error {
	var err error
	if u.Followers, err = selectIDs(ctx, db,
		`SELECT follower_id FROM follows WHERE followee_id = $1 ORDER BY created_at, follower_id`, u.ID); err != nil {
		return err
	}
	if u.Following, err = selectIDs(ctx, db,
		`SELECT followee_id FROM follows WHERE follower_id = $1 ORDER BY created_at, followee_id`, u.ID); err != nil {
		return err
	}
	if u.Posts, err = selectIDs(ctx, db,
		`SELECT id FROM posts WHERE owner_id = $1 ORDER BY created_at, id`, u.ID); err != nil {
		return err
	}
	return nil
}

func selectIDs(ctx context.Context, db dbx.DBTX, query string, arg string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

func applyDiff(ctx context.Context, tx dbx.DBTX, cur, next *models.User) error {
	if profileChanged(cur, next) {
		var (
			resetHash    any
			resetExpires any
		)
		if next.ResetTokenExpiry != nil {
			resetHash, resetExpires = next.ResetTokenHash, *next.ResetTokenExpiry
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE users SET name = $2, email = $3, password_hash = $4, reset_token_hash = $5, reset_token_expires = $6
			 WHERE id = $1`,
			next.ID, next.Name, next.Email, next.PasswordHash, resetHash, resetExpires)
		if err != nil {
			return translate(err)
		}
	}

	const (
		insertEdge = `INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		deleteEdge = `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`
	)
	added, removed := diffIDs(cur.Following, next.Following)
	for _, id := range added {
		if err := exec(ctx, tx, insertEdge, next.ID, id); err != nil {
			return err
		}
	}
	for _, id := range removed {
		if err := exec(ctx, tx, deleteEdge, next.ID, id); err != nil {
			return err
		}
	}
	added, removed = diffIDs(cur.Followers, next.Followers)
	for _, id := range added {
		if err := exec(ctx, tx, insertEdge, id, next.ID); err != nil {
			return err
		}
	}
	for _, id := range removed {
		if err := exec(ctx, tx, deleteEdge, id, next.ID); err != nil {
			return err
		}
	}
	return nil
}

func profileChanged(cur, next *models.User) bool {
	if cur.Name != next.Name || cur.Email != next.Email || string(cur.PasswordHash) != string(next.PasswordHash) {
		return true
	}
	if cur.ResetTokenHash != next.ResetTokenHash {
		return true
	}
	switch {
	case cur.ResetTokenExpiry == nil && next.ResetTokenExpiry == nil:
		return false
	case cur.ResetTokenExpiry == nil || next.ResetTokenExpiry == nil:
		return true
	}
	return !cur.ResetTokenExpiry.Equal(*next.ResetTokenExpiry)
}

func diffIDs(before, after []string) (added, removed []string) {
	for _, id := range after {
		if !slices.Contains(before, id) {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if !slices.Contains(after, id) {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func exec(ctx context.Context, tx dbx.DBTX, query string, args ...any) error {
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return common.ErrorAlreadyExists
	}
	return fmt.Errorf("db error: %w", err)
}
