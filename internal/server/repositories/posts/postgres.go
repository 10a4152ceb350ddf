package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/dbx"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/google/uuid"
)

const selectPost = `SELECT id, owner_id, caption, image_key, created_at FROM posts WHERE id = $1`

// PostgresRepository stores posts in the posts table, likes in post_likes
// and comments in post_comments. Both child tables cascade on post delete.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	p := post.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return dbx.WithTxResult(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Post, error) {
		query :=
			`INSERT INTO posts (id, owner_id, caption, image_key)
			 VALUES ($1, $2, $3, $4)
			 RETURNING created_at
			 `
		if err := tx.QueryRowContext(ctx, query, p.ID, p.OwnerID, p.Caption, p.ImageKey).Scan(&p.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		empty := &models.Post{ID: p.ID}
		if err := applyDiff(ctx, tx, empty, p); err != nil {
			return nil, err
		}
		if p.Likes == nil {
			p.Likes = []string{}
		}
		if p.Comments == nil {
			p.Comments = []models.Comment{}
		}
		return p, nil
	})
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	return findOne(ctx, r.db, selectPost, id)
}

func (r *PostgresRepository) FindAll(ctx context.Context) ([]*models.Post, error) {
	return r.findMany(ctx, `SELECT id FROM posts ORDER BY created_at DESC, id DESC`)
}

func (r *PostgresRepository) FindByOwner(ctx context.Context, ownerID string) ([]*models.Post, error) {
	return r.findMany(ctx, `SELECT id FROM posts WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
}

// FindByOwners merges the per-owner results by creation time.
func (r *PostgresRepository) FindByOwners(ctx context.Context, ownerIDs []string) ([]*models.Post, error) {
	var out []*models.Post
	for _, id := range ownerIDs {
		owned, err := r.FindByOwner(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, owned...)
	}
	slices.SortStableFunc(out, func(a, b *models.Post) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if out == nil {
		out = []*models.Post{}
	}
	return out, nil
}

func (r *PostgresRepository) FindReferencing(ctx context.Context, userID string) ([]string, error) {
	return selectIDs(ctx, r.db,
		`SELECT post_id FROM post_likes WHERE user_id = $1
		 UNION
		 SELECT post_id FROM post_comments WHERE user_id = $1
		 ORDER BY 1`, userID)
}

func (r *PostgresRepository) Save(ctx context.Context, post *models.Post) error {
	_, err := r.Update(ctx, post.ID, func(p *models.Post) error {
		*p = *post.Clone()
		return nil
	})
	return err
}

// Update locks the posts row, applies fn and writes back only the changed
// fields, likes and comments.
func (r *PostgresRepository) Update(ctx context.Context, id string, fn func(p *models.Post) error) (*models.Post, error) {
	return dbx.WithTxResult(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Post, error) {
		cur, err := findOne(ctx, tx, selectPost+` FOR UPDATE`, id)
		if err != nil {
			return nil, err
		}
		next := cur.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.ID, next.OwnerID, next.CreatedAt = cur.ID, cur.OwnerID, cur.CreatedAt
		if err := applyDiff(ctx, tx, cur, next); err != nil {
			return nil, err
		}
		return next, nil
	})
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// findMany loads every post whose id the query returns. Posts deleted
// between the two steps are skipped.
func (r *PostgresRepository) findMany(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	ids, err := selectIDs(ctx, r.db, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Post, 0, len(ids))
	for _, id := range ids {
		p, err := r.FindByID(ctx, id)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func findOne(ctx context.Context, db dbx.DBTX, query string, id string) (*models.Post, error) {
	p := &models.Post{}
	err := db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.OwnerID, &p.Caption, &p.ImageKey, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if p.Likes, err = selectIDs(ctx, db,
		`SELECT user_id FROM post_likes WHERE post_id = $1 ORDER BY created_at, user_id`, p.ID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, text FROM post_comments WHERE post_id = $1 ORDER BY seq`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	p.Comments = []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.UserID, &c.Text); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		p.Comments = append(p.Comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func selectIDs(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
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

func applyDiff(ctx context.Context, tx dbx.DBTX, cur, next *models.Post) error {
	if cur.Caption != next.Caption || cur.ImageKey != next.ImageKey {
		if err := exec(ctx, tx, `UPDATE posts SET caption = $2, image_key = $3 WHERE id = $1`,
			next.ID, next.Caption, next.ImageKey); err != nil {
			return err
		}
	}

	for _, u := range next.Likes {
		if !slices.Contains(cur.Likes, u) {
			if err := exec(ctx, tx,
				`INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, next.ID, u); err != nil {
				return err
			}
		}
	}
	for _, u := range cur.Likes {
		if !slices.Contains(next.Likes, u) {
			if err := exec(ctx, tx,
				`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, next.ID, u); err != nil {
				return err
			}
		}
	}

	for _, c := range cur.Comments {
		if next.CommentIndex(c.ID) < 0 {
			if err := exec(ctx, tx, `DELETE FROM post_comments WHERE id = $1`, c.ID); err != nil {
				return err
			}
		}
	}
	for _, c := range next.Comments {
		i := cur.CommentIndex(c.ID)
		switch {
		case i < 0:
			if err := exec(ctx, tx,
				`INSERT INTO post_comments (id, post_id, user_id, text) VALUES ($1, $2, $3, $4)`,
				c.ID, next.ID, c.UserID, c.Text); err != nil {
				return err
			}
		case cur.Comments[i].Text != c.Text:
			if err := exec(ctx, tx, `UPDATE post_comments SET text = $2 WHERE id = $1`, c.ID, c.Text); err != nil {
				return err
			}
		}
	}
	return nil
}

func exec(ctx context.Context, tx dbx.DBTX, query string, args ...any) error {
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
