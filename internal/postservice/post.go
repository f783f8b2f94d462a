package postservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrDuplicateSlug    = errors.New("slug already used on this publish date")
	ErrAuthorForeignKey = errors.New("author_id does not exist")
)

func newPostModel(db *sql.DB) *PostModel {
	return &PostModel{db: db}
}

// ForeignKeyError is a helper function to check if the error is a foreign key constraint error.
func ForeignKeyError(err error, name string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23503" && pqErr.Constraint == name {
			return true
		}
	}

	return false
}

// UniqueViolationError is a helper function to check if the error is a unique constraint error.
func UniqueViolationError(err error, name string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23505" && pqErr.Constraint == name {
			return true
		}
	}

	return false
}

// insert creates the post row and its tag associations in one transaction.
func (m *PostModel) insert(ctx context.Context, post *Post) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO posts (title, slug, author_id, body, publish, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(ctx, query, post.Title, post.Slug, post.AuthorID, post.Body, post.Publish, post.Status).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		_ = tx.Rollback()
		switch {
		case UniqueViolationError(err, "posts_slug_publish_date_idx"):
			return ErrDuplicateSlug
		case ForeignKeyError(err, "posts_author_id_fkey"):
			return ErrAuthorForeignKey
		default:
			return err
		}
	}

	if err := m.setTags(tx, ctx, post.ID, post.Tags); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// getByDateSlug looks up a published post by its publish date and slug.
// Draft posts are invisible through this accessor.
func (m *PostModel) getByDateSlug(ctx context.Context, year, month, day int, slug string) (*Post, error) {
	query := `
		SELECT p.id, p.title, p.slug, p.author_id, a.username, p.body, p.publish, p.created_at, p.updated_at, p.status
		FROM posts p
		JOIN authors a ON p.author_id = a.id
		WHERE p.status = 'published'
		AND p.slug = $4
		AND p.publish::date = make_date($1, $2, $3)`

	row := m.db.QueryRowContext(ctx, query, year, month, day, slug)

	var post Post
	err := row.Scan(&post.ID, &post.Title, &post.Slug, &post.AuthorID, &post.Author, &post.Body, &post.Publish, &post.CreatedAt, &post.UpdatedAt, &post.Status)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return &post, nil
}

// getPublishedByID is the visibility-filtered lookup used by the comment
// and share flows, which address posts by id.
func (m *PostModel) getPublishedByID(ctx context.Context, id int) (*Post, error) {
	query := `
		SELECT p.id, p.title, p.slug, p.author_id, a.username, p.body, p.publish, p.created_at, p.updated_at, p.status
		FROM posts p
		JOIN authors a ON p.author_id = a.id
		WHERE p.status = 'published' AND p.id = $1`

	return m.scanOne(m.db.QueryRowContext(ctx, query, id))
}

// getByID is the unfiltered accessor. Authoring paths only.
func (m *PostModel) getByID(ctx context.Context, id int) (*Post, error) {
	query := `
		SELECT p.id, p.title, p.slug, p.author_id, a.username, p.body, p.publish, p.created_at, p.updated_at, p.status
		FROM posts p
		JOIN authors a ON p.author_id = a.id
		WHERE p.id = $1`

	return m.scanOne(m.db.QueryRowContext(ctx, query, id))
}

func (m *PostModel) scanOne(row *sql.Row) (*Post, error) {
	var post Post
	err := row.Scan(&post.ID, &post.Title, &post.Slug, &post.AuthorID, &post.Author, &post.Body, &post.Publish, &post.CreatedAt, &post.UpdatedAt, &post.Status)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return &post, nil
}

// listPublished returns one page of published posts in reverse
// chronological order, optionally narrowed to a tag.
func (m *PostModel) listPublished(ctx context.Context, tagSlug string, limit, offset int) ([]Post, error) {
	query := `
		SELECT p.id, p.title, p.slug, p.author_id, a.username, p.body, p.publish, p.created_at, p.updated_at, p.status
		FROM posts p
		JOIN authors a ON p.author_id = a.id
		WHERE p.status = 'published'
		AND ($1 = '' OR p.id IN (
			SELECT pt.post_id FROM post_tags pt
			JOIN tags t ON pt.tag_id = t.id
			WHERE t.slug = $1))
		ORDER BY p.publish DESC
		LIMIT $2 OFFSET $3`

	rows, err := m.db.QueryContext(ctx, query, tagSlug, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return m.scanList(rows)
}

func (m *PostModel) countPublished(ctx context.Context, tagSlug string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM posts p
		WHERE p.status = 'published'
		AND ($1 = '' OR p.id IN (
			SELECT pt.post_id FROM post_tags pt
			JOIN tags t ON pt.tag_id = t.id
			WHERE t.slug = $1))`

	var count int
	err := m.db.QueryRowContext(ctx, query, tagSlug).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// listByAuthor returns all of an author's posts, drafts included, newest
// first.
func (m *PostModel) listByAuthor(ctx context.Context, authorID int) ([]Post, error) {
	query := `
		SELECT p.id, p.title, p.slug, p.author_id, a.username, p.body, p.publish, p.created_at, p.updated_at, p.status
		FROM posts p
		JOIN authors a ON p.author_id = a.id
		WHERE p.author_id = $1
		ORDER BY p.publish DESC`

	rows, err := m.db.QueryContext(ctx, query, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return m.scanList(rows)
}

func (m *PostModel) scanList(rows *sql.Rows) ([]Post, error) {
	var posts []Post
	for rows.Next() {
		var post Post
		err := rows.Scan(&post.ID, &post.Title, &post.Slug, &post.AuthorID, &post.Author, &post.Body, &post.Publish, &post.CreatedAt, &post.UpdatedAt, &post.Status)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

// update rewrites the mutable fields and refreshes updated_at. The
// author_id predicate keeps one author from editing another's post.
func (m *PostModel) update(ctx context.Context, post *Post) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := `
		UPDATE posts
		SET title = $1, slug = $2, body = $3, publish = $4, status = $5, updated_at = now()
		WHERE id = $6 AND author_id = $7
		RETURNING created_at, updated_at`

	err = tx.QueryRowContext(ctx, query, post.Title, post.Slug, post.Body, post.Publish, post.Status, post.ID, post.AuthorID).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		_ = tx.Rollback()
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrRecordNotFound
		case UniqueViolationError(err, "posts_slug_publish_date_idx"):
			return ErrDuplicateSlug
		default:
			return err
		}
	}

	if err := m.setTags(tx, ctx, post.ID, post.Tags); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// delete removes the post. Comments and tag associations go with it via
// ON DELETE CASCADE.
func (m *PostModel) delete(ctx context.Context, postID, authorID int) error {
	query := `
		DELETE FROM posts
		WHERE id = $1 AND author_id = $2`

	res, err := m.db.ExecContext(ctx, query, postID, authorID)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows != 1 {
		switch {
		case rows == 0:
			return ErrRecordNotFound
		default:
			return fmt.Errorf("expected 1 row to be affected, got %d", rows)
		}
	}

	return nil
}

// similar finds published posts sharing at least one tag with the given
// post, ranked by the number of shared tags and then recency.
func (m *PostModel) similar(ctx context.Context, postID, limit int) ([]Post, error) {
	query := `
		SELECT p.id, p.title, p.slug, p.author_id, a.username, p.body, p.publish, p.created_at, p.updated_at, p.status,
			COUNT(pt.tag_id) AS same_tags
		FROM posts p
		JOIN authors a ON p.author_id = a.id
		JOIN post_tags pt ON pt.post_id = p.id
		WHERE pt.tag_id IN (SELECT tag_id FROM post_tags WHERE post_id = $1)
		AND p.id <> $1
		AND p.status = 'published'
		GROUP BY p.id, a.username
		ORDER BY same_tags DESC, p.publish DESC
		LIMIT $2`

	rows, err := m.db.QueryContext(ctx, query, postID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var post Post
		var sameTags int
		err := rows.Scan(&post.ID, &post.Title, &post.Slug, &post.AuthorID, &post.Author, &post.Body, &post.Publish, &post.CreatedAt, &post.UpdatedAt, &post.Status, &sameTags)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

// search ranks published posts by trigram similarity between the query
// and the title, dropping scores at or below the threshold.
func (m *PostModel) search(ctx context.Context, q string, threshold float64) ([]SearchHit, error) {
	query := `
		SELECT p.id, p.title, p.slug, p.author_id, a.username, p.body, p.publish, p.created_at, p.updated_at, p.status,
			similarity(p.title, $1) AS rank
		FROM posts p
		JOIN authors a ON p.author_id = a.id
		WHERE p.status = 'published'
		AND similarity(p.title, $1) > $2
		ORDER BY rank DESC`

	rows, err := m.db.QueryContext(ctx, query, q, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		err := rows.Scan(&hit.ID, &hit.Title, &hit.Slug, &hit.AuthorID, &hit.Author, &hit.Body, &hit.Publish, &hit.CreatedAt, &hit.UpdatedAt, &hit.Status, &hit.Rank)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return hits, nil
}
