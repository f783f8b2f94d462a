package postservice

import (
	"context"
	"database/sql"
	"errors"
)

// getTagBySlug looks a tag up by its slug. Used to reject listings for
// tags that do not exist.
func (m *PostModel) getTagBySlug(ctx context.Context, slug string) (*Tag, error) {
	query := `
		SELECT id, name, slug
		FROM tags
		WHERE slug = $1`

	var tag Tag
	err := m.db.QueryRowContext(ctx, query, slug).Scan(&tag.ID, &tag.Name, &tag.Slug)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return &tag, nil
}

// setTags replaces the post's tag associations with the given tag names,
// creating any tags that do not exist yet. Must run inside the caller's
// transaction so a failed insert leaves no half-tagged post.
func (m *PostModel) setTags(tx *sql.Tx, ctx context.Context, postID int, names []string) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM post_tags WHERE post_id = $1", postID)
	if err != nil {
		return err
	}

	for _, name := range names {
		var tagID int
		query := `
			INSERT INTO tags (name, slug)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`

		err := tx.QueryRowContext(ctx, query, name, Slugify(name)).Scan(&tagID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", postID, tagID)
		if err != nil {
			return err
		}
	}

	return nil
}

// getPostTags returns the tag names of a post in name order.
func (m *PostModel) getPostTags(ctx context.Context, postID int) ([]string, error) {
	query := `
		SELECT t.name
		FROM tags t
		JOIN post_tags pt ON pt.tag_id = t.id
		WHERE pt.post_id = $1
		ORDER BY t.name`

	rows, err := m.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return names, nil
}
