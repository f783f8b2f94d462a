package postservice

import (
	"context"
)

// insertComment stores a new comment. The caller has already checked the
// post is published, so a foreign key failure here means the post vanished
// in between and is reported as not found.
func (m *PostModel) insertComment(ctx context.Context, comment *Comment) error {
	query := `
		INSERT INTO comments (post_id, name, email, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at, active`

	err := m.db.QueryRowContext(ctx, query, comment.PostID, comment.Name, comment.Email, comment.Body).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt, &comment.Active)
	if err != nil {
		switch {
		case ForeignKeyError(err, "comments_post_id_fkey"):
			return ErrRecordNotFound
		default:
			return err
		}
	}

	return nil
}

// listActiveComments returns a post's visible comments, oldest first.
func (m *PostModel) listActiveComments(ctx context.Context, postID int) ([]Comment, error) {
	query := `
		SELECT id, post_id, name, email, body, created_at, updated_at, active
		FROM comments
		WHERE post_id = $1 AND active = true
		ORDER BY created_at ASC`

	rows, err := m.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var comment Comment
		err := rows.Scan(&comment.ID, &comment.PostID, &comment.Name, &comment.Email, &comment.Body, &comment.CreatedAt, &comment.UpdatedAt, &comment.Active)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return comments, nil
}
