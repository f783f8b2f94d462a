package authorservice

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrNotFound          = errors.New("author not found")
)

func newAuthorModel(db *sql.DB) *AuthorModel {
	return &AuthorModel{db: db}
}

func (m *AuthorModel) insertAuthor(ctx context.Context, a *Author) error {
	query := `
		INSERT INTO authors (username, email, password)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	args := []any{
		a.Username,
		a.Email,
		a.Password.hash,
	}

	err := m.db.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		switch {
		case err.Error() == "pq: duplicate key value violates unique constraint \"authors_username_key\"":
			return ErrDuplicateUsername
		case err.Error() == "pq: duplicate key value violates unique constraint \"authors_email_key\"":
			return ErrDuplicateEmail
		default:
			return err
		}
	}
	return nil
}

func (m *AuthorModel) getAuthorByUsername(ctx context.Context, username string) (*Author, error) {
	query := `
		SELECT id, username, email, password, activated
		FROM authors
		WHERE username = $1`

	var a Author

	err := m.db.QueryRowContext(ctx, query, username).Scan(&a.ID, &a.Username, &a.Email, &a.Password.hash, &a.Activated)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrNotFound
		default:
			return nil, err
		}
	}

	return &a, nil
}

func (m *AuthorModel) activateAuthorAccount(tx *sql.Tx, ctx context.Context, id int) error {
	query := `
		UPDATE authors
		SET activated = true, updated_at = now()
		WHERE id = $1`

	res, err := tx.ExecContext(ctx, query, id)
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
			return ErrNotFound
		default:
			return errors.New("too many rows affected")
		}
	}

	return nil
}

func (m *AuthorModel) addAuthorPermission(tx *sql.Tx, ctx context.Context, id int, permissions ...Permission) error {
	for _, p := range permissions {
		_, err := tx.ExecContext(ctx, "INSERT INTO author_permissions (author_id, permission) VALUES ($1, $2)", id, p)
		if err != nil {
			return err
		}
	}

	return nil
}
