package authorservice

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base32"
	"errors"
	"time"
)

func hashToken(token string) []byte {
	hash := sha256.Sum256([]byte(token))
	return hash[:]
}

func newToken(authorID int, ttl time.Duration, scope tokenScope) (*Token, error) {
	randomBytes := make([]byte, 16)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return nil, err
	}

	token := &Token{
		Plain:    base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes),
		AuthorID: authorID,
		Expiry:   time.Now().Add(ttl),
		Scope:    scope,
	}

	token.Hash = hashToken(token.Plain)

	return token, nil
}

func (m *AuthorModel) insertToken(ctx context.Context, token *Token) error {
	query := `
		INSERT INTO tokens (hash, author_id, expiry, scope)
		VALUES ($1, $2, $3, $4)`

	_, err := m.db.ExecContext(ctx, query, token.Hash, token.AuthorID, token.Expiry, string(token.Scope))
	return err
}

func (m *AuthorModel) createToken(ctx context.Context, authorID int, ttl time.Duration, scope tokenScope) (*Token, error) {
	token, err := newToken(authorID, ttl, scope)
	if err != nil {
		return nil, err
	}

	err = m.insertToken(ctx, token)
	if err != nil {
		return nil, err
	}

	return token, nil
}

// getAuthorForToken resolves a scoped token to its author, honouring the
// token expiry.
func (m *AuthorModel) getAuthorForToken(ctx context.Context, scope tokenScope, hash []byte) (*Author, error) {
	var a Author

	query := `
		SELECT a.id, a.username, a.email, a.activated
		FROM authors a
		INNER JOIN tokens t ON a.id = t.author_id
		WHERE t.hash = $1 AND t.scope = $2 AND t.expiry > $3`

	err := m.db.QueryRowContext(ctx, query, hash, string(scope), time.Now()).Scan(&a.ID, &a.Username, &a.Email, &a.Activated)
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

func (m *AuthorModel) deleteToken(tx *sql.Tx, ctx context.Context, authorID int, scope tokenScope) error {
	query := `
		DELETE FROM tokens
		WHERE author_id = $1 AND scope = $2`

	_, err := tx.ExecContext(ctx, query, authorID, string(scope))
	return err
}

func (m *AuthorModel) createAuthToken(tx *sql.Tx, ctx context.Context, authorID int) (*AuthToken, error) {
	accessToken, err := newToken(authorID, AccessTokenTime, "")
	if err != nil {
		return nil, err
	}

	refreshToken, err := newToken(authorID, RefreshTokenTime, "")
	if err != nil {
		return nil, err
	}

	authToken := &AuthToken{
		AccessTokenPlain:   accessToken.Plain,
		AccessTokenHash:    accessToken.Hash,
		RefreshTokenPlain:  refreshToken.Plain,
		RefreshTokenHash:   refreshToken.Hash,
		AuthorID:           authorID,
		AccessTokenExpiry:  accessToken.Expiry,
		RefreshTokenExpiry: refreshToken.Expiry,
	}

	query := `
		INSERT INTO auth_tokens (access_token, refresh_token, author_id, access_token_expiry, refresh_token_expiry)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = tx.ExecContext(ctx, query, authToken.AccessTokenHash, authToken.RefreshTokenHash, authToken.AuthorID, authToken.AccessTokenExpiry, authToken.RefreshTokenExpiry)
	if err != nil {
		return nil, err
	}

	return authToken, nil
}

func (m *AuthorModel) getAuthToken(ctx context.Context, authorID int) (*AuthToken, error) {
	var authToken AuthToken

	query := `
		SELECT access_token, refresh_token, author_id, access_token_expiry, refresh_token_expiry
		FROM auth_tokens
		WHERE author_id = $1`

	err := m.db.QueryRowContext(ctx, query, authorID).Scan(&authToken.AccessTokenHash, &authToken.RefreshTokenHash, &authToken.AuthorID, &authToken.AccessTokenExpiry, &authToken.RefreshTokenExpiry)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}

	return &authToken, nil
}

func (m *AuthorModel) deleteAuthToken(tx *sql.Tx, ctx context.Context, authorID int) error {
	query := `
		DELETE FROM auth_tokens
		WHERE author_id = $1`

	_, err := tx.ExecContext(ctx, query, authorID)
	return err
}

// getAuthorByAccessToken resolves a bearer access token to an activated
// author with permissions loaded.
func (m *AuthorModel) getAuthorByAccessToken(ctx context.Context, hash []byte) (*Author, error) {
	query := `
		SELECT a.id, a.username, a.email, a.activated, p.permission
		FROM authors a
		INNER JOIN auth_tokens t ON a.id = t.author_id
		LEFT JOIN author_permissions p ON a.id = p.author_id
		WHERE t.access_token = $1 AND t.access_token_expiry > $2`

	rows, err := m.db.QueryContext(ctx, query, hash, time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var a Author
	found := false
	for rows.Next() {
		var permission sql.NullString
		err := rows.Scan(&a.ID, &a.Username, &a.Email, &a.Activated, &permission)
		if err != nil {
			return nil, err
		}
		if permission.Valid {
			a.Permissions = append(a.Permissions, Permission(permission.String))
		}
		found = true
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !found {
		return nil, ErrNotFound
	}

	return &a, nil
}
