package authorservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/wrenhollow/chronicle/internal/common"
)

var (
	ErrAuthenticationFailure = errors.New("unauthorized access")
)

func NewAuthorService(db *sql.DB, mb common.MessageProducer, c *common.Cache) *AuthorService {
	return &AuthorService{
		m:  newAuthorModel(db),
		mb: mb,
		c:  c,
	}
}

// CreateAuthor registers a new author account and publishes an
// author.created event so the mail consumer can send the activation
// token.
func (s *AuthorService) CreateAuthor(ctx context.Context, username, email, password string) (*string, error) {
	v := common.NewValidator()
	validateUsername(v, username)
	validateEmail(v, email)
	validatePassword(v, password)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	a := Author{
		Username: username,
		Email:    email,
		Password: Password{Plain: password},
	}

	err := a.Password.set(a.Password.Plain)
	if err != nil {
		return nil, err
	}

	err = s.m.insertAuthor(ctx, &a)
	if err != nil {
		return nil, err
	}

	token, err := s.m.createToken(ctx, a.ID, ActivationTokenTime, TokenScopeActivate)
	if err != nil {
		return nil, err
	}

	data := struct {
		Email string
		Token string
	}{
		Email: a.Email,
		Token: token.Plain,
	}

	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	err = s.mb.Publish(ctx, eventData, common.AuthorCreatedKey, common.MailExchange)
	if err != nil {
		return nil, err
	}

	return &token.Plain, nil
}

// ActivateAuthor activates an account with the emailed token, burns the
// token, and grants the post:write permission.
func (s *AuthorService) ActivateAuthor(ctx context.Context, token string) error {
	v := common.NewValidator()
	ValidateToken(v, token)
	if !v.Valid() {
		return v.ValidationError()
	}

	hash := hashToken(token)

	author, err := s.m.getAuthorForToken(ctx, TokenScopeActivate, hash)
	if err != nil {
		return err
	}

	tx, err := s.m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = s.m.activateAuthorAccount(tx, ctx, author.ID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	err = s.m.deleteToken(tx, ctx, author.ID, TokenScopeActivate)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	err = s.m.addAuthorPermission(tx, ctx, author.ID, PermissionWritePost)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// LoginAuthor checks the credentials and returns a fresh access/refresh
// token pair. Any pair from an earlier login is discarded, so only the
// newest pair authenticates.
func (s *AuthorService) LoginAuthor(ctx context.Context, username, password string) (*AuthToken, error) {
	v := common.NewValidator()
	validateUsername(v, username)
	validatePassword(v, password)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	author, err := s.m.getAuthorByUsername(ctx, username)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrAuthenticationFailure
		default:
			return nil, err
		}
	}

	ok, err := author.Password.compare(password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAuthenticationFailure
	}

	dbToken, err := s.m.getAuthToken(ctx, author.ID)
	if err != nil {
		return nil, err
	}

	tx, err := s.m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	if err := s.m.deleteAuthToken(tx, ctx, author.ID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	authToken, err := s.m.createAuthToken(tx, ctx, author.ID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if dbToken != nil {
		s.c.Delete(common.CacheKeyAuthorByAccessToken(dbToken.AccessTokenHash))
	}

	return authToken, nil
}

// GetAuthorByAccessToken resolves a bearer token to its author. Hot path
// for every authenticated request, so hits are cached until the token
// cache entry expires.
func (s *AuthorService) GetAuthorByAccessToken(ctx context.Context, token string) (*Author, error) {
	v := common.NewValidator()
	ValidateToken(v, token)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	hash := hashToken(token)

	if cached, ok := s.c.Get(common.CacheKeyAuthorByAccessToken(hash)); ok {
		if author, ok := cached.(*Author); ok {
			return author, nil
		}
	}

	author, err := s.m.getAuthorByAccessToken(ctx, hash)
	if err != nil {
		return nil, err
	}

	s.c.Set(common.CacheKeyAuthorByAccessToken(hash), author, 5*time.Minute)

	return author, nil
}

// LogoutAuthor discards the author's token pair. The access token is
// evicted from the cache so it stops authenticating immediately.
func (s *AuthorService) LogoutAuthor(ctx context.Context, authorID int, accessToken string) error {
	v := common.NewValidator()
	validateInt(v, authorID, "author_id")
	if !v.Valid() {
		return v.ValidationError()
	}

	tx, err := s.m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = s.m.deleteAuthToken(tx, ctx, authorID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.c.Delete(common.CacheKeyAuthorByAccessToken(hashToken(accessToken)))

	return nil
}

func (a *Author) IsAnonymous() bool {
	return a == &AnonymousAuthor
}

func (a *Author) IsActivated() bool {
	return a.Activated
}

func (a *Author) HasPermission(permission Permission) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}

	return false
}
