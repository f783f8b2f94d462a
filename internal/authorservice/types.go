package authorservice

import (
	"database/sql"
	"time"

	"github.com/wrenhollow/chronicle/internal/common"
)

type tokenScope string

type Permission string
type Permissions []Permission

const (
	TokenScopeActivate tokenScope = "token:activate"

	ActivationTokenTime time.Duration = 3 * 24 * time.Hour
	AccessTokenTime     time.Duration = 7 * 24 * time.Hour
	RefreshTokenTime    time.Duration = 30 * 24 * time.Hour

	PermissionWritePost Permission = "post:write"
)

var (
	AnonymousAuthor = Author{}
)

type AuthorService struct {
	m  *AuthorModel
	mb common.MessageProducer
	c  *common.Cache
}

type AuthorModel struct {
	db *sql.DB
}

type Author struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  Password  `json:"-"`
	Activated bool      `json:"activated"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Permissions Permissions `json:"permissions"`
}

type Password struct {
	Plain string `json:"-"`
	hash  []byte `json:"-"`
}

type Token struct {
	Plain    string     `json:"token"`
	Hash     []byte     `json:"-"`
	AuthorID int        `json:"-"`
	Expiry   time.Time  `json:"expiry"`
	Scope    tokenScope `json:"-"`
}

type AuthToken struct {
	AccessTokenPlain   string    `json:"access_token"`
	AccessTokenHash    []byte    `json:"-"`
	RefreshTokenPlain  string    `json:"refresh_token"`
	RefreshTokenHash   []byte    `json:"-"`
	AuthorID           int       `json:"author_id"`
	AccessTokenExpiry  time.Time `json:"access_token_expiry"`
	RefreshTokenExpiry time.Time `json:"refresh_token_expiry"`
}
