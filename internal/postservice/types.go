package postservice

import (
	"database/sql"
	"time"

	"github.com/wrenhollow/chronicle/internal/common"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

const (
	// pageSize is the number of posts per listing page.
	pageSize = 3

	// similarLimit caps the similar-posts recommendation list.
	similarLimit = 4

	// searchThreshold is the minimum trigram similarity score for a
	// search hit, on a 0-1 scale.
	searchThreshold = 0.1
)

type Post struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	AuthorID int    `json:"author_id"`
	Author   string `json:"author"`
	// Body is stored in Markdown format.
	Body      string    `json:"body"`
	Publish   time.Time `json:"publish"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Status    Status    `json:"status"`
	Tags      []string  `json:"tags,omitempty"`
}

type Comment struct {
	ID        int       `json:"id"`
	PostID    int       `json:"post_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Active    bool      `json:"active"`
}

type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Page is one listing page plus the pagination metadata the client needs
// to render page links.
type Page struct {
	Posts       []Post `json:"posts"`
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
	TotalPosts  int    `json:"total_posts"`
}

// SearchHit is a published post with its title similarity score.
type SearchHit struct {
	Post
	Rank float64 `json:"rank"`
}

type PostModel struct {
	db *sql.DB
}

type PostService struct {
	m       *PostModel
	c       *common.Cache
	mb      common.MessageProducer
	baseURL string
}
