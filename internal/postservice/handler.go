package postservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wrenhollow/chronicle/internal/common"
)

func NewPostService(db *sql.DB, c *common.Cache, mb common.MessageProducer, baseURL string) *PostService {
	return &PostService{
		m:       newPostModel(db),
		c:       c,
		mb:      mb,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// resolvePage turns a raw page token into a page number in [1, totalPages].
// A token that is not an integer falls back to the first page; an integer
// outside the range falls back to the last page. Bad pagination input is
// never an error.
func resolvePage(token string, totalPages int) int {
	if token == "" {
		return 1
	}

	page, err := strconv.Atoi(token)
	if err != nil {
		return 1
	}

	if page < 1 || page > totalPages {
		return totalPages
	}

	return page
}

// ListPosts returns one page of published posts, optionally narrowed to a
// tag. An unknown tag slug is a not-found condition; a bad page token is
// corrected silently.
func (s *PostService) ListPosts(ctx context.Context, tagSlug, pageToken string) (*Page, error) {
	if tagSlug != "" {
		if _, err := s.m.getTagBySlug(ctx, tagSlug); err != nil {
			return nil, err
		}
	}

	total, err := s.m.countPublished(ctx, tagSlug)
	if err != nil {
		return nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	page := resolvePage(pageToken, totalPages)

	if cached, ok := s.c.Get(common.CacheKeyPostPage(tagSlug, page)); ok {
		if p, ok := cached.(*Page); ok {
			return p, nil
		}
	}

	posts, err := s.m.listPublished(ctx, tagSlug, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	result := &Page{
		Posts:       posts,
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalPosts:  total,
	}

	s.c.Set(common.CacheKeyPostPage(tagSlug, page), result)

	return result, nil
}

// GetPost returns the published post addressed by its publish date and
// slug, with tags attached.
func (s *PostService) GetPost(ctx context.Context, year, month, day int, slug string) (*Post, error) {
	v := common.NewValidator()
	validateDate(v, year, month, day)
	validateSlug(v, slug)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if cached, ok := s.c.Get(common.CacheKeyPostDetail(year, month, day, slug)); ok {
		if p, ok := cached.(*Post); ok {
			return p, nil
		}
	}

	post, err := s.m.getByDateSlug(ctx, year, month, day, slug)
	if err != nil {
		return nil, err
	}

	tags, err := s.m.getPostTags(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.Tags = tags

	s.c.Set(common.CacheKeyPostDetail(year, month, day, slug), post)

	return post, nil
}

// GetPublishedPost is the visibility-filtered lookup used by the comment
// and share flows, which address posts by id.
func (s *PostService) GetPublishedPost(ctx context.Context, postID int) (*Post, error) {
	v := common.NewValidator()
	validateInt(v, postID, "post_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.getPublishedByID(ctx, postID)
}

// ListComments returns a post's active comments, oldest first.
func (s *PostService) ListComments(ctx context.Context, postID int) ([]Comment, error) {
	v := common.NewValidator()
	validateInt(v, postID, "post_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.listActiveComments(ctx, postID)
}

// SimilarPosts recommends up to four published posts sharing tags with
// the given post, most shared tags first, most recent first on ties. The
// post itself is never in its own recommendations.
func (s *PostService) SimilarPosts(ctx context.Context, postID int) ([]Post, error) {
	v := common.NewValidator()
	validateInt(v, postID, "post_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if cached, ok := s.c.Get(common.CacheKeySimilarPosts(postID)); ok {
		if posts, ok := cached.([]Post); ok {
			return posts, nil
		}
	}

	posts, err := s.m.similar(ctx, postID, similarLimit)
	if err != nil {
		return nil, err
	}

	s.c.Set(common.CacheKeySimilarPosts(postID), posts)

	return posts, nil
}

// SearchPosts ranks published posts by trigram similarity between the
// query and the post title. An empty query is an empty result, not an
// error.
func (s *PostService) SearchPosts(ctx context.Context, q string) ([]SearchHit, error) {
	if strings.TrimSpace(q) == "" {
		return []SearchHit{}, nil
	}

	return s.m.search(ctx, q, searchThreshold)
}

type CreateCommentRequest struct {
	PostID int    `json:"post_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Body   string `json:"body"`
}

// CreateComment validates and stores a comment on a published post. The
// new comment is active by default. Nothing is persisted on validation
// failure.
func (s *PostService) CreateComment(ctx context.Context, req *CreateCommentRequest) (*Comment, error) {
	v := common.NewValidator()
	validateInt(v, req.PostID, "post_id")
	validateCommentName(v, req.Name)
	validateEmail(v, req.Email, "email")
	validateCommentBody(v, req.Body)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if _, err := s.m.getPublishedByID(ctx, req.PostID); err != nil {
		return nil, err
	}

	comment := &Comment{
		PostID: req.PostID,
		Name:   req.Name,
		Email:  req.Email,
		Body:   req.Body,
	}

	if err := s.m.insertComment(ctx, comment); err != nil {
		return nil, err
	}

	return comment, nil
}

type SharePostRequest struct {
	PostID   int    `json:"post_id"`
	Name     string `json:"name"`
	From     string `json:"from"`
	To       string `json:"to"`
	Comments string `json:"comments"`
}

// SharePost validates a share request and publishes a single share event
// for the mail consumer. The event carries everything the mail needs, so
// delivery never has to come back to the database.
func (s *PostService) SharePost(ctx context.Context, req *SharePostRequest) error {
	v := common.NewValidator()
	validateInt(v, req.PostID, "post_id")
	validateCommentName(v, req.Name)
	validateEmail(v, req.From, "from")
	validateEmail(v, req.To, "to")
	validateShareComment(v, req.Comments)
	if !v.Valid() {
		return v.ValidationError()
	}

	post, err := s.m.getPublishedByID(ctx, req.PostID)
	if err != nil {
		return err
	}

	data := struct {
		Recipient   string
		SenderName  string
		SenderEmail string
		Comments    string
		PostTitle   string
		PostURL     string
	}{
		Recipient:   req.To,
		SenderName:  req.Name,
		SenderEmail: req.From,
		Comments:    req.Comments,
		PostTitle:   post.Title,
		PostURL:     s.PostURL(post),
	}

	eventData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return s.mb.Publish(ctx, eventData, common.PostSharedKey, common.MailExchange)
}

// PostURL builds the canonical public URL of a post.
func (s *PostService) PostURL(post *Post) string {
	return fmt.Sprintf("%s/v1/archive/%d/%d/%d/%s", s.baseURL, post.Publish.Year(), int(post.Publish.Month()), post.Publish.Day(), post.Slug)
}

type CreatePostRequest struct {
	Title    string    `json:"title"`
	Slug     string    `json:"slug"`
	Body     string    `json:"body"`
	Publish  time.Time `json:"publish"`
	Status   Status    `json:"status"`
	Tags     []string  `json:"tags"`
	AuthorID int       `json:"author_id"`
}

// CreatePost creates a post for an author. The slug defaults to a
// slugified title, publish defaults to now, and status defaults to draft.
func (s *PostService) CreatePost(ctx context.Context, req *CreatePostRequest) (*Post, error) {
	if req.Slug == "" {
		req.Slug = Slugify(req.Title)
	}

	if req.Publish.IsZero() {
		req.Publish = time.Now()
	}

	if req.Status == "" {
		req.Status = StatusDraft
	}

	v := common.NewValidator()
	validateTitle(v, req.Title)
	validateSlug(v, req.Slug)
	validateBody(v, req.Body)
	validateStatus(v, req.Status)
	validateInt(v, req.AuthorID, "author_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	post := &Post{
		Title:    req.Title,
		Slug:     req.Slug,
		AuthorID: req.AuthorID,
		Body:     req.Body,
		Publish:  req.Publish,
		Status:   req.Status,
		Tags:     req.Tags,
	}

	if err := s.m.insert(ctx, post); err != nil {
		return nil, err
	}

	s.c.Flush()

	return post, nil
}

type UpdatePostRequest struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Slug     string    `json:"slug"`
	Body     string    `json:"body"`
	Publish  time.Time `json:"publish"`
	Status   Status    `json:"status"`
	Tags     []string  `json:"tags"`
	AuthorID int       `json:"author_id"`
}

// UpdatePost rewrites a post owned by the author. updated_at refreshes on
// every successful mutation.
func (s *PostService) UpdatePost(ctx context.Context, req *UpdatePostRequest) (*Post, error) {
	v := common.NewValidator()
	validateInt(v, req.ID, "id")
	validateTitle(v, req.Title)
	validateSlug(v, req.Slug)
	validateBody(v, req.Body)
	validatePublish(v, req.Publish)
	validateStatus(v, req.Status)
	validateInt(v, req.AuthorID, "author_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	post := &Post{
		ID:       req.ID,
		Title:    req.Title,
		Slug:     req.Slug,
		AuthorID: req.AuthorID,
		Body:     req.Body,
		Publish:  req.Publish,
		Status:   req.Status,
		Tags:     req.Tags,
	}

	if err := s.m.update(ctx, post); err != nil {
		return nil, err
	}

	s.c.Flush()

	return post, nil
}

// DeletePost removes a post owned by the author, cascading its comments.
func (s *PostService) DeletePost(ctx context.Context, postID, authorID int) error {
	v := common.NewValidator()
	validateInt(v, postID, "id")
	validateInt(v, authorID, "author_id")
	if !v.Valid() {
		return v.ValidationError()
	}

	if err := s.m.delete(ctx, postID, authorID); err != nil {
		return err
	}

	s.c.Flush()

	return nil
}

// GetAuthorPost is the unfiltered accessor for a single post. Authoring
// paths only; never exposed on public routes.
func (s *PostService) GetAuthorPost(ctx context.Context, postID int) (*Post, error) {
	v := common.NewValidator()
	validateInt(v, postID, "id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	post, err := s.m.getByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	tags, err := s.m.getPostTags(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.Tags = tags

	return post, nil
}

// ListAuthorPosts returns all of an author's posts, drafts included.
func (s *PostService) ListAuthorPosts(ctx context.Context, authorID int) ([]Post, error) {
	v := common.NewValidator()
	validateInt(v, authorID, "author_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.listByAuthor(ctx, authorID)
}
