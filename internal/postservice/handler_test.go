package postservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wrenhollow/chronicle/internal/common"
)

// MockMessageProducer records published events instead of touching a
// broker.
type MockMessageProducer struct {
	mu        sync.Mutex
	Published []PublishedEvent
}

type PublishedEvent struct {
	Body     []byte
	Key      common.BindingKey
	Exchange common.Exchange
}

func (m *MockMessageProducer) Publish(ctx context.Context, msg []byte, key common.BindingKey, exchange common.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, PublishedEvent{Body: msg, Key: key, Exchange: exchange})
	return nil
}

func setupTestAuthor(db *sql.DB) (int, error) {
	query := `
		INSERT INTO authors (username, email, password, activated)
		VALUES ($1, $2, $3, true)
		RETURNING id`

	var id int
	err := db.QueryRow(query, "testauthor", "testauthor@example.com", []byte("x")).Scan(&id)
	return id, err
}

func setupTestEnvironment(t *testing.T) (*PostService, *sql.DB, *MockMessageProducer, int) {
	t.Helper()

	db := common.TestDB("file://../../migrations", t)
	cache := common.NewCache(5*time.Minute, 10*time.Minute)
	mb := &MockMessageProducer{}

	authorID, err := setupTestAuthor(db)
	assert.NoError(t, err)

	s := NewPostService(db, cache, mb, "http://localhost:8080")

	return s, db, mb, authorID
}

// createTestPost inserts a post directly, bypassing the service, so tests
// control publish times and drafts precisely.
func createTestPost(db *sql.DB, authorID int, title, slug string, status Status, publish time.Time, tags ...string) (int, error) {
	var id int
	err := db.QueryRow(`
		INSERT INTO posts (title, slug, author_id, body, publish, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`, title, slug, authorID, "body of "+title, publish, status).Scan(&id)
	if err != nil {
		return 0, err
	}

	for _, tag := range tags {
		var tagID int
		err := db.QueryRow(`
			INSERT INTO tags (name, slug)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, tag, Slugify(tag)).Scan(&tagID)
		if err != nil {
			return 0, err
		}

		_, err = db.Exec("INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2)", id, tagID)
		if err != nil {
			return 0, err
		}
	}

	return id, nil
}

func TestListPostsPagination(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		_, err := createTestPost(db, authorID, fmt.Sprintf("Post %d", i), fmt.Sprintf("post-%d", i), StatusPublished, base.Add(time.Duration(i)*24*time.Hour))
		assert.NoError(t, err)
	}

	// one draft that must never surface
	_, err := createTestPost(db, authorID, "Hidden Draft", "hidden-draft", StatusDraft, base.Add(30*24*time.Hour))
	assert.NoError(t, err)

	testCases := []struct {
		name         string
		pageToken    string
		expectedPage int
		expectedLen  int
	}{
		{name: "default page", pageToken: "", expectedPage: 1, expectedLen: 3},
		{name: "second page", pageToken: "2", expectedPage: 2, expectedLen: 3},
		{name: "last page", pageToken: "3", expectedPage: 3, expectedLen: 1},
		{name: "non-integer token", pageToken: "abc", expectedPage: 1, expectedLen: 3},
		{name: "beyond last page", pageToken: "99", expectedPage: 3, expectedLen: 1},
		{name: "zero", pageToken: "0", expectedPage: 3, expectedLen: 1},
		{name: "negative", pageToken: "-1", expectedPage: 3, expectedLen: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := s.ListPosts(ctx, "", tc.pageToken)
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedPage, page.CurrentPage)
			assert.Len(t, page.Posts, tc.expectedLen)
			assert.Equal(t, 3, page.TotalPages)
			assert.Equal(t, 7, page.TotalPosts)

			for _, post := range page.Posts {
				assert.Equal(t, StatusPublished, post.Status)
				assert.NotEqual(t, "hidden-draft", post.Slug)
			}
		})
	}
}

func TestListPostsOrdering(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := createTestPost(db, authorID, fmt.Sprintf("Post %d", i), fmt.Sprintf("post-%d", i), StatusPublished, base.Add(time.Duration(i)*time.Hour))
		assert.NoError(t, err)
	}

	page, err := s.ListPosts(ctx, "", "")
	assert.NoError(t, err)
	assert.Len(t, page.Posts, 3)

	for i := 1; i < len(page.Posts); i++ {
		assert.False(t, page.Posts[i].Publish.After(page.Posts[i-1].Publish), "posts must be in reverse chronological order")
	}
}

func TestListPostsByTag(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	goID, err := createTestPost(db, authorID, "Go Post", "go-post", StatusPublished, base, "golang")
	assert.NoError(t, err)

	_, err = createTestPost(db, authorID, "Other Post", "other-post", StatusPublished, base.Add(time.Hour), "cooking")
	assert.NoError(t, err)

	// draft with the tag stays hidden
	_, err = createTestPost(db, authorID, "Go Draft", "go-draft", StatusDraft, base.Add(2*time.Hour), "golang")
	assert.NoError(t, err)

	page, err := s.ListPosts(ctx, "golang", "")
	assert.NoError(t, err)
	assert.Len(t, page.Posts, 1)
	assert.Equal(t, goID, page.Posts[0].ID)
	assert.Equal(t, 1, page.TotalPosts)

	_, err = s.ListPosts(ctx, "no-such-tag", "")
	assert.Equal(t, ErrRecordNotFound, err)
}

func TestListPostsEmpty(t *testing.T) {
	s, _, _, _ := setupTestEnvironment(t)

	page, err := s.ListPosts(context.Background(), "", "abc")
	assert.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 0, page.TotalPosts)
}

func TestGetPost(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	publish := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	_, err := createTestPost(db, authorID, "Published Post", "published-post", StatusPublished, publish, "golang", "testing")
	assert.NoError(t, err)

	_, err = createTestPost(db, authorID, "Draft Post", "draft-post", StatusDraft, publish)
	assert.NoError(t, err)

	testCases := []struct {
		name        string
		year        int
		month       int
		day         int
		slug        string
		expectedErr error
	}{
		{name: "published post", year: 2024, month: 7, day: 1, slug: "published-post", expectedErr: nil},
		{name: "draft post", year: 2024, month: 7, day: 1, slug: "draft-post", expectedErr: ErrRecordNotFound},
		{name: "wrong date", year: 2024, month: 7, day: 2, slug: "published-post", expectedErr: ErrRecordNotFound},
		{name: "unknown slug", year: 2024, month: 7, day: 1, slug: "missing", expectedErr: ErrRecordNotFound},
		{name: "impossible date", year: 2024, month: 2, day: 30, slug: "published-post", expectedErr: common.ValidationError{Errors: map[string]string{"day": "must be a valid calendar date"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			post, err := s.GetPost(ctx, tc.year, tc.month, tc.day, tc.slug)
			if tc.expectedErr != nil {
				assert.Nil(t, post)
				assert.Equal(t, tc.expectedErr, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.slug, post.Slug)
				assert.Equal(t, []string{"golang", "testing"}, post.Tags)
			}
		})
	}
}

func TestSimilarPosts(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	subjectID, err := createTestPost(db, authorID, "Subject", "subject", StatusPublished, base, "go", "sql", "http")
	assert.NoError(t, err)

	// shares all three tags
	threeID, err := createTestPost(db, authorID, "Three Tags", "three-tags", StatusPublished, base.Add(time.Hour), "go", "sql", "http")
	assert.NoError(t, err)

	// shares two tags
	twoID, err := createTestPost(db, authorID, "Two Tags", "two-tags", StatusPublished, base.Add(2*time.Hour), "go", "sql")
	assert.NoError(t, err)

	// one shared tag, newer
	oneNewID, err := createTestPost(db, authorID, "One New", "one-new", StatusPublished, base.Add(3*time.Hour), "go")
	assert.NoError(t, err)

	// one shared tag, older: loses the tie on publish time
	oneOldID, err := createTestPost(db, authorID, "One Old", "one-old", StatusPublished, base.Add(-time.Hour), "go")
	assert.NoError(t, err)

	// one more single-tag post to push the list past the limit
	_, err = createTestPost(db, authorID, "One Older", "one-older", StatusPublished, base.Add(-2*time.Hour), "go")
	assert.NoError(t, err)

	// shares tags but is a draft
	_, err = createTestPost(db, authorID, "Draft Similar", "draft-similar", StatusDraft, base.Add(4*time.Hour), "go", "sql", "http")
	assert.NoError(t, err)

	// no shared tag
	_, err = createTestPost(db, authorID, "Unrelated", "unrelated", StatusPublished, base.Add(5*time.Hour), "cooking")
	assert.NoError(t, err)

	posts, err := s.SimilarPosts(ctx, subjectID)
	assert.NoError(t, err)
	assert.Len(t, posts, 4)

	var ids []int
	for _, p := range posts {
		ids = append(ids, p.ID)
		assert.NotEqual(t, subjectID, p.ID, "a post must not recommend itself")
		assert.Equal(t, StatusPublished, p.Status)
	}

	assert.Equal(t, []int{threeID, twoID, oneNewID, oneOldID}, ids)
}

func TestSimilarPostsNoTags(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)

	id, err := createTestPost(db, authorID, "Tagless", "tagless", StatusPublished, time.Now())
	assert.NoError(t, err)

	posts, err := s.SimilarPosts(context.Background(), id)
	assert.NoError(t, err)
	assert.Empty(t, posts)
}

func TestSearchPosts(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	_, err := createTestPost(db, authorID, "Django Tutorial", "django-tutorial", StatusPublished, base)
	assert.NoError(t, err)
	_, err = createTestPost(db, authorID, "Postgres Tutorial", "postgres-tutorial", StatusPublished, base.Add(time.Hour))
	assert.NoError(t, err)
	_, err = createTestPost(db, authorID, "Banana Bread", "banana-bread", StatusPublished, base.Add(2*time.Hour))
	assert.NoError(t, err)

	// a matching draft must stay invisible
	_, err = createTestPost(db, authorID, "Secret Tutorial", "secret-tutorial", StatusDraft, base.Add(3*time.Hour))
	assert.NoError(t, err)

	hits, err := s.SearchPosts(ctx, "Tutorial")
	assert.NoError(t, err)
	assert.NotEmpty(t, hits)

	for i, hit := range hits {
		assert.Greater(t, hit.Rank, searchThreshold)
		assert.Equal(t, StatusPublished, hit.Status)
		assert.NotEqual(t, "secret-tutorial", hit.Slug)
		if i > 0 {
			assert.LessOrEqual(t, hit.Rank, hits[i-1].Rank, "ranks must be non-increasing")
		}
	}

	none, err := s.SearchPosts(ctx, "zzzzzzzz")
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchPostsEmptyQuery(t *testing.T) {
	s, _, _, _ := setupTestEnvironment(t)

	for _, q := range []string{"", "   "} {
		hits, err := s.SearchPosts(context.Background(), q)
		assert.NoError(t, err)
		assert.Empty(t, hits)
	}
}

func TestCreateComment(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	publishedID, err := createTestPost(db, authorID, "Commentable", "commentable", StatusPublished, time.Now())
	assert.NoError(t, err)

	draftID, err := createTestPost(db, authorID, "Not Yet", "not-yet", StatusDraft, time.Now())
	assert.NoError(t, err)

	testCases := []struct {
		name        string
		req         *CreateCommentRequest
		expectedErr error
	}{
		{
			name: "valid comment",
			req: &CreateCommentRequest{
				PostID: publishedID,
				Name:   "Reader",
				Email:  "reader@example.com",
				Body:   "Nice post!",
			},
			expectedErr: nil,
		},
		{
			name: "invalid email",
			req: &CreateCommentRequest{
				PostID: publishedID,
				Name:   "Reader",
				Email:  "not-an-email",
				Body:   "Nice post!",
			},
			expectedErr: common.ValidationError{Errors: map[string]string{"email": "must be a valid email address"}},
		},
		{
			name: "empty body",
			req: &CreateCommentRequest{
				PostID: publishedID,
				Name:   "Reader",
				Email:  "reader@example.com",
				Body:   "",
			},
			expectedErr: common.ValidationError{Errors: map[string]string{"body": "must be provided"}},
		},
		{
			name: "draft post",
			req: &CreateCommentRequest{
				PostID: draftID,
				Name:   "Reader",
				Email:  "reader@example.com",
				Body:   "Sneaky",
			},
			expectedErr: ErrRecordNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			comment, err := s.CreateComment(ctx, tc.req)
			assert.Equal(t, tc.expectedErr, err)

			if err == nil {
				assert.True(t, comment.Active)
				assert.Equal(t, tc.req.PostID, comment.PostID)

				var count int
				err := db.QueryRow("SELECT COUNT(*) FROM comments WHERE post_id = $1", tc.req.PostID).Scan(&count)
				assert.NoError(t, err)
				assert.Equal(t, 1, count)
			} else {
				var count int
				dbErr := db.QueryRow("SELECT COUNT(*) FROM comments WHERE post_id = $1", tc.req.PostID).Scan(&count)
				assert.NoError(t, dbErr)
				if tc.req.PostID == draftID {
					assert.Equal(t, 0, count)
				}
			}
		})
	}
}

func TestListComments(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	postID, err := createTestPost(db, authorID, "Commentable", "commentable", StatusPublished, time.Now())
	assert.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO comments (post_id, name, email, body, active, created_at)
		VALUES
			($1, 'First', 'a@example.com', 'first', true, now() - interval '2 hours'),
			($1, 'Second', 'b@example.com', 'second', true, now() - interval '1 hour'),
			($1, 'Hidden', 'c@example.com', 'hidden', false, now())`, postID)
	assert.NoError(t, err)

	comments, err := s.ListComments(ctx, postID)
	assert.NoError(t, err)
	assert.Len(t, comments, 2)
	assert.Equal(t, "First", comments[0].Name)
	assert.Equal(t, "Second", comments[1].Name)
}

func TestSharePost(t *testing.T) {
	s, db, mb, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	publish := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	postID, err := createTestPost(db, authorID, "Worth Sharing", "worth-sharing", StatusPublished, publish)
	assert.NoError(t, err)

	draftID, err := createTestPost(db, authorID, "Unshareable", "unshareable", StatusDraft, publish)
	assert.NoError(t, err)

	req := &SharePostRequest{
		PostID:   postID,
		Name:     "Alex",
		From:     "alex@example.com",
		To:       "friend@example.com",
		Comments: "thought of you",
	}

	err = s.SharePost(ctx, req)
	assert.NoError(t, err)
	assert.Len(t, mb.Published, 1)
	assert.Equal(t, common.PostSharedKey, mb.Published[0].Key)
	assert.Equal(t, common.MailExchange, mb.Published[0].Exchange)

	var event struct {
		Recipient  string
		SenderName string
		PostTitle  string
		PostURL    string
	}
	assert.NoError(t, json.Unmarshal(mb.Published[0].Body, &event))
	assert.Equal(t, "friend@example.com", event.Recipient)
	assert.Equal(t, "Worth Sharing", event.PostTitle)
	assert.Equal(t, "http://localhost:8080/v1/archive/2024/7/1/worth-sharing", event.PostURL)

	// invalid recipient: nothing published
	err = s.SharePost(ctx, &SharePostRequest{PostID: postID, Name: "Alex", From: "alex@example.com", To: "nope"})
	assert.Equal(t, common.ValidationError{Errors: map[string]string{"to": "must be a valid email address"}}, err)
	assert.Len(t, mb.Published, 1)

	// draft post: not found, nothing published
	err = s.SharePost(ctx, &SharePostRequest{PostID: draftID, Name: "Alex", From: "alex@example.com", To: "friend@example.com"})
	assert.Equal(t, ErrRecordNotFound, err)
	assert.Len(t, mb.Published, 1)
}

func TestCreatePost(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	post, err := s.CreatePost(ctx, &CreatePostRequest{
		Title:    "My First Post",
		Body:     "Hello!",
		Tags:     []string{"golang", "intro"},
		AuthorID: authorID,
	})
	assert.NoError(t, err)
	assert.Equal(t, "my-first-post", post.Slug)
	assert.Equal(t, StatusDraft, post.Status)
	assert.False(t, post.Publish.IsZero())
	assert.NotZero(t, post.ID)

	var tagCount int
	err = db.QueryRow("SELECT COUNT(*) FROM post_tags WHERE post_id = $1", post.ID).Scan(&tagCount)
	assert.NoError(t, err)
	assert.Equal(t, 2, tagCount)

	// same slug on the same publish date is rejected
	_, err = s.CreatePost(ctx, &CreatePostRequest{
		Title:    "My First Post",
		Body:     "Again!",
		Publish:  post.Publish,
		AuthorID: authorID,
	})
	assert.Equal(t, ErrDuplicateSlug, err)

	// same slug on a different date is fine
	_, err = s.CreatePost(ctx, &CreatePostRequest{
		Title:    "My First Post",
		Body:     "Tomorrow!",
		Publish:  post.Publish.Add(48 * time.Hour),
		AuthorID: authorID,
	})
	assert.NoError(t, err)

	// unknown author
	_, err = s.CreatePost(ctx, &CreatePostRequest{
		Title:    "Orphan",
		Body:     "No author",
		AuthorID: 9999,
	})
	assert.Equal(t, ErrAuthorForeignKey, err)
}

func TestUpdatePost(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	post, err := s.CreatePost(ctx, &CreatePostRequest{
		Title:    "Draft Post",
		Body:     "wip",
		Tags:     []string{"go"},
		AuthorID: authorID,
	})
	assert.NoError(t, err)

	updated, err := s.UpdatePost(ctx, &UpdatePostRequest{
		ID:       post.ID,
		Title:    "Draft Post",
		Slug:     post.Slug,
		Body:     "done",
		Publish:  post.Publish,
		Status:   StatusPublished,
		Tags:     []string{"go", "release"},
		AuthorID: authorID,
	})
	assert.NoError(t, err)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	got, err := s.GetAuthorPost(ctx, post.ID)
	assert.NoError(t, err)
	assert.Equal(t, StatusPublished, got.Status)
	assert.Equal(t, "done", got.Body)
	assert.Equal(t, []string{"go", "release"}, got.Tags)

	// another author cannot touch it
	otherID := 0
	err = db.QueryRow(`
		INSERT INTO authors (username, email, password, activated)
		VALUES ('otherauthor', 'other@example.com', $1, true)
		RETURNING id`, []byte("x")).Scan(&otherID)
	assert.NoError(t, err)

	_, err = s.UpdatePost(ctx, &UpdatePostRequest{
		ID:       post.ID,
		Title:    "Hijack",
		Slug:     post.Slug,
		Body:     "mine now",
		Publish:  post.Publish,
		Status:   StatusPublished,
		AuthorID: otherID,
	})
	assert.Equal(t, ErrRecordNotFound, err)
}

func TestDeletePostCascadesComments(t *testing.T) {
	s, db, _, authorID := setupTestEnvironment(t)
	ctx := context.Background()

	postID, err := createTestPost(db, authorID, "Doomed", "doomed", StatusPublished, time.Now())
	assert.NoError(t, err)

	_, err = s.CreateComment(ctx, &CreateCommentRequest{
		PostID: postID,
		Name:   "Reader",
		Email:  "reader@example.com",
		Body:   "so long",
	})
	assert.NoError(t, err)

	err = s.DeletePost(ctx, postID, authorID)
	assert.NoError(t, err)

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM comments").Scan(&count)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	err = s.DeletePost(ctx, postID, authorID)
	assert.Equal(t, ErrRecordNotFound, err)
}

func TestResolvePage(t *testing.T) {
	testCases := []struct {
		token      string
		totalPages int
		expected   int
	}{
		{token: "", totalPages: 3, expected: 1},
		{token: "abc", totalPages: 3, expected: 1},
		{token: "1.5", totalPages: 3, expected: 1},
		{token: "2", totalPages: 3, expected: 2},
		{token: "3", totalPages: 3, expected: 3},
		{token: "4", totalPages: 3, expected: 3},
		{token: "99", totalPages: 3, expected: 3},
		{token: "0", totalPages: 3, expected: 3},
		{token: "-1", totalPages: 3, expected: 3},
		{token: "1", totalPages: 1, expected: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.token, func(t *testing.T) {
			assert.Equal(t, tc.expected, resolvePage(tc.token, tc.totalPages))
		})
	}
}
