package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/wrenhollow/chronicle/internal/authorservice"
	"github.com/wrenhollow/chronicle/internal/common"
	"github.com/wrenhollow/chronicle/internal/postservice"
)

type registerAuthorRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (app *application) registerAuthorHandler(w http.ResponseWriter, r *http.Request) {
	var input registerAuthorRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	// The activation token travels only by email. It must never appear in
	// the response body, or anyone could activate an account they don't own.
	_, err = app.authorService.CreateAuthor(r.Context(), input.Username, input.Email, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, authorservice.ErrDuplicateEmail):
			app.failedValidationErrorResponse(w, r, map[string]string{"email": "an author with this email address already exists"})
		case errors.Is(err, authorservice.ErrDuplicateUsername):
			app.failedValidationErrorResponse(w, r, map[string]string{"username": "this username is already taken"})
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"message": "an email will be sent to you containing activation instructions"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type activateAuthorRequest struct {
	Token string `json:"token"`
}

func (app *application) activateAuthorHandler(w http.ResponseWriter, r *http.Request) {
	var input activateAuthorRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	err = app.authorService.ActivateAuthor(r.Context(), input.Token)
	if err != nil {
		switch {
		case errors.Is(err, authorservice.ErrNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "author account activated"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type loginAuthorRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (app *application) loginAuthorHandler(w http.ResponseWriter, r *http.Request) {
	var input loginAuthorRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	token, err := app.authorService.LoginAuthor(r.Context(), input.Username, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, authorservice.ErrAuthenticationFailure):
			app.invalidCredentialsErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"token": token}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) logoutAuthorHandler(w http.ResponseWriter, r *http.Request) {
	author := app.getAuthorContext(r)
	token := app.extractTokenFromHeader(r.Header.Get("Authorization"))

	err := app.authorService.LogoutAuthor(r.Context(), author.ID, token)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "author logged out"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listPostsHandler serves the public reverse-chronological listing. A bad
// page token is corrected silently, never an error.
func (app *application) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := app.postService.ListPosts(r.Context(), "", r.URL.Query().Get("page"))
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"posts": page.Posts, "metadata": page}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listPostsByTagHandler(w http.ResponseWriter, r *http.Request) {
	tagSlug := app.readSlugParam(r)

	page, err := app.postService.ListPosts(r.Context(), tagSlug, r.URL.Query().Get("page"))
	if err != nil {
		switch {
		case errors.Is(err, postservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"posts": page.Posts, "metadata": page, "tag": tagSlug}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// getPostHandler serves a published post addressed by publish date and
// slug, together with its active comments and similar posts.
func (app *application) getPostHandler(w http.ResponseWriter, r *http.Request) {
	year, month, day, err := app.readDateParams(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	slug := app.readSlugParam(r)

	post, err := app.postService.GetPost(r.Context(), year, month, day, slug)
	if err != nil {
		switch {
		case errors.Is(err, postservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	comments, err := app.postService.ListComments(r.Context(), post.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	similar, err := app.postService.SimilarPosts(r.Context(), post.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"post": post, "comments": comments, "similar_posts": similar}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) searchPostsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	hits, err := app.postService.SearchPosts(r.Context(), q)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"query": q, "posts": hits}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type createCommentRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Body  string `json:"body"`
}

// createCommentHandler accepts a comment on a published post. On a
// validation failure the submitted form is echoed back with the field
// errors and nothing is persisted.
func (app *application) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	var input createCommentRequest
	err = app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	comment, err := app.postService.CreateComment(r.Context(), &postservice.CreateCommentRequest{
		PostID: id,
		Name:   input.Name,
		Email:  input.Email,
		Body:   input.Body,
	})
	if err != nil {
		switch {
		case errors.Is(err, postservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			err = app.writeJSON(w, http.StatusUnprocessableEntity, envelope{"errors": validationErr.Errors, "form": input}, nil)
			if err != nil {
				app.serverErrorResponse(w, r, err)
			}
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"comment": comment}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type sharePostRequest struct {
	Name     string `json:"name"`
	From     string `json:"from"`
	To       string `json:"to"`
	Comments string `json:"comments"`
}

// sharePostFormHandler is the GET side of the share flow: it confirms the
// post exists and is published, and returns the unsent form state.
func (app *application) sharePostFormHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	post, err := app.postService.GetPublishedPost(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, postservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"post": post, "sent": false}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) sharePostHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	var input sharePostRequest
	err = app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	err = app.postService.SharePost(r.Context(), &postservice.SharePostRequest{
		PostID:   id,
		Name:     input.Name,
		From:     input.From,
		To:       input.To,
		Comments: input.Comments,
	})
	if err != nil {
		switch {
		case errors.Is(err, postservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			err = app.writeJSON(w, http.StatusUnprocessableEntity, envelope{"sent": false, "errors": validationErr.Errors, "form": input}, nil)
			if err != nil {
				app.serverErrorResponse(w, r, err)
			}
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"sent": true}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type createPostRequest struct {
	Title   string     `json:"title"`
	Slug    string     `json:"slug"`
	Body    string     `json:"body"`
	Publish *time.Time `json:"publish"`
	Status  string     `json:"status"`
	Tags    []string   `json:"tags"`
}

func (app *application) createPostHandler(w http.ResponseWriter, r *http.Request) {
	var input createPostRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	author := app.getAuthorContext(r)

	req := &postservice.CreatePostRequest{
		Title:    input.Title,
		Slug:     input.Slug,
		Body:     input.Body,
		Status:   postservice.Status(input.Status),
		Tags:     input.Tags,
		AuthorID: author.ID,
	}
	if input.Publish != nil {
		req.Publish = *input.Publish
	}

	post, err := app.postService.CreatePost(r.Context(), req)
	if err != nil {
		switch {
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		case errors.Is(err, postservice.ErrDuplicateSlug):
			app.failedValidationErrorResponse(w, r, map[string]string{"slug": "already used on this publish date"})
		case errors.Is(err, postservice.ErrAuthorForeignKey):
			app.unAuthorizedErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"post": post}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updatePostRequest is a partial update: fields left out of the JSON body
// keep their stored values. Because absent strings and empty strings both
// decode to "", an explicit empty string is treated the same as an omitted
// field and cannot clear a value; the same holds for a null or missing tags
// array. Clearing publish is likewise impossible, since a null publish means
// keep.
type updatePostRequest struct {
	Title   string     `json:"title"`
	Slug    string     `json:"slug"`
	Body    string     `json:"body"`
	Publish *time.Time `json:"publish"`
	Status  string     `json:"status"`
	Tags    []string   `json:"tags"`
}

func (app *application) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	var input updatePostRequest
	err = app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	author := app.getAuthorContext(r)

	dbPost, err := app.postService.GetAuthorPost(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, postservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	if dbPost.AuthorID != author.ID {
		app.unAuthorizedErrorResponse(w, r)
		return
	}

	// Omitted fields keep their stored values.
	req := &postservice.UpdatePostRequest{
		ID:       dbPost.ID,
		Title:    dbPost.Title,
		Slug:     dbPost.Slug,
		Body:     dbPost.Body,
		Publish:  dbPost.Publish,
		Status:   dbPost.Status,
		Tags:     dbPost.Tags,
		AuthorID: author.ID,
	}
	if input.Title != "" {
		req.Title = input.Title
	}
	if input.Slug != "" {
		req.Slug = input.Slug
	}
	if input.Body != "" {
		req.Body = input.Body
	}
	if input.Publish != nil {
		req.Publish = *input.Publish
	}
	if input.Status != "" {
		req.Status = postservice.Status(input.Status)
	}
	if input.Tags != nil {
		req.Tags = input.Tags
	}

	post, err := app.postService.UpdatePost(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, postservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.Is(err, postservice.ErrDuplicateSlug):
			app.failedValidationErrorResponse(w, r, map[string]string{"slug": "already used on this publish date"})
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"post": post}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	author := app.getAuthorContext(r)

	err = app.postService.DeletePost(r.Context(), id, author.ID)
	if err != nil {
		switch {
		case errors.Is(err, postservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "post deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listAuthorPostsHandler(w http.ResponseWriter, r *http.Request) {
	author := app.getAuthorContext(r)

	posts, err := app.postService.ListAuthorPosts(r.Context(), author.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"posts": posts}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
