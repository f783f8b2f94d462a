package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/wrenhollow/chronicle/internal/authorservice"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundErrorResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedErrorResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthCheckHandler)

	// public reading
	router.HandlerFunc(http.MethodGet, "/v1/posts", app.listPostsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/tags/:slug/posts", app.listPostsByTagHandler)
	router.HandlerFunc(http.MethodGet, "/v1/archive/:year/:month/:day/:slug", app.getPostHandler)
	router.HandlerFunc(http.MethodGet, "/v1/search", app.searchPostsHandler)

	// interaction
	router.HandlerFunc(http.MethodPost, "/v1/posts/:id/comments", app.rateLimit(app.createCommentHandler))
	router.HandlerFunc(http.MethodGet, "/v1/posts/:id/share", app.sharePostFormHandler)
	router.HandlerFunc(http.MethodPost, "/v1/posts/:id/share", app.rateLimit(app.sharePostHandler))

	// authoring
	router.HandlerFunc(http.MethodPost, "/v1/posts", app.requirePermission(app.createPostHandler, authorservice.PermissionWritePost))
	router.HandlerFunc(http.MethodPut, "/v1/posts/:id", app.requirePermission(app.updatePostHandler, authorservice.PermissionWritePost))
	router.HandlerFunc(http.MethodDelete, "/v1/posts/:id", app.requirePermission(app.deletePostHandler, authorservice.PermissionWritePost))
	router.HandlerFunc(http.MethodGet, "/v1/authors/posts", app.requirePermission(app.listAuthorPostsHandler, authorservice.PermissionWritePost))

	// author accounts
	router.HandlerFunc(http.MethodPost, "/v1/authors/register", app.registerAuthorHandler)
	router.HandlerFunc(http.MethodPut, "/v1/authors/activate", app.activateAuthorHandler)
	router.HandlerFunc(http.MethodPost, "/v1/authors/login", app.loginAuthorHandler)
	router.HandlerFunc(http.MethodPost, "/v1/authors/logout", app.requireAuthAuthor(app.logoutAuthorHandler))

	return app.recoverPanic(app.logRequest(app.authenticate(router)))
}
