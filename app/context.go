package main

import (
	"context"
	"net/http"

	"github.com/wrenhollow/chronicle/internal/authorservice"
)

type contextKey string

const authorContextKey = contextKey("author")

func (app *application) createAuthorContext(r *http.Request, author *authorservice.Author) *http.Request {
	ctx := context.WithValue(r.Context(), authorContextKey, author)
	return r.WithContext(ctx)
}

func (app *application) getAuthorContext(r *http.Request) *authorservice.Author {
	author, ok := r.Context().Value(authorContextKey).(*authorservice.Author)
	if !ok {
		return nil
	}
	return author
}
