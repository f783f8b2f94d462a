package authorservice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wrenhollow/chronicle/internal/common"
)

func TestValidateUsername(t *testing.T) {
	testCases := []struct {
		name     string
		username string
		valid    bool
	}{
		{name: "valid username", username: "testauthor", valid: true},
		{name: "mixed case and digits", username: "Author42", valid: true},
		{name: "empty", username: "", valid: false},
		{name: "too short", username: "ab", valid: false},
		{name: "too long", username: strings.Repeat("a", 26), valid: false},
		{name: "symbols", username: "author_42", valid: false},
		{name: "spaces", username: "test author", valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := common.NewValidator()
			validateUsername(v, tc.username)
			assert.Equal(t, tc.valid, v.Valid())
		})
	}
}

func TestValidateEmail(t *testing.T) {
	testCases := []struct {
		name  string
		email string
		valid bool
	}{
		{name: "valid email", email: "author@example.com", valid: true},
		{name: "empty", email: "", valid: false},
		{name: "no at sign", email: "authorexample.com", valid: false},
		{name: "no tld", email: "author@example", valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := common.NewValidator()
			validateEmail(v, tc.email)
			assert.Equal(t, tc.valid, v.Valid())
		})
	}
}

func TestValidatePassword(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		valid    bool
	}{
		{name: "valid password", password: "Str0ng!pass", valid: true},
		{name: "empty", password: "", valid: false},
		{name: "too short", password: "S0g!a", valid: false},
		{name: "no uppercase", password: "str0ng!pass", valid: false},
		{name: "no lowercase", password: "STR0NG!PASS", valid: false},
		{name: "no number", password: "Strong!pass", valid: false},
		{name: "no symbol", password: "Str0ngpass", valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := common.NewValidator()
			validatePassword(v, tc.password)
			assert.Equal(t, tc.valid, v.Valid())
		})
	}
}

func TestValidateToken(t *testing.T) {
	testCases := []struct {
		name  string
		token string
		valid bool
	}{
		{name: "valid token", token: strings.Repeat("A", 26), valid: true},
		{name: "empty", token: "", valid: false},
		{name: "too short", token: strings.Repeat("A", 25), valid: false},
		{name: "too long", token: strings.Repeat("A", 27), valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := common.NewValidator()
			ValidateToken(v, tc.token)
			assert.Equal(t, tc.valid, v.Valid())
		})
	}
}
