package postservice

import (
	"regexp"
	"time"

	"github.com/wrenhollow/chronicle/internal/common"
)

var (
	EmailRX = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	SlugRX  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

func validateTitle(v *common.Validator, title string) {
	v.Check(title != "", "title", "must be provided")
	v.Check(v.CheckStringLength(title, 1, 250), "title", "must not be more than 250 characters long")
}

func validateSlug(v *common.Validator, slug string) {
	v.Check(slug != "", "slug", "must be provided")
	v.Check(v.CheckStringLength(slug, 1, 250), "slug", "must not be more than 250 characters long")
	v.Check(v.Matches(slug, SlugRX), "slug", "must only contain lowercase letters, numbers, and hyphens")
}

func validateBody(v *common.Validator, body string) {
	v.Check(body != "", "body", "must be provided")
}

func validateStatus(v *common.Validator, status Status) {
	v.Check(common.PermittedValue(status, StatusDraft, StatusPublished), "status", "must be either draft or published")
}

func validatePublish(v *common.Validator, publish time.Time) {
	v.Check(!publish.IsZero(), "publish", "must be provided")
}

func validateCommentName(v *common.Validator, name string) {
	v.Check(name != "", "name", "must be provided")
	v.Check(v.CheckStringLength(name, 1, 80), "name", "must not be more than 80 characters long")
}

func validateEmail(v *common.Validator, email, field string) {
	v.Check(email != "", field, "must be provided")
	v.Check(v.Matches(email, EmailRX), field, "must be a valid email address")
}

func validateCommentBody(v *common.Validator, body string) {
	v.Check(body != "", "body", "must be provided")
}

func validateShareComment(v *common.Validator, comment string) {
	v.Check(v.CheckStringLength(comment, 0, 2000), "comments", "must not be more than 2000 characters long")
}

func validateInt(v *common.Validator, num int, name string) {
	v.Check(num > 0, name, "must be greater than zero")
}

// validateDate rejects dates that do not exist on the calendar, such as
// February 30th. time.Date normalizes out-of-range components, so a
// round-trip that changes any of them means the input was impossible.
func validateDate(v *common.Validator, year, month, day int) {
	v.Check(year >= 1 && year <= 9999, "year", "must be a valid year")
	v.Check(month >= 1 && month <= 12, "month", "must be a valid month")
	v.Check(day >= 1 && day <= 31, "day", "must be a valid day")
	if !v.Valid() {
		return
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	v.Check(t.Year() == year && t.Month() == time.Month(month) && t.Day() == day, "day", "must be a valid calendar date")
}
