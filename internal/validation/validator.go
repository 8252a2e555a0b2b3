// Package validation holds the rule set shared by every form in the catalog:
// each rule is a struct tag on a domain form (field -> predicate) plus an
// entry in the message table below (field -> message). Failures come back as
// a single *Error carrying one message per field so callers can render them
// next to the offending input.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"movie-catalog/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the process-wide validator with the catalog's custom
// rules registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		// notblank: like required, but whitespace-only strings fail too.
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return !fl.Field().IsZero()
			}
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// Error is a validation failure with one message per field.
type Error struct {
	fields map[string]string
}

// NewError builds an Error for a single field.
func NewError(field, message string) *Error {
	e := &Error{}
	e.Add(field, message)
	return e
}

// Add records a message for field. The first message for a field wins.
func (e *Error) Add(field, message string) {
	if e.fields == nil {
		e.fields = make(map[string]string)
	}
	if _, ok := e.fields[field]; !ok {
		e.fields[field] = message
	}
}

// Fields returns a copy of the per-field messages.
func (e *Error) Fields() map[string]string {
	out := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

// Field returns the message for one field, or "" if it passed.
func (e *Error) Field(name string) string {
	return e.fields[name]
}

// Len returns the number of failing fields.
func (e *Error) Len() int {
	return len(e.fields)
}

func (e *Error) Error() string {
	if len(e.fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.fields))
	for name := range e.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.fields[name]))
	}
	return strings.Join(parts, "; ")
}

// AsError extracts a validation failure from err.
func AsError(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// messages maps "Form.field.tag" to the text shown to the user.
var messages = map[string]string{
	"ReviewFields.reviewer_name.notblank": "Name is required",
	"ReviewFields.title.notblank":         "Review title is required",
	"ReviewFields.rating.required":        "Please select a rating",
	"ReviewFields.rating.min":             "Rating must be between 1 and 5",
	"ReviewFields.rating.max":             "Rating must be between 1 and 5",
	"ReviewFields.comment.notblank":       "Please add a comment",

	"MovieForm.title.notblank":         "Title is required",
	"MovieForm.release_date.required":  "Release date is required",
	"MovieForm.release_date.datetime":  "Release date must be a valid date (YYYY-MM-DD)",
	"MovieForm.description.notblank":   "Description is required",
	"MovieForm.image.required_without": "Image is required",
	"MovieForm.genres.min":             "Select at least one genre",

	"GenreForm.name.notblank": "Genre name is required",
	"GenreForm.name.max":      "Genre name must be at most 100 characters",
}

// Struct validates any tagged form and converts the failures into an *Error.
func Struct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %T: %w", s, err)
	}
	verr := &Error{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), message(fe))
	}
	return verr
}

func message(fe validator.FieldError) string {
	form := strings.SplitN(fe.Namespace(), ".", 2)[0]
	if msg, ok := messages[form+"."+fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required", "notblank", "required_without":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// Review validates a review form.
func Review(f domain.ReviewFields) error {
	return Struct(&f)
}

// Movie validates a movie form. Image is only demanded when the movie does
// not have one yet (f.HasImage).
func Movie(f domain.MovieForm) error {
	return Struct(&f)
}

// Genre validates a genre form.
func Genre(f domain.GenreForm) error {
	return Struct(&f)
}
