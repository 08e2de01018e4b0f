package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"volunteer-hub/internal/docstore"
	"volunteer-hub/internal/status"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks v against its validate tags and reports failures as
// status.ErrInvalidInput.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", status.ErrInvalidInput, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", fe.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", fe.Field(), fe.Param()))
		case "gtefield":
			msgs = append(msgs, fmt.Sprintf("field %s must not be before %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", fe.Field()))
		}
	}
	return strings.Join(msgs, ", ")
}

// FormatTime encodes t the way every timestamp field is stored.
func FormatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

// fieldReader collects the first decode failure so entity decoders read
// straight through their fields.
type fieldReader struct {
	path   string
	fields docstore.Fields
	err    error
}

func newFieldReader(path string, fields docstore.Fields) *fieldReader {
	return &fieldReader{path: path, fields: fields}
}

func (r *fieldReader) fail(key, reason string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s: field %s %s", status.ErrMalformedDocument, r.path, key, reason)
	}
}

func (r *fieldReader) string(key string, required bool) string {
	v, ok := r.fields[key]
	if required && (!ok || v == "") {
		r.fail(key, "is missing")
	}
	return v
}

func (r *fieldReader) int(key string, required bool, def int) int {
	raw, ok := r.fields[key]
	if !ok || raw == "" {
		if required {
			r.fail(key, "is missing")
		}
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, "is not an integer")
		return def
	}
	return n
}

func (r *fieldReader) time(key string, required bool) time.Time {
	raw, ok := r.fields[key]
	if !ok || raw == "" {
		if required {
			r.fail(key, "is missing")
		}
		return time.Time{}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.fail(key, "is not a timestamp")
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// check runs struct validation on a decoded entity, unless decoding
// already failed.
func (r *fieldReader) check(v any) error {
	if r.err != nil {
		return r.err
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s: %s", status.ErrMalformedDocument, r.path, validationMessage(err))
	}
	return nil
}
