/*
Package req provides helper functions for HTTP request parsing and data binding.

It parses JSON and multipart bodies, enforces size limits and runs struct
validation, translating every failure into an errs.CustomError.
*/
package req

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"justchat/internal/pkg/errs"
)

const (
	// MaxFormMemory is the memory ParseMultipartForm may use before spilling files to disk.
	MaxFormMemory int64 = 10 << 20 // 10 MB

	// MaxRequestFileSize caps the whole multipart body, file included.
	MaxRequestFileSize int64 = 11 << 20 // 11 MB
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance with the custom tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("strongpassword", strongPassword)
	})
	return validate
}

// strongPassword requires at least one upper case letter, lower case letter, digit and symbol.
func strongPassword(fl validator.FieldLevel) bool {
	var upper, lower, digit, special bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// BindJSON attempts to bind the JSON data from the HTTP request body to dst.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// Validate runs struct-tag validation on v.
func Validate(v any) *errs.CustomError {
	if err := Validator().Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return errs.NewError(errs.ErrInvalidParams)
		}
		return errs.NewError(errs.ErrUnknown, err)
	}
	return nil
}

// BindAndValidate combines BindJSON and Validate.
func BindAndValidate(r *http.Request, dst any) *errs.CustomError {
	if err := BindJSON(r, dst); err != nil {
		return err
	}
	return Validate(dst)
}

// SetupMultipart limits and parses a multipart or URL-encoded form.
func SetupMultipart(w http.ResponseWriter, r *http.Request) *errs.CustomError {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestFileSize)

	err := r.ParseMultipartForm(MaxFormMemory)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}

		return errs.NewError(errs.ErrFormParseFailed)
	}

	return nil
}
