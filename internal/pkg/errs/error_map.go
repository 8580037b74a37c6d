/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its CustomError template.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Message: "Failed to process uploaded data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrNotFound:              {Code: ErrNotFound, Message: "API endpoint not found.", Status: http.StatusNotFound},

	// 2xxx
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message text cannot exceed %d characters.", Status: http.StatusBadRequest},
	ErrMessageNotFound:       {Code: ErrMessageNotFound, Message: "Message not found.", Status: http.StatusNotFound},
	ErrMessageEmpty:          {Code: ErrMessageEmpty, Message: "Message content cannot be empty.", Status: http.StatusBadRequest},
	ErrMessageSelf:           {Code: ErrMessageSelf, Message: "You cannot message yourself.", Status: http.StatusBadRequest},
	ErrFileSizeTooLarge:      {Code: ErrFileSizeTooLarge, Message: "File is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrFileTypeInvalid:       {Code: ErrFileTypeInvalid, Message: "Only image files (jpeg, jpg, png, gif, webp) are allowed.", Status: http.StatusBadRequest},
	ErrFileMissing:           {Code: ErrFileMissing, Message: "No image file provided.", Status: http.StatusBadRequest},

	// 3xxx
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "User already exists.", Status: http.StatusConflict},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect email or password.", Status: http.StatusUnauthorized},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "User not found.", Status: http.StatusNotFound},
	ErrUnauthenticated:    {Code: ErrUnauthenticated, Message: "Authentication error: no token provided.", Status: http.StatusUnauthorized},
	ErrInvalidCredential:  {Code: ErrInvalidCredential, Message: "Authentication error: invalid token.", Status: http.StatusUnauthorized},
	ErrForbidden:          {Code: ErrForbidden, Message: "You are not allowed to perform this action.", Status: http.StatusForbidden},
	ErrTooManyConnections: {Code: ErrTooManyConnections, Message: "Server is at capacity. Please retry shortly.", Status: http.StatusServiceUnavailable},

	// 5xxx
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusBadGateway},
}
