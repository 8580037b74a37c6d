/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both inside the server
and in the JSON envelope returned to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart or URL-encoded form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrNotFound indicates that no route matched the request.
	ErrNotFound = 1008
)

// 2xxx: Message and Content Errors
const (
	// ErrMessageContentTooLong indicates that the message text exceeded the maximum length.
	ErrMessageContentTooLong = 2201

	// ErrMessageNotFound indicates that the referenced message does not exist.
	ErrMessageNotFound = 2202

	// ErrMessageEmpty indicates a message with neither text nor image.
	ErrMessageEmpty = 2203

	// ErrMessageSelf indicates an attempt to message oneself.
	ErrMessageSelf = 2204

	// ErrFileSizeTooLarge indicates that the uploaded file is too large.
	ErrFileSizeTooLarge = 2301

	// ErrFileTypeInvalid indicates that the uploaded file is not an allowed image type.
	ErrFileTypeInvalid = 2302

	// ErrFileMissing indicates that the expected file field was absent.
	ErrFileMissing = 2303
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates the request requires a signed-in user.
	ErrUnauthorized = 3001

	// ErrUserAlreadyExists indicates that the email is already registered.
	ErrUserAlreadyExists = 3003

	// ErrInvalidCredentials indicates a wrong email/password pair.
	ErrInvalidCredentials = 3004

	// ErrUserNotFound indicates that the referenced user does not exist.
	ErrUserNotFound = 3005

	// ErrUnauthenticated indicates a realtime handshake without any credential.
	ErrUnauthenticated = 3101

	// ErrInvalidCredential indicates a realtime handshake with a bad or expired credential.
	ErrInvalidCredential = 3102

	// ErrForbidden indicates the user may not act on the referenced resource.
	ErrForbidden = 3103

	// ErrTooManyConnections indicates the process connection limit was reached.
	ErrTooManyConnections = 3104
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates that the blob store rejected or failed an operation.
	ErrFileStorageFailed = 5001
)
