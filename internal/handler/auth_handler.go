/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"justchat/internal/app/db"
	"justchat/internal/app/user"
	"justchat/internal/pkg/auth/jwt"
	"justchat/internal/pkg/errs"
	"justchat/internal/pkg/logx"
	"justchat/internal/pkg/req"
	"justchat/internal/pkg/resp"
)

// SignupInput is the signup request body.
type SignupInput struct {
	FullName string `json:"fullName" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72,strongpassword"`
}

// HandleSignup creates an account and starts a session for it.
func HandleSignup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SignupInput
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		dbUser, err := deps.Accounts.CreateUser(r.Context(), db.CreateUserParams{
			Email:        strings.ToLower(strings.TrimSpace(input.Email)),
			FullName:     strings.TrimSpace(input.FullName),
			PasswordHash: string(hashedPassword),
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("signup conflict: email already registered")
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "failed to create user in database")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		token, ok := startSession(w, r, deps, dbUser.ID)
		if !ok {
			return
		}

		resp.RespondCreated(w, r, map[string]any{
			"token": token,
			"user":  user.FromRow(dbUser, deps.Hub.IsOnline),
		})
	}
}

// LoginInput is the login request body.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin verifies credentials and issues a session token. A session already
// present on the request is replaced.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		dbUser, err := deps.Accounts.GetUserByEmail(r.Context(), strings.TrimSpace(input.Email))
		if err != nil {
			if !db.IsNotFound(err) {
				logx.Error(err, "login: user fetch failed")
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(dbUser.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "user_id", dbUser.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		token, ok := startSession(w, r, deps, dbUser.ID)
		if !ok {
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  user.FromRow(dbUser, deps.Hub.IsOnline),
		})
	}
}

// HandleLogout clears the session cookie.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwt.ClearSessionCookie(w, deps.Config.CookieSecure)
		resp.RespondSuccess(w, r, nil)
	}
}

// HandleCheckAuth returns the signed-in user.
func HandleCheckAuth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbUser, ok := currentUser(w, r, deps)
		if !ok {
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user": user.FromRow(dbUser, deps.Hub.IsOnline),
		})
	}
}

// startSession signs a token for userID and sets it as the session cookie.
func startSession(w http.ResponseWriter, r *http.Request, deps *AppDeps, userID string) (string, bool) {
	token, err := jwt.GenerateToken(userID, deps.Config.JWTSecret, jwt.SessionExpiration)
	if err != nil {
		logx.Error(err, "jwt generation failed", "user_id", userID)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
		return "", false
	}

	jwt.SetSessionCookie(w, token, deps.Config.CookieSecure)
	return token, true
}

// currentUser loads the account behind the request's session. A token whose
// account no longer exists ends the session.
func currentUser(w http.ResponseWriter, r *http.Request, deps *AppDeps) (db.User, bool) {
	identity := jwt.GetPayloadFromContext(r)
	if identity == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return db.User{}, false
	}

	dbUser, err := deps.Accounts.GetUserByID(r.Context(), identity.UserID)
	if err != nil {
		if db.IsNotFound(err) {
			jwt.ClearSessionCookie(w, deps.Config.CookieSecure)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return db.User{}, false
		}
		logx.Error(err, "failed to load current user", "user_id", identity.UserID)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
		return db.User{}, false
	}

	return dbUser, true
}
