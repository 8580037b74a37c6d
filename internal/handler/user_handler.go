package handler

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"justchat/internal/app/db"
	"justchat/internal/app/user"
	"justchat/internal/pkg/auth/jwt"
	"justchat/internal/pkg/errs"
	"justchat/internal/pkg/logx"
	"justchat/internal/pkg/req"
	"justchat/internal/pkg/resp"
)

// ProfilePicField is the multipart field carrying a new avatar.
const ProfilePicField = "profilePic"

// HandleUpdateProfile changes the display name and/or avatar of the signed-in user.
// The request is multipart: an optional fullName field and an optional profilePic file.
func HandleUpdateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oldUser, ok := currentUser(w, r, deps)
		if !ok {
			return
		}

		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fullName := strings.TrimSpace(r.FormValue("fullName"))
		if fullName != "" {
			if n := utf8.RuneCountInString(fullName); n < 3 || n > 50 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
		}

		avatarURL := ""
		if r.MultipartForm != nil && len(r.MultipartForm.File[ProfilePicField]) > 0 {
			url, customErr := storeImage(r, deps, ProfilePicField, "avatars/"+oldUser.ID)
			if customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
			avatarURL = url
		}

		if fullName == "" && avatarURL == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		updated, err := deps.Accounts.UpdateUserProfile(r.Context(), db.UpdateUserProfileParams{
			ID:         oldUser.ID,
			FullName:   fullName,
			ProfilePic: avatarURL,
		})
		if err != nil {
			logx.Error(err, "update_profile: database update failed", "user_id", oldUser.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if avatarURL != "" && oldUser.ProfilePic != "" && oldUser.ProfilePic != avatarURL {
			deleteObjectAsync(deps, oldUser.ProfilePic)
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user": user.FromRow(updated, deps.Hub.IsOnline),
		})
	}
}

// HandleDeleteAccount removes the signed-in user and their messages, closes their
// realtime connections and ends the session.
func HandleDeleteAccount(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbUser, ok := currentUser(w, r, deps)
		if !ok {
			return
		}

		if _, err := deps.Accounts.DeleteUser(r.Context(), dbUser.ID); err != nil {
			logx.Error(err, "delete_account: database delete failed", "user_id", dbUser.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if dbUser.ProfilePic != "" {
			deleteObjectAsync(deps, dbUser.ProfilePic)
		}

		deps.Hub.DisconnectUser(dbUser.ID)

		jwt.ClearSessionCookie(w, deps.Config.CookieSecure)
		logx.Info("Account deleted", "user_id", dbUser.ID)
		resp.RespondSuccess(w, r, nil)
	}
}

// deleteObjectAsync removes a stored object in the background when url belongs to our store.
func deleteObjectAsync(deps *AppDeps, url string) {
	key, ok := deps.Storage.KeyFromURL(url)
	if !ok {
		return
	}

	go func(k string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := deps.Storage.Delete(ctx, k); err != nil {
			logx.Warn("Failed to delete replaced object", "key", k, "error", err.Error())
		}
	}(key)
}
