package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"justchat/internal/app/message"
	"justchat/internal/pkg/auth/jwt"
	"justchat/internal/pkg/errs"
	"justchat/internal/pkg/req"
	"justchat/internal/pkg/resp"
)

// HandleSidebarUsers lists the contacts of the signed-in user with live presence.
func HandleSidebarUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		users, err := deps.Messages.Sidebar(r.Context(), identity.UserID)
		if err != nil {
			resp.RespondError(w, r, errs.As(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"users": users})
	}
}

// HandleConversation returns one page of the conversation with the user in the path.
func HandleConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		page, ok := queryInt(r, "page", 1)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		limit, ok := queryInt(r, "limit", message.PageLimit)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		msgs, err := deps.Messages.Conversation(r.Context(), identity.UserID, chi.URLParam(r, "id"), page, limit)
		if err != nil {
			resp.RespondError(w, r, errs.As(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"messages": msgs})
	}
}

// HandleSendMessage stores a message to the user in the path and pushes it live.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input message.SendInput
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, err := deps.Messages.Send(r.Context(), identity.UserID, chi.URLParam(r, "id"), input)
		if err != nil {
			resp.RespondError(w, r, errs.As(err))
			return
		}

		resp.RespondCreated(w, r, map[string]any{"message": msg})
	}
}

// HandleDeleteMessage deletes a message sent by the signed-in user.
func HandleDeleteMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		messageID := chi.URLParam(r, "id")

		if err := deps.Messages.Delete(r.Context(), identity.UserID, messageID); err != nil {
			resp.RespondError(w, r, errs.As(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"messageId": messageID})
	}
}

// HandleMarkRead marks a received message as read.
func HandleMarkRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		msg, err := deps.Messages.MarkRead(r.Context(), identity.UserID, chi.URLParam(r, "id"))
		if err != nil {
			resp.RespondError(w, r, errs.As(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"messageId": msg.ID,
			"readAt":    msg.ReadAt,
		})
	}
}

// queryInt reads a positive integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
