/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains HandleWebSocket, which checks the origin, authenticates the
handshake, reserves a connection slot, upgrades the connection and hands it to the hub.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"justchat/internal/app/realtime"
	"justchat/internal/metrics"
	"justchat/internal/pkg/errs"
	"justchat/internal/pkg/logx"
	"justchat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// Every refusal happens before the upgrade, so the client sees a JSON error body.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if upgrader.CheckOrigin != nil && !upgrader.CheckOrigin(r) {
			metrics.HandshakesTotal.WithLabelValues("origin").Inc()
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
			return
		}

		userID, err := deps.Gate.Admit(r)
		if err != nil {
			code, result := errs.ErrInvalidCredential, "invalid_credential"
			if errors.Is(err, realtime.ErrUnauthenticated) {
				code, result = errs.ErrUnauthenticated, "unauthenticated"
			}
			metrics.HandshakesTotal.WithLabelValues(result).Inc()
			logx.Warn("WebSocket connection rejected", "reason", result, "remote_ip", logx.AnonymizeIP(r.RemoteAddr))
			resp.RespondError(w, r, errs.NewError(code))
			return
		}

		if !deps.Hub.Reserve() {
			metrics.HandshakesTotal.WithLabelValues("capacity").Inc()
			logx.Warn("WebSocket connection rejected: server at capacity.", "user_id", userID)
			resp.RespondError(w, r, errs.NewError(errs.ErrTooManyConnections))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			deps.Hub.Release()
			metrics.HandshakesTotal.WithLabelValues("upgrade_failed").Inc()
			logx.Error(err, "Failed to upgrade connection to WebSocket", "user_id", userID)
			return
		}

		metrics.HandshakesTotal.WithLabelValues("accepted").Inc()
		logx.Info("WebSocket connection established", "user_id", userID)

		deps.Hub.Attach(conn, userID)
	}
}
