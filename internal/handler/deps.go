package handler

import (
	"context"

	"justchat/internal/app/db"
	"justchat/internal/app/message"
	"justchat/internal/app/realtime"
	"justchat/internal/app/storage"
	"justchat/internal/configs"
	"justchat/internal/pkg/limiter"
)

// AccountStore is the user persistence the auth handlers need. *db.Queries implements it.
type AccountStore interface {
	CreateUser(ctx context.Context, arg db.CreateUserParams) (db.User, error)
	GetUserByEmail(ctx context.Context, email string) (db.User, error)
	GetUserByID(ctx context.Context, id string) (db.User, error)
	UpdateUserProfile(ctx context.Context, arg db.UpdateUserProfileParams) (db.User, error)
	DeleteUser(ctx context.Context, id string) (int64, error)
}

// AppDeps carries everything the HTTP handlers close over.
type AppDeps struct {
	Config   *configs.AppConfig
	Hub      *realtime.Hub
	Gate     *realtime.Gate
	Accounts AccountStore
	Messages *message.Service
	Storage  storage.Service

	// Per-IP limiters. Their cleanup loops run under the supervisor.
	AuthLimiter    *limiter.IPRateLimiter
	MessageLimiter *limiter.IPRateLimiter
	WSLimiter      *limiter.IPRateLimiter
}
