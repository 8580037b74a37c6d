package message

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"justchat/internal/app/db"
	"justchat/internal/app/user"
	"justchat/internal/pkg/errs"
	"justchat/internal/pkg/logx"
)

// Store is the persistence the Service needs. *db.Queries implements it.
type Store interface {
	GetUserByID(ctx context.Context, id string) (db.User, error)
	ListUsersExcept(ctx context.Context, arg db.ListUsersExceptParams) ([]db.User, error)
	CreateMessage(ctx context.Context, arg db.CreateMessageParams) (db.Message, error)
	GetMessage(ctx context.Context, id string) (db.Message, error)
	ListConversation(ctx context.Context, arg db.ListConversationParams) ([]db.Message, error)
	DeleteMessage(ctx context.Context, id string) (int64, error)
	MarkMessageRead(ctx context.Context, id string, readAt time.Time) (db.Message, error)
}

// Notifier pushes message events to the participants' open connections and
// reports how many connections accepted them.
type Notifier interface {
	MessageCreated(msg any, senderID, receiverID string) int
	MessageDeleted(messageID, senderID, receiverID string) int
	MessageRead(messageID string, readAt time.Time, senderID, receiverID string) int
}

// SendInput is the body of a send request.
type SendInput struct {
	Message  string `json:"message"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

// Service implements send, delete, mark-read and the read models.
type Service struct {
	store    Store
	notifier Notifier
	online   user.OnlineFunc
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService wires a Service. online reports live presence for the sidebar.
func NewService(store Store, notifier Notifier, online user.OnlineFunc) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		online:   online,
		now:      time.Now,
		logger:   logx.Component("messages"),
	}
}

// ValidID reports whether id is a well-formed identifier.
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// Send stores a message from senderID to receiverID and pushes it to both users.
func (s *Service) Send(ctx context.Context, senderID, receiverID string, in SendInput) (Message, error) {
	if !ValidID(receiverID) {
		return Message{}, errs.NewError(errs.ErrInvalidParams)
	}
	if senderID == receiverID {
		return Message{}, errs.NewError(errs.ErrMessageSelf)
	}

	body := Sanitize(in.Message)
	if body == "" && in.ImageURL == "" {
		return Message{}, errs.NewError(errs.ErrMessageEmpty)
	}
	if Length(body) > MaxLength {
		return Message{}, errs.NewError(errs.ErrMessageContentTooLong, MaxLength)
	}

	if _, err := s.store.GetUserByID(ctx, receiverID); err != nil {
		if db.IsNotFound(err) {
			return Message{}, errs.NewError(errs.ErrUserNotFound)
		}
		return Message{}, errs.NewError(errs.ErrUnknown, err)
	}

	sender, err := s.store.GetUserByID(ctx, senderID)
	if err != nil {
		if db.IsNotFound(err) {
			return Message{}, errs.NewError(errs.ErrUnauthorized)
		}
		return Message{}, errs.NewError(errs.ErrUnknown, err)
	}

	row, err := s.store.CreateMessage(ctx, db.CreateMessageParams{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		ImageURL:   in.ImageURL,
	})
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Message{}, errs.NewError(errs.ErrUserNotFound)
		}
		return Message{}, errs.NewError(errs.ErrUnknown, err)
	}

	msg := FromRow(row)
	msg.Sender = senderOf(sender)

	delivered := s.notifier.MessageCreated(msg, senderID, receiverID)
	s.logger.Debug().
		Str("message_id", msg.ID).
		Str("sender_id", senderID).
		Str("receiver_id", receiverID).
		Int("delivered", delivered).
		Msg("Message stored")

	return msg, nil
}

// load fetches a message and maps lookup failures to client errors.
func (s *Service) load(ctx context.Context, messageID string) (db.Message, error) {
	if !ValidID(messageID) {
		return db.Message{}, errs.NewError(errs.ErrMessageNotFound)
	}

	row, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if db.IsNotFound(err) {
			return db.Message{}, errs.NewError(errs.ErrMessageNotFound)
		}
		return db.Message{}, errs.NewError(errs.ErrUnknown, err)
	}
	return row, nil
}

// Delete removes a message authored by userID and notifies both participants.
func (s *Service) Delete(ctx context.Context, userID, messageID string) error {
	row, err := s.load(ctx, messageID)
	if err != nil {
		return err
	}
	if row.SenderID != userID {
		return errs.NewError(errs.ErrForbidden)
	}

	n, err := s.store.DeleteMessage(ctx, messageID)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}
	if n == 0 {
		return errs.NewError(errs.ErrMessageNotFound)
	}

	s.notifier.MessageDeleted(row.ID, row.SenderID, row.ReceiverID)
	return nil
}

// MarkRead marks a message addressed to userID as read. A message that is already
// read is returned unchanged and no event is sent.
func (s *Service) MarkRead(ctx context.Context, userID, messageID string) (Message, error) {
	row, err := s.load(ctx, messageID)
	if err != nil {
		return Message{}, err
	}
	if row.ReceiverID != userID {
		return Message{}, errs.NewError(errs.ErrForbidden)
	}
	if row.ReadAt.Valid {
		return FromRow(row), nil
	}

	updated, err := s.store.MarkMessageRead(ctx, messageID, s.now().UTC())
	if err != nil {
		if db.IsNotFound(err) {
			// Lost a race with another reader or a delete; reload for the final state.
			current, loadErr := s.load(ctx, messageID)
			if loadErr != nil {
				return Message{}, loadErr
			}
			return FromRow(current), nil
		}
		return Message{}, errs.NewError(errs.ErrUnknown, err)
	}

	msg := FromRow(updated)
	s.notifier.MessageRead(msg.ID, *msg.ReadAt, updated.SenderID, updated.ReceiverID)
	return msg, nil
}

// Conversation returns page (1-based) of the messages exchanged with otherID in
// chronological order. The page is cut from the newest end.
func (s *Service) Conversation(ctx context.Context, userID, otherID string, page, limit int) ([]Message, error) {
	if !ValidID(otherID) {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > PageLimit {
		limit = PageLimit
	}
	if page-1 > math.MaxInt32/limit {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}
	offset := (page - 1) * limit

	rows, err := s.store.ListConversation(ctx, db.ListConversationParams{
		UserA:  userID,
		UserB:  otherID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	senders := make(map[string]*Sender, 2)
	for _, id := range []string{userID, otherID} {
		u, err := s.store.GetUserByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				continue
			}
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		senders[id] = senderOf(u)
	}

	out := make([]Message, 0, len(rows))
	for _, row := range rows {
		msg := FromRow(row)
		msg.Sender = senders[row.SenderID]
		out = append(out, msg)
	}
	slices.Reverse(out)
	return out, nil
}

// Sidebar lists every other user with live online state.
func (s *Service) Sidebar(ctx context.Context, userID string) ([]user.Public, error) {
	rows, err := s.store.ListUsersExcept(ctx, db.ListUsersExceptParams{ID: userID, Limit: SidebarLimit})
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	return user.FromRows(rows, s.online), nil
}
