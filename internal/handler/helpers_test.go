package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"justchat/internal/app/db"
	"justchat/internal/app/message"
	"justchat/internal/app/realtime"
	"justchat/internal/app/storage"
	"justchat/internal/configs"
	"justchat/internal/pkg/auth/jwt"
	"justchat/internal/pkg/logx"
)

const testSecret = "handler-test-secret"

func init() {
	logx.InitGlobalLogger(logx.Options{Writer: io.Discard})
}

// memDB implements AccountStore, message.Store and realtime.PresenceStore in memory.
type memDB struct {
	mu       sync.Mutex
	users    map[string]db.User
	messages map[string]db.Message
	clock    time.Time
}

func newMemDB() *memDB {
	return &memDB{
		users:    make(map[string]db.User),
		messages: make(map[string]db.Message),
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memDB) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memDB) CreateUser(_ context.Context, arg db.CreateUserParams) (db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, arg.Email) {
			return db.User{}, &pgconn.PgError{Code: "23505"}
		}
	}
	now := m.tick()
	u := db.User{
		ID:           uuid.NewString(),
		Email:        arg.Email,
		FullName:     arg.FullName,
		PasswordHash: arg.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memDB) GetUserByEmail(_ context.Context, email string) (db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (m *memDB) GetUserByID(_ context.Context, id string) (db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memDB) ListUsersExcept(_ context.Context, arg db.ListUsersExceptParams) ([]db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []db.User{}
	for id, u := range m.users {
		if id != arg.ID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memDB) UpdateUserProfile(_ context.Context, arg db.UpdateUserProfileParams) (db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[arg.ID]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	if arg.FullName != "" {
		u.FullName = arg.FullName
	}
	if arg.ProfilePic != "" {
		u.ProfilePic = arg.ProfilePic
	}
	u.UpdatedAt = m.tick()
	m.users[u.ID] = u
	return u, nil
}

func (m *memDB) DeleteUser(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return 0, nil
	}
	delete(m.users, id)
	for mid, msg := range m.messages {
		if msg.SenderID == id || msg.ReceiverID == id {
			delete(m.messages, mid)
		}
	}
	return 1, nil
}

func (m *memDB) MarkOnline(context.Context, string) error             { return nil }
func (m *memDB) MarkOffline(context.Context, string, time.Time) error { return nil }

func (m *memDB) CreateMessage(_ context.Context, arg db.CreateMessageParams) (db.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	msg := db.Message{
		ID:         uuid.NewString(),
		SenderID:   arg.SenderID,
		ReceiverID: arg.ReceiverID,
		Body:       arg.Body,
		ImageURL:   arg.ImageURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.messages[msg.ID] = msg
	return msg, nil
}

func (m *memDB) GetMessage(_ context.Context, id string) (db.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return db.Message{}, pgx.ErrNoRows
	}
	return msg, nil
}

func (m *memDB) ListConversation(_ context.Context, arg db.ListConversationParams) ([]db.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []db.Message{}
	for _, msg := range m.messages {
		if (msg.SenderID == arg.UserA && msg.ReceiverID == arg.UserB) || (msg.SenderID == arg.UserB && msg.ReceiverID == arg.UserA) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(arg.Offset) >= len(out) {
		return []db.Message{}, nil
	}
	out = out[arg.Offset:]
	if len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (m *memDB) DeleteMessage(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[id]; !ok {
		return 0, nil
	}
	delete(m.messages, id)
	return 1, nil
}

func (m *memDB) MarkMessageRead(_ context.Context, id string, readAt time.Time) (db.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.ReadAt.Valid {
		return db.Message{}, pgx.ErrNoRows
	}
	msg.ReadAt = pgtype.Timestamptz{Time: readAt, Valid: true}
	m.messages[id] = msg
	return msg, nil
}

// memBlobs is an in-memory storage.Service.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted chan string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte), deleted: make(chan string, 8)}
}

const blobBase = "https://cdn.test/"

func (b *memBlobs) Upload(_ context.Context, key, _ string, _ int64, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.objects[key] = data
	b.mu.Unlock()
	return blobBase + key, nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.objects, key)
	b.mu.Unlock()
	b.deleted <- key
	return nil
}

func (b *memBlobs) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, blobBase) {
		return "", false
	}
	return strings.TrimPrefix(url, blobBase), true
}

func (b *memBlobs) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	return keys
}

type testApp struct {
	deps    *AppDeps
	store   *memDB
	blobs   *memBlobs
	handler http.Handler
}

func newTestApp(t *testing.T, tweaks ...func(*realtime.Options)) *testApp {
	t.Helper()

	store := newMemDB()
	blobs := newMemBlobs()
	opts := realtime.Options{
		Client: realtime.ClientConfig{
			WriteWait:  time.Second,
			PongWait:   5 * time.Second,
			PingPeriod: time.Second,
			SendBuffer: 16,
		},
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}
	hub := realtime.NewHub(store, opts)

	ctx, cancel := context.WithCancel(context.Background())
	for _, svc := range hub.Services() {
		go func() { _ = svc.Serve(ctx) }()
	}

	deps := &AppDeps{
		Config: &configs.AppConfig{
			Environment: "development",
			JWTSecret:   testSecret,
		},
		Hub:      hub,
		Gate:     realtime.NewGate(jwt.NewVerifier(testSecret), jwt.TokenFromRequest),
		Accounts: store,
		Messages: message.NewService(store, hub.Router(), hub.IsOnline),
		Storage:  blobs,
	}

	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = hub.Shutdown(shutdownCtx)
		cancel()
	})

	return &testApp{deps: deps, store: store, blobs: blobs, handler: Router(deps)}
}

// envelope mirrors resp.JSONResponse with a raw payload.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testApp) do(t *testing.T, r *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, r)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func jsonRequest(method, path, body, token string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func multipartRequest(t *testing.T, method, path, token string, fields map[string]string, fileField, fileName string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = fw.Write(file)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// signup registers an account and returns its id and token.
func (a *testApp) signup(t *testing.T, name, email string) (string, string) {
	t.Helper()
	body := `{"fullName":"` + name + `","email":"` + email + `","password":"Passw0rd!"}`
	rec, env := a.do(t, jsonRequest(http.MethodPost, "/api/auth/signup", body, ""))
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", email, rec.Code, rec.Body.String())
	}

	var data struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"_id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode signup data: %v", err)
	}
	return data.User.ID, data.Token
}

// pngBytes is a 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func disabledStorage(t *testing.T) storage.Service {
	t.Helper()
	svc, err := storage.NewService(storage.ServiceConfig{})
	if err != nil {
		t.Fatalf("storage.NewService: %v", err)
	}
	return svc
}
