package resp

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"justchat/internal/pkg/errs"
	"justchat/internal/pkg/logx"
)

func init() {
	logx.InitGlobalLogger(logx.Options{Writer: io.Discard})
}

func TestRespondSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondSuccess(rec, req, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Code int               `json:"code"`
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != 0 || body.Data["hello"] != "world" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondError(rec, req, errs.NewError(errs.ErrForbidden))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	var body JSONResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != errs.ErrForbidden {
		t.Errorf("code = %d, want %d", body.Code, errs.ErrForbidden)
	}
	if body.Data != nil {
		t.Errorf("error body should carry no data, got %v", body.Data)
	}
}

func TestRespondErrorNil(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
