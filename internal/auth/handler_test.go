package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/pkg/response"
	"github.com/kt-lectures/broadcaster/pkg/utils"
)

type memAdmins struct {
	byLogin map[string]*models.Admin
	owners  int
}

func (m *memAdmins) GetByLogin(_ context.Context, login string) (*models.Admin, error) {
	if a, ok := m.byLogin[login]; ok {
		return a, nil
	}
	return nil, models.ErrNotFound
}

func (m *memAdmins) List(context.Context) ([]models.AdminPublic, error) {
	var out []models.AdminPublic
	for _, a := range m.byLogin {
		out = append(out, a.ToPublic())
	}
	return out, nil
}

func (m *memAdmins) Create(_ context.Context, login, hash, comment string, role models.Role) (*models.Admin, error) {
	if _, ok := m.byLogin[login]; ok {
		return nil, models.ErrDuplicateKey
	}
	a := &models.Admin{ID: uuid.New(), Login: login, Password: hash, Comment: comment, Role: role}
	m.byLogin[login] = a
	return a, nil
}

func (m *memAdmins) EnsureOwner(_ context.Context, login, hash string) (bool, error) {
	if _, ok := m.byLogin[login]; ok {
		return false, nil
	}
	m.owners++
	m.byLogin[login] = &models.Admin{ID: uuid.New(), Login: login, Password: hash, Role: models.RoleOwner}
	return true, nil
}

func newRouter(t *testing.T) (*gin.Engine, *memAdmins, *JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := &memAdmins{byLogin: map[string]*models.Admin{}}
	if err := Bootstrap(context.Background(), store, "root", "correct-horse", nil); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	jwt := NewJWTService("secret", 1)
	h := NewHandler(store, jwt, nil)
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/admins", h.Create)
	return r, store, jwt
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	r, _, jwt := newRouter(t)

	w := post(r, "/auth/login", LoginRequest{Login: "root", Password: "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Data TokenResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	claims, err := jwt.Validate(body.Data.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Login != "root" || claims.Role != models.RoleOwner {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if w := post(r, "/auth/login", LoginRequest{Login: "root", Password: "wrong-password"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := post(r, "/auth/login", LoginRequest{Login: "nobody", Password: "whatever1"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCreateAdmin(t *testing.T) {
	r, store, _ := newRouter(t)

	w := post(r, "/admins", CreateAdminRequest{Login: "ops", Password: "long-enough", Comment: "tg @ops"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if a := store.byLogin["ops"]; a == nil || a.Role != models.RoleAdmin || !utils.CheckPassword("long-enough", a.Password) {
		t.Fatalf("unexpected stored admin %+v", a)
	}

	tests := []struct {
		name string
		req  CreateAdminRequest
		code int
	}{
		{"duplicate", CreateAdminRequest{Login: "ops", Password: "long-enough"}, http.StatusConflict},
		{"short password", CreateAdminRequest{Login: "x", Password: "short"}, http.StatusBadRequest},
		{"bad role", CreateAdminRequest{Login: "y", Password: "long-enough", Role: "root"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(r, "/admins", tt.req)
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, w.Code)
			}
			var body response.Body
			_ = json.Unmarshal(w.Body.Bytes(), &body)
			if body.Success || body.Error == "" {
				t.Fatalf("expected error envelope, got %+v", body)
			}
		})
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	store := &memAdmins{byLogin: map[string]*models.Admin{}}
	for i := 0; i < 2; i++ {
		if err := Bootstrap(context.Background(), store, "root", "correct-horse", nil); err != nil {
			t.Fatal(err)
		}
	}
	if store.owners != 1 {
		t.Fatalf("expected one owner, got %d", store.owners)
	}
	if err := Bootstrap(context.Background(), store, "", "", nil); err != nil {
		t.Fatalf("disabled bootstrap: %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	s := NewJWTService("secret", 1)
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := s.Generate(&models.Admin{ID: uuid.New(), Login: "a", Role: models.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Validate(tok); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := NewJWTService("other", 1).AdminID(tok); err == nil {
		t.Fatal("expected signature mismatch")
	}
}
