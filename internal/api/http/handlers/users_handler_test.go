package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httptransport "github.com/rentshield/user-service/internal/api/http"
	"github.com/rentshield/user-service/internal/api/http/handlers"
	"github.com/rentshield/user-service/internal/domain"
	"github.com/rentshield/user-service/internal/observability"
	"github.com/rentshield/user-service/internal/persistence"
	"github.com/rentshield/user-service/internal/repository"
	"github.com/rentshield/user-service/internal/service"
)

// memUserRepo is an insertion-ordered in-memory repository.
type memUserRepo struct {
	mu    sync.Mutex
	users []domain.User
}

func (m *memUserRepo) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users = append(m.users, *user)
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].Email == email {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []domain.User{}
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && u.Status != *filter.Status {
			continue
		}
		matched = append(matched, u)
	}
	total := len(matched)
	if filter.Skip > 0 {
		if filter.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Skip:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *memUserRepo) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == user.ID {
			user.UpdatedAt = time.Now().UTC()
			m.users[i] = *user
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memUserRepo) UpdateStatus(_ context.Context, id, status string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users[i].Status = status
			m.users[i].UpdatedAt = time.Now().UTC()
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memUserRepo) EmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler("RentShield API", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Users:  handlers.NewUsersHandler(service.NewUserService(&memUserRepo{})),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	parsed := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Fatalf("unmarshal %q: %v", raw, err)
		}
	}
	return resp.StatusCode, parsed
}

func createUser(t *testing.T, app *fiber.App, name, email, role string) map[string]any {
	t.Helper()
	status, body := doJSON(t, app, http.MethodPost, "/api/users/", map[string]any{
		"name":     name,
		"email":    email,
		"password": "pw-" + name,
		"role":     role,
	})
	if status != http.StatusCreated {
		t.Fatalf("create %s: status %d, body %v", email, status, body)
	}
	return body
}

func errMessage(body map[string]any) string {
	errObj, _ := body["error"].(map[string]any)
	msg, _ := errObj["message"].(string)
	return msg
}

func TestCreateUserNeverLeaksHash(t *testing.T) {
	app := newTestApp(t)

	body := createUser(t, app, "Ada", "ada@example.com", "tenant")
	for key := range body {
		if strings.Contains(strings.ToLower(key), "password") {
			t.Errorf("response contains credential field %q", key)
		}
	}
	if body["status"] != "active" {
		t.Errorf("status = %v, want active default", body["status"])
	}
	if body["id"] == "" || body["id"] == nil {
		t.Error("missing generated id")
	}
}

func TestCreateValidation(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/users/", map[string]any{
		"name": "Ada", "password": "pw", "role": "tenant",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("missing email: status %d", status)
	}
	if got := errMessage(body); got != "Missing required field: email" {
		t.Errorf("message = %q", got)
	}

	status, body = doJSON(t, app, http.MethodPost, "/api/users/", map[string]any{
		"name": "Ada", "email": "a@b.c", "password": "pw", "role": "superuser",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("invalid role: status %d", status)
	}
	if got := errMessage(body); got != "Invalid role. Must be one of: admin, landlord, tenant" {
		t.Errorf("message = %q", got)
	}
}

func TestCreateDuplicateEmailConflict(t *testing.T) {
	app := newTestApp(t)
	createUser(t, app, "Ada", "dup@example.com", "tenant")

	status, body := doJSON(t, app, http.MethodPost, "/api/users/", map[string]any{
		"name": "Eve", "email": "dup@example.com", "password": "pw", "role": "admin",
	})
	if status != http.StatusConflict {
		t.Fatalf("status = %d, want 409", status)
	}
	if got := errMessage(body); got != "User with this email already exists" {
		t.Errorf("message = %q", got)
	}
}

func TestGetMalformedVersusAbsentID(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/api/users/not-a-uuid", nil)
	if status != http.StatusBadRequest {
		t.Errorf("malformed id: status = %d, want 400", status)
	}
	if got := errMessage(body); got != "Invalid user ID format" {
		t.Errorf("message = %q", got)
	}

	status, body = doJSON(t, app, http.MethodGet, "/api/users/"+uuid.NewString(), nil)
	if status != http.StatusNotFound {
		t.Errorf("absent id: status = %d, want 404", status)
	}
	if got := errMessage(body); got != "User not found" {
		t.Errorf("message = %q", got)
	}
}

func TestUpdateRoleValidatedStatusNot(t *testing.T) {
	app := newTestApp(t)
	created := createUser(t, app, "Ada", "ada@example.com", "tenant")
	id := created["id"].(string)

	status, _ := doJSON(t, app, http.MethodPut, "/api/users/"+id, map[string]any{"role": "superuser"})
	if status != http.StatusBadRequest {
		t.Errorf("invalid role on update: status = %d, want 400", status)
	}

	// The dedicated status endpoint accepts values outside the documented
	// enum.
	status, body := doJSON(t, app, http.MethodPost, "/api/users/"+id+"/status", map[string]any{"status": "suspended"})
	if status != http.StatusOK {
		t.Fatalf("status update: status = %d, body %v", status, body)
	}
	if body["status"] != "suspended" {
		t.Errorf("status = %v, want suspended", body["status"])
	}

	status, body = doJSON(t, app, http.MethodPost, "/api/users/"+id+"/status", map[string]any{})
	if status != http.StatusBadRequest {
		t.Errorf("missing status: status = %d, want 400", status)
	}
	if got := errMessage(body); got != "Missing 'status' field" {
		t.Errorf("message = %q", got)
	}
}

func TestListFilterConjunctionAndTotal(t *testing.T) {
	app := newTestApp(t)
	for i := 0; i < 3; i++ {
		createUser(t, app, fmt.Sprintf("T%d", i), fmt.Sprintf("t%d@example.com", i), "tenant")
	}
	createUser(t, app, "L0", "l0@example.com", "landlord")

	suspended := createUser(t, app, "T3", "t3@example.com", "tenant")
	if status, _ := doJSON(t, app, http.MethodPost, "/api/users/"+suspended["id"].(string)+"/status",
		map[string]any{"status": "suspended"}); status != http.StatusOK {
		t.Fatalf("suspend: status %d", status)
	}

	status, body := doJSON(t, app, http.MethodGet, "/api/users/?role=tenant&status=active&limit=2&skip=1", nil)
	if status != http.StatusOK {
		t.Fatalf("list: status %d", status)
	}
	users := body["users"].([]any)
	if len(users) != 2 {
		t.Errorf("page size = %d, want 2", len(users))
	}
	// total reflects the whole filter, not the page
	if total := body["total"].(float64); total != 3 {
		t.Errorf("total = %v, want 3", total)
	}
	if body["skip"].(float64) != 1 || body["limit"].(float64) != 2 {
		t.Errorf("pagination echo wrong: %v", body)
	}
	for _, item := range users {
		u := item.(map[string]any)
		if u["role"] != "tenant" || u["status"] != "active" {
			t.Errorf("filter leak: %v", u)
		}
	}
}

func TestDeleteTwice(t *testing.T) {
	app := newTestApp(t)
	created := createUser(t, app, "Ada", "ada@example.com", "admin")
	id := created["id"].(string)

	status, body := doJSON(t, app, http.MethodDelete, "/api/users/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("first delete: status %d", status)
	}
	if body["message"] != "User deleted successfully" || body["id"] != id {
		t.Errorf("delete body = %v", body)
	}

	status, _ = doJSON(t, app, http.MethodDelete, "/api/users/"+id, nil)
	if status != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", status)
	}
}

func TestRoundTrip(t *testing.T) {
	app := newTestApp(t)
	created := createUser(t, app, "Ada", "ada@example.com", "tenant")
	id := created["id"].(string)

	status, byID := doJSON(t, app, http.MethodGet, "/api/users/"+id, nil)
	if status != http.StatusOK || byID["email"] != "ada@example.com" {
		t.Fatalf("get by id: %d %v", status, byID)
	}

	status, byEmail := doJSON(t, app, http.MethodGet, "/api/users/email/ada@example.com", nil)
	if status != http.StatusOK || byEmail["id"] != id {
		t.Fatalf("get by email: %d %v", status, byEmail)
	}

	time.Sleep(5 * time.Millisecond)
	status, _ = doJSON(t, app, http.MethodPut, "/api/users/"+id, map[string]any{"name": "Grace"})
	if status != http.StatusOK {
		t.Fatalf("update: status %d", status)
	}

	status, after := doJSON(t, app, http.MethodGet, "/api/users/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("get after update: status %d", status)
	}
	if after["name"] != "Grace" {
		t.Errorf("name = %v, want Grace", after["name"])
	}

	createdAt, err := time.Parse(time.RFC3339Nano, after["createdAt"].(string))
	if err != nil {
		t.Fatalf("parse createdAt: %v", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, after["updatedAt"].(string))
	if err != nil {
		t.Fatalf("parse updatedAt: %v", err)
	}
	if !updatedAt.After(createdAt) {
		t.Errorf("updatedAt %v not after createdAt %v", updatedAt, createdAt)
	}
}
