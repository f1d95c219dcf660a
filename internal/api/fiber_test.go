package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ebuddy/user-admin-backend/database"
	auditevents "github.com/ebuddy/user-admin-backend/events/modules/audit"
	"github.com/ebuddy/user-admin-backend/graphql"
	"github.com/ebuddy/user-admin-backend/internal/identity"
	"github.com/ebuddy/user-admin-backend/internal/services"
	"github.com/ebuddy/user-admin-backend/restapi"
	"github.com/gofiber/fiber/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// flakyAuditStore fails every audit append and passes everything else through.
type flakyAuditStore struct {
	*database.MemoryStore
}

func (s flakyAuditStore) Add(context.Context, string, database.Document) (string, error) {
	return "", errors.New("audit store down")
}

type harness struct {
	app   *fiber.App
	idp   *identity.MemoryGateway
	store database.RecordStore
	mem   *database.MemoryStore
	token string
	uid   string
}

func newHarness(t *testing.T, failAudit bool) *harness {
	t.Helper()
	return newHarnessWithPublisher(t, failAudit, nil)
}

func newHarnessWithPublisher(t *testing.T, failAudit bool, publisher services.AuditPublisher) *harness {
	t.Helper()
	log := zap.NewNop()
	idp := identity.NewMemoryGateway("integration-secret")
	mem := database.NewMemoryStore()

	var store database.RecordStore = mem
	if failAudit {
		store = flakyAuditStore{MemoryStore: mem}
	}

	audit := services.NewAuditRecorder(store, publisher, log)
	userSvc := services.NewUserService(idp, store, audit, log, "Default@1234")
	sessionSvc := services.NewSessionService(idp, idp, true, "", log)

	schema, err := graphql.CreateSchema(userSvc)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}

	app := NewFiberApp(Config{FrontendURL: "http://localhost:3000", DisableRequestLog: true}, restapi.Dependencies{
		Verifier: idp,
		Sessions: sessionSvc,
		Users:    userSvc,
		Schema:   schema,
	}, log)

	h := &harness{app: app, idp: idp, store: store, mem: mem}

	admin, err := idp.CreateAccount(context.Background(), identity.AccountToCreate{Email: "admin@example.com", Password: "admin-pass", DisplayName: "Admin"})
	if err != nil {
		t.Fatalf("admin account: %v", err)
	}
	h.uid = admin.ID

	resp, body := h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@example.com", "password": "admin-pass"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %v", resp.StatusCode, body)
	}
	h.token = body["data"].(map[string]interface{})["token"].(string)
	return h
}

func (h *harness) do(t *testing.T, method, path, token string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var body map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, body
}

func errorOf(t *testing.T, body map[string]interface{}) (string, float64) {
	t.Helper()
	if body["success"] != false {
		t.Fatalf("expected failure envelope, got %v", body)
	}
	e := body["error"].(map[string]interface{})
	return e["message"].(string), e["code"].(float64)
}

func newUserBody(email string) map[string]interface{} {
	return map[string]interface{}{
		"name":                      "Ann",
		"email":                     email,
		"totalAverageWeightRatings": 4.5,
		"numberOfRents":             0,
		"recentlyActive":            1700000000000,
	}
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t, false)
	resp, body := h.do(t, http.MethodGet, "/", "", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}
}

func TestSecurityAndCacheHeaders(t *testing.T) {
	h := newHarness(t, false)
	resp, _ := h.do(t, http.MethodGet, "/", "", nil)

	want := map[string]string{
		"Cache-Control":          "no-store, no-cache, must-revalidate, proxy-revalidate",
		"Pragma":                 "no-cache",
		"Expires":                "0",
		"Surrogate-Control":      "no-store",
		"X-Content-Type-Options": "nosniff",
	}
	for k, v := range want {
		if got := resp.Header.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, false)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/fetch-all-users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	resp, err := h.app.Test(req, -1)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("allow credentials = %q", got)
	}
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	h := newHarness(t, false)
	resp, body := h.do(t, http.MethodGet, "/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, code := errorOf(t, body); code != 404 {
		t.Fatalf("code = %v", code)
	}
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t, false)

	resp, body := h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@example.com"})
	if msg, _ := errorOf(t, body); resp.StatusCode != http.StatusBadRequest || msg != "Email and password are required" {
		t.Fatalf("missing password = %d %v", resp.StatusCode, body)
	}

	resp, body = h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "x"})
	if msg, _ := errorOf(t, body); resp.StatusCode != http.StatusNotFound || msg != "User not found" {
		t.Fatalf("unknown user = %d %v", resp.StatusCode, body)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	h := newHarness(t, false)

	resp, body := h.do(t, http.MethodGet, "/api/v1/fetch-all-users", "", nil)
	if msg, _ := errorOf(t, body); resp.StatusCode != http.StatusUnauthorized || msg != "Unauthorized: No token provided" {
		t.Fatalf("no token = %d %v", resp.StatusCode, body)
	}

	resp, body = h.do(t, http.MethodGet, "/api/v1/fetch-all-users", "not-a-jwt", nil)
	if msg, _ := errorOf(t, body); resp.StatusCode != http.StatusUnauthorized || msg != "Invalid token" {
		t.Fatalf("bad token = %d %v", resp.StatusCode, body)
	}
}

func TestFetchAllUsersEmptyIs404(t *testing.T) {
	h := newHarness(t, false)
	resp, body := h.do(t, http.MethodGet, "/api/v1/fetch-all-users", h.token, nil)
	if msg, code := errorOf(t, body); resp.StatusCode != http.StatusNotFound || msg != "No users found" || code != 404 {
		t.Fatalf("empty list = %d %v", resp.StatusCode, body)
	}
}

func TestUserLifecycle(t *testing.T) {
	h := newHarness(t, false)

	resp, body := h.do(t, http.MethodPost, "/api/v1/create-user-data", h.token, newUserBody("ann@example.com"))
	if resp.StatusCode != http.StatusOK || body["message"] != "User added successfully" {
		t.Fatalf("create = %d %v", resp.StatusCode, body)
	}
	id := body["data"].(map[string]interface{})["id"].(string)

	resp, body = h.do(t, http.MethodGet, "/api/v1/fetch-user-data/"+id, h.token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch = %d %v", resp.StatusCode, body)
	}
	user := body["data"].(map[string]interface{})
	if user["id"] != id || user["email"] != "ann@example.com" || user["numberOfRents"] != float64(0) {
		t.Fatalf("user = %v", user)
	}

	resp, body = h.do(t, http.MethodGet, "/api/v1/fetch-all-users", h.token, nil)
	if resp.StatusCode != http.StatusOK || len(body["data"].([]interface{})) != 1 {
		t.Fatalf("list = %d %v", resp.StatusCode, body)
	}

	resp, body = h.do(t, http.MethodPut, "/api/v1/update-user-data/"+id, h.token, map[string]interface{}{"name": "Bea"})
	if resp.StatusCode != http.StatusOK || body["data"].(map[string]interface{})["identitySync"] != services.IdentitySynced {
		t.Fatalf("update = %d %v", resp.StatusCode, body)
	}
	acc, _ := h.idp.GetAccount(context.Background(), id)
	if acc.DisplayName != "Bea" {
		t.Fatalf("identity not updated: %+v", acc)
	}

	resp, body = h.do(t, http.MethodDelete, "/api/v1/delete-user-data/"+id, h.token, nil)
	if resp.StatusCode != http.StatusOK || body["message"] != "User deleted successfully" {
		t.Fatalf("delete = %d %v", resp.StatusCode, body)
	}
	if _, err := h.mem.Get(context.Background(), database.UsersCollection, id); !errors.Is(err, database.ErrNotFound) {
		t.Fatal("profile survived delete")
	}

	docs, _ := h.mem.List(context.Background(), database.AuditLogsCollection)
	if len(docs) < 4 {
		t.Fatalf("expected audit entries, got %d", len(docs))
	}
}

func TestCreateMissingFields(t *testing.T) {
	h := newHarness(t, false)
	payload := newUserBody("ann@example.com")
	delete(payload, "numberOfRents")

	resp, body := h.do(t, http.MethodPost, "/api/v1/create-user-data", h.token, payload)
	if msg, _ := errorOf(t, body); resp.StatusCode != http.StatusBadRequest || msg != "Missing required fields" {
		t.Fatalf("create = %d %v", resp.StatusCode, body)
	}
}

func TestCreateDuplicateEmailFails(t *testing.T) {
	h := newHarness(t, false)
	resp, body := h.do(t, http.MethodPost, "/api/v1/create-user-data", h.token, newUserBody("admin@example.com"))
	if msg, _ := errorOf(t, body); resp.StatusCode != http.StatusInternalServerError || msg != "Failed to create user" {
		t.Fatalf("duplicate = %d %v", resp.StatusCode, body)
	}
}

func TestUpdateUnknownUserIs404(t *testing.T) {
	h := newHarness(t, false)
	resp, body := h.do(t, http.MethodPut, "/api/v1/update-user-data/invalidID123", h.token, map[string]interface{}{"name": "Updated Name"})
	msg, code := errorOf(t, body)
	if resp.StatusCode != http.StatusNotFound || msg != "User not found" || code != 404 {
		t.Fatalf("update = %d %v", resp.StatusCode, body)
	}
}

func TestDeleteUnknownUserIs404(t *testing.T) {
	h := newHarness(t, false)
	resp, body := h.do(t, http.MethodDelete, "/api/v1/delete-user-data/invalidID123", h.token, nil)
	if msg, _ := errorOf(t, body); resp.StatusCode != http.StatusNotFound || msg != "User not found" {
		t.Fatalf("delete = %d %v", resp.StatusCode, body)
	}
}

func TestSelfDeleteIsForbidden(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	_ = h.mem.Set(ctx, database.UsersCollection, h.uid, database.Document{"id": h.uid, "name": "Admin"})

	resp, body := h.do(t, http.MethodDelete, "/api/v1/delete-user-data/"+h.uid, h.token, nil)
	if msg, code := errorOf(t, body); resp.StatusCode != http.StatusForbidden || msg != "You cannot delete your own account" || code != 403 {
		t.Fatalf("self delete = %d %v", resp.StatusCode, body)
	}

	if _, err := h.mem.Get(ctx, database.UsersCollection, h.uid); err != nil {
		t.Fatalf("profile removed: %v", err)
	}
	if _, err := h.idp.GetAccount(ctx, h.uid); err != nil {
		t.Fatalf("account removed: %v", err)
	}
	docs, _ := h.mem.List(ctx, database.AuditLogsCollection)
	if len(docs) != 0 {
		t.Fatalf("self delete audited: %v", docs)
	}
}

func TestMissingIDIs400(t *testing.T) {
	h := newHarness(t, false)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/fetch-user-data"},
		{http.MethodPut, "/api/v1/update-user-data"},
		{http.MethodDelete, "/api/v1/delete-user-data"},
	} {
		resp, body := h.do(t, tc.method, tc.path, h.token, map[string]interface{}{"name": "x"})
		if msg, _ := errorOf(t, body); resp.StatusCode != http.StatusBadRequest || msg != "User ID is required" {
			t.Fatalf("%s %s = %d %v", tc.method, tc.path, resp.StatusCode, body)
		}
	}
}

func TestAuditFailureDoesNotChangeResponse(t *testing.T) {
	healthy := newHarness(t, false)
	broken := newHarness(t, true)

	respA, bodyA := healthy.do(t, http.MethodPost, "/api/v1/create-user-data", healthy.token, newUserBody("ann@example.com"))
	respB, bodyB := broken.do(t, http.MethodPost, "/api/v1/create-user-data", broken.token, newUserBody("ann@example.com"))

	if respA.StatusCode != respB.StatusCode || bodyA["message"] != bodyB["message"] || bodyA["success"] != bodyB["success"] {
		t.Fatalf("healthy %d %v vs broken %d %v", respA.StatusCode, bodyA, respB.StatusCode, bodyB)
	}

	id := bodyB["data"].(map[string]interface{})["id"].(string)
	resp, _ := broken.do(t, http.MethodDelete, "/api/v1/delete-user-data/"+id, broken.token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete with broken audit = %d", resp.StatusCode)
	}
}

func TestGraphQLUsersQuery(t *testing.T) {
	h := newHarness(t, false)
	_, body := h.do(t, http.MethodPost, "/api/v1/create-user-data", h.token, newUserBody("ann@example.com"))
	id := body["data"].(map[string]interface{})["id"].(string)

	resp, body := h.do(t, http.MethodPost, "/api/v1/graphql", h.token, map[string]interface{}{
		"query":     `query One($id: String!) { user(id: $id) { id email } }`,
		"variables": map[string]interface{}{"id": id},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("graphql = %d %v", resp.StatusCode, body)
	}
	user := body["data"].(map[string]interface{})["user"].(map[string]interface{})
	if user["id"] != id || user["email"] != "ann@example.com" {
		t.Fatalf("user = %v", user)
	}

	resp, _ = h.do(t, http.MethodPost, "/api/v1/graphql", "", map[string]interface{}{"query": "{ users { id } }"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous graphql = %d", resp.StatusCode)
	}
}

func TestAuditEntriesKeepTheirUserID(t *testing.T) {
	h := newHarness(t, false)
	_, body := h.do(t, http.MethodPost, "/api/v1/create-user-data", h.token, newUserBody("ann@example.com"))
	id := body["data"].(map[string]interface{})["id"].(string)

	h.do(t, http.MethodGet, "/api/v1/fetch-user-data/"+id, h.token, nil)

	// Same-length paths land on the same request buffer offsets.
	other := strings.Repeat("Z", len(id))
	for i := 0; i < 50; i++ {
		h.do(t, http.MethodGet, "/api/v1/fetch-user-data/"+other, h.token, nil)
		h.do(t, http.MethodGet, "/api/v1/fetch-all-users", h.token, nil)
	}

	docs, _ := h.mem.List(context.Background(), database.AuditLogsCollection)
	found := false
	for _, doc := range docs {
		if doc["action"] != "FETCH_USER_DATA" {
			continue
		}
		found = true
		if doc["userId"] != id {
			t.Fatalf("FETCH_USER_DATA userId = %q, want %q", doc["userId"], id)
		}
	}
	if !found {
		t.Fatal("no FETCH_USER_DATA entry recorded")
	}
}

// stalledWriter behaves like a writer whose broker never answers.
type stalledWriter struct{}

func (stalledWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledWriter) Close() error { return nil }

func TestStalledAuditStreamDoesNotHoldRequests(t *testing.T) {
	h := newHarnessWithPublisher(t, false, &auditevents.Producer{Writer: stalledWriter{}})

	_, body := h.do(t, http.MethodPost, "/api/v1/create-user-data", h.token, newUserBody("ann@example.com"))
	id := body["data"].(map[string]interface{})["id"].(string)

	start := time.Now()
	resp, _ := h.do(t, http.MethodGet, "/api/v1/fetch-user-data/"+id, h.token, nil)
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if elapsed > 2*services.DefaultPublishTimeout+time.Second {
		t.Fatalf("request took %s with a stalled stream", elapsed)
	}

	docs, _ := h.mem.List(context.Background(), database.AuditLogsCollection)
	if len(docs) < 2 {
		t.Fatalf("store entries missing: %d", len(docs))
	}
}
