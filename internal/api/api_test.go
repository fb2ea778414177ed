package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/handoff"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/moderation"
	"github.com/erazemk/najdeno/internal/service"
	"github.com/erazemk/najdeno/internal/store"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	tokens map[string]string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	return setupTestServerAt(t, nil)
}

// setupTestServerAt builds a server whose service reads time from now. A
// nil now uses the wall clock.
func setupTestServerAt(t *testing.T, now func() time.Time) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)

	gate, err := moderation.NewGate(moderation.DefaultPolicy(), nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	svc, err := service.New(service.Options{
		DB:    database,
		Gate:  gate,
		Codec: handoff.NewCodec("test-handoff-secret"),
		Now:   now,
	})
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}

	server := httptest.NewServer(NewRouter(database, testJWTSecret, svc))
	t.Cleanup(server.Close)
	t.Cleanup(svc.Wait)

	env := &testEnv{server: server, tokens: make(map[string]string)}
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	for _, u := range []struct{ name, role string }{
		{"admin", model.RoleAdmin},
		{"finder", model.RoleUser},
		{"claimant", model.RoleUser},
		{"stranger", model.RoleUser},
	} {
		user, err := store.CreateUser(ctx, database, u.name, "", string(hash), u.role)
		if err != nil {
			t.Fatalf("CreateUser(%s): %v", u.name, err)
		}
		token, err := auth.GenerateToken(testJWTSecret, user)
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		env.tokens[u.name] = token
	}
	return env
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends a JSON request as user, checks the status and decodes the body
// into out if it is not nil.
func (e *testEnv) do(t *testing.T, user, method, path string, body any, want int, out any) {
	t.Helper()
	req, err := authRequest(method, e.server.URL+path, e.tokens[user], body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var msg map[string]any
		json.NewDecoder(resp.Body).Decode(&msg)
		t.Fatalf("%s %s as %s: expected %d, got %d (%v)", method, path, user, want, resp.StatusCode, msg)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func (e *testEnv) postItem(t *testing.T, user string, fields map[string]string, withPhoto bool) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if withPhoto {
		fw, _ := mw.CreateFormFile("photo", "photo.png")
		png.Encode(fw, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	}
	mw.Close()

	req, _ := http.NewRequest("POST", e.server.URL+"/api/items", &buf)
	req.Header.Set("Authorization", "Bearer "+e.tokens[user])
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("posting item: %v", err)
	}
	return resp
}

func (e *testEnv) publish(t *testing.T, question string) model.Item {
	t.Helper()
	resp := e.postItem(t, "finder", map[string]string{
		"name":              "Blue umbrella",
		"category":          "Others",
		"location":          "Cafeteria",
		"date_found":        "2026-10-01",
		"security_question": question,
	}, true)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating item, got %d", resp.StatusCode)
	}
	var item model.Item
	json.NewDecoder(resp.Body).Decode(&item)
	return item
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "finder", "password": "wrong"})
	resp, _ := http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{"username": "finder", "password": "password"})
	resp, _ = http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for good password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRegisterAndLogout(t *testing.T) {
	env := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "nova", "display_name": "Nova", "password": "long-enough"})
	resp, err := http.Post(env.server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	var reg loginResponse
	json.NewDecoder(resp.Body).Decode(&reg)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || reg.Token == "" || reg.User.Role != model.RoleUser {
		t.Fatalf("unexpected register response %d %+v", resp.StatusCode, reg.User)
	}

	resp, _ = http.Post(env.server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate username, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	env.tokens["nova"] = reg.Token
	env.do(t, "nova", "GET", "/api/items", nil, http.StatusOK, nil)
	env.do(t, "nova", "POST", "/api/auth/logout", nil, http.StatusOK, nil)
	env.do(t, "nova", "GET", "/api/items", nil, http.StatusUnauthorized, nil)
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	resp, _ := http.Get(env.server.URL + "/api/items")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(env.server.URL + "/api/stats")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected public stats, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)

	env.do(t, "finder", "GET", "/api/users", nil, http.StatusForbidden, nil)
	env.do(t, "finder", "GET", "/api/reports", nil, http.StatusForbidden, nil)

	var users []model.User
	env.do(t, "admin", "GET", "/api/users", nil, http.StatusOK, &users)
	if len(users) != 4 {
		t.Errorf("expected 4 users, got %d", len(users))
	}
}

func TestPublishRequiresPhoto(t *testing.T) {
	env := setupTestServer(t)

	resp := env.postItem(t, "finder", map[string]string{
		"name": "Wallet", "category": "Others", "location": "Gym",
	}, false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 without photo, got %d", resp.StatusCode)
	}

	resp = env.postItem(t, "finder", map[string]string{
		"name": "Wallet", "category": "Others", "location": "Gym", "date_found": "yesterday",
	}, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", resp.StatusCode)
	}
}

func TestClaimAndHandoffFlow(t *testing.T) {
	env := setupTestServer(t)
	item := env.publish(t, "")
	base := "/api/items/" + item.ID

	claim := map[string]string{"description": "blue with a wooden handle"}
	env.do(t, "finder", "POST", base+"/claim", claim, http.StatusForbidden, nil)

	var claimed model.Item
	env.do(t, "claimant", "POST", base+"/claim", claim, http.StatusOK, &claimed)
	if claimed.Status != model.StatusClaimed {
		t.Fatalf("expected claimed, got %s", claimed.Status)
	}
	env.do(t, "stranger", "POST", base+"/claim", claim, http.StatusConflict, nil)

	var unread map[string]int
	env.do(t, "finder", "GET", "/api/notifications/unread", nil, http.StatusOK, &unread)
	if unread["unread"] != 1 {
		t.Errorf("expected one unread notification for the finder, got %v", unread)
	}

	env.do(t, "claimant", "POST", base+"/messages", map[string]string{"text": "Hi, it's mine"}, http.StatusCreated, nil)
	env.do(t, "stranger", "GET", base+"/messages", nil, http.StatusForbidden, nil)

	env.do(t, "claimant", "POST", base+"/handoff", nil, http.StatusConflict, nil)
	env.do(t, "claimant", "POST", base+"/verify", nil, http.StatusForbidden, nil)
	env.do(t, "finder", "POST", base+"/verify", nil, http.StatusOK, nil)

	var tok handoffResponse
	env.do(t, "claimant", "POST", base+"/handoff", nil, http.StatusCreated, &tok)
	if tok.Payload == "" || tok.SecondsLeft <= 0 || tok.SecondsLeft > 600 {
		t.Fatalf("unexpected handoff response %+v", tok)
	}

	var msg map[string]string
	env.do(t, "finder", "POST", "/api/handoff/redeem", map[string]string{"payload": "hello"}, http.StatusUnprocessableEntity, &msg)
	if msg["error"] != "Unrecognized Format" {
		t.Errorf("expected Unrecognized Format, got %q", msg["error"])
	}

	var ret service.Return
	env.do(t, "finder", "POST", "/api/handoff/redeem", map[string]string{"payload": tok.Payload}, http.StatusOK, &ret)
	if ret.Item.Status != model.StatusReturned || !ret.Celebrate {
		t.Errorf("unexpected redeem result %+v", ret)
	}

	var history []model.Transition
	env.do(t, "stranger", "GET", base+"/history", nil, http.StatusOK, &history)
	if len(history) != 3 {
		t.Errorf("expected 3 transitions, got %d", len(history))
	}
}

func TestHandoffCountdownUsesServiceClock(t *testing.T) {
	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env := setupTestServerAt(t, func() time.Time { return issuedAt })
	item := env.publish(t, "")
	base := "/api/items/" + item.ID

	env.do(t, "claimant", "POST", base+"/claim", map[string]string{"description": "blue"}, http.StatusOK, nil)
	env.do(t, "finder", "POST", base+"/verify", nil, http.StatusOK, nil)

	var tok handoffResponse
	env.do(t, "claimant", "POST", base+"/handoff", nil, http.StatusCreated, &tok)
	if tok.SecondsLeft != int(handoff.Validity/time.Second) {
		t.Errorf("expected a full countdown of %d seconds, got %d", int(handoff.Validity/time.Second), tok.SecondsLeft)
	}
	if !tok.ExpiresAt.Equal(issuedAt.Add(handoff.Validity)) {
		t.Errorf("expected expiry %v, got %v", issuedAt.Add(handoff.Validity), tok.ExpiresAt)
	}
}

func TestHistoryHiddenFromOutsiders(t *testing.T) {
	env := setupTestServer(t)
	item := env.publish(t, "")
	base := "/api/items/" + item.ID

	env.do(t, "claimant", "POST", base+"/claim", map[string]string{"description": "blue"}, http.StatusOK, nil)
	for _, reporter := range []string{"stranger", "admin"} {
		env.do(t, reporter, "POST", base+"/report", map[string]string{"reason": "Other"}, http.StatusCreated, nil)
	}

	env.do(t, "stranger", "GET", base+"/history", nil, http.StatusNotFound, nil)
	var history []model.Transition
	env.do(t, "claimant", "GET", base+"/history", nil, http.StatusOK, &history)
	if len(history) != 1 {
		t.Errorf("expected the claimant to see 1 transition, got %d", len(history))
	}
}

func TestSecurityQuestionReject(t *testing.T) {
	env := setupTestServer(t)
	item := env.publish(t, "What is written on the handle?")
	base := "/api/items/" + item.ID

	env.do(t, "claimant", "POST", base+"/claim", map[string]string{"description": "blue"}, http.StatusBadRequest, nil)

	var pending model.Item
	env.do(t, "claimant", "POST", base+"/claim", map[string]string{"description": "blue", "answer": "my name"}, http.StatusOK, &pending)
	if pending.Status != model.StatusPendingApproval || pending.ClaimantAnswer != "my name" {
		t.Fatalf("unexpected pending item %+v", pending)
	}

	var seen model.Item
	env.do(t, "stranger", "GET", base, nil, http.StatusOK, &seen)
	if seen.ClaimantAnswer != "" {
		t.Error("stranger can read the claimant's answer")
	}

	env.do(t, "claimant", "POST", base+"/reject", nil, http.StatusForbidden, nil)
	var reset model.Item
	env.do(t, "finder", "POST", base+"/reject", nil, http.StatusOK, &reset)
	if reset.Status != model.StatusFound || reset.ClaimantID != "" || reset.ClaimantAnswer != "" {
		t.Errorf("reject did not reset the claim: %+v", reset)
	}
}

func TestReportAndHide(t *testing.T) {
	env := setupTestServer(t)
	item := env.publish(t, "")
	path := "/api/items/" + item.ID + "/report"
	reason := map[string]string{"reason": "Spam or Scam"}

	env.do(t, "finder", "POST", path, reason, http.StatusForbidden, nil)
	env.do(t, "claimant", "POST", path, reason, http.StatusCreated, nil)
	env.do(t, "claimant", "POST", path, reason, http.StatusConflict, nil)

	var res map[string]any
	env.do(t, "stranger", "POST", path, reason, http.StatusCreated, &res)
	if res["hidden"] != true {
		t.Errorf("expected item hidden after two reports, got %v", res)
	}

	var items []model.Item
	env.do(t, "claimant", "GET", "/api/items", nil, http.StatusOK, &items)
	if len(items) != 0 {
		t.Errorf("hidden item still listed")
	}
	env.do(t, "stranger", "GET", "/api/items/"+item.ID, nil, http.StatusNotFound, nil)

	var reports []model.Report
	env.do(t, "admin", "GET", "/api/reports?item_id="+item.ID, nil, http.StatusOK, &reports)
	if len(reports) != 2 {
		t.Errorf("expected 2 reports, got %d", len(reports))
	}
}

func TestDeleteItemOwnerOnly(t *testing.T) {
	env := setupTestServer(t)
	item := env.publish(t, "")

	env.do(t, "stranger", "DELETE", "/api/items/"+item.ID, nil, http.StatusForbidden, nil)
	env.do(t, "finder", "DELETE", "/api/items/"+item.ID, nil, http.StatusOK, nil)
	env.do(t, "finder", "GET", "/api/items/"+item.ID, nil, http.StatusNotFound, nil)
}

func TestAlertsEndpoints(t *testing.T) {
	env := setupTestServer(t)

	var alert model.Alert
	env.do(t, "claimant", "POST", "/api/alerts", map[string]string{"keyword": "Umbrella"}, http.StatusCreated, &alert)
	if alert.Keyword != "umbrella" || alert.Category != model.CategoryAll {
		t.Errorf("unexpected alert %+v", alert)
	}
	env.do(t, "claimant", "POST", "/api/alerts", map[string]string{"keyword": ""}, http.StatusBadRequest, nil)

	env.publish(t, "")
	env.do(t, "stranger", "DELETE", "/api/alerts/"+alert.ID, nil, http.StatusNotFound, nil)
	env.do(t, "claimant", "DELETE", "/api/alerts/"+alert.ID, nil, http.StatusOK, nil)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&moderation.Rejection{Field: "photo", Reason: "photo proof is mandatory"}, http.StatusUnprocessableEntity},
		{service.ErrNoLongerAvailable, http.StatusConflict},
		{handoff.ErrExpired, http.StatusGone},
		{handoff.ErrInvalid, http.StatusUnprocessableEntity},
		{service.ErrNotFound, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		serviceError(rec, httptest.NewRequest("GET", "/api/items", nil), tt.err)
		if rec.Code != tt.want {
			t.Errorf("serviceError(%v) = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}
