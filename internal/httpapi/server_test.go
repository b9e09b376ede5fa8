package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/antoniostano/contentdesk/internal/digest"
	"github.com/antoniostano/contentdesk/internal/observability"
	"github.com/antoniostano/contentdesk/internal/tasks"
	"github.com/antoniostano/contentdesk/internal/telegram"
)

type testEnv struct {
	ts    *httptest.Server
	store *tasks.MemoryStore
	mock  *telegram.Mock
}

func newTestEnv(t *testing.T, prefix string) *testEnv {
	t.Helper()
	store := tasks.NewMemoryStore()
	mock := telegram.NewMock()
	// promauto registers globally, so every test needs its own namespace.
	metrics := observability.NewMetrics(prefix + time.Now().Format("150405") + "_" + time.Now().Format("000000000"))
	svc := tasks.NewService(store)
	gen := digest.NewGenerator(store, mock, 99, metrics)
	srv := New(svc, gen, mock, metrics)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, store: store, mock: mock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else if raw, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(raw))
	} else {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer res.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(res.Body).Decode(&decoded)
	return res, decoded
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "test_api_health_")
	res, body := env.do(t, http.MethodGet, "/api/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if body["ok"] != true {
		t.Fatalf("body = %+v, want ok:true", body)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t, "test_api_create_val_")
	res, body := env.do(t, http.MethodPost, "/api/task", map[string]any{"due": "2026-09-01"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	if body["error"] != "title_required" {
		t.Fatalf("body = %+v, want error title_required", body)
	}

	res, body = env.do(t, http.MethodPost, "/api/task", map[string]any{"title": "x", "due": "not-a-date"})
	if res.StatusCode != http.StatusBadRequest || body["error"] != "invalid_due" {
		t.Fatalf("status=%d body=%+v, want 400 invalid_due", res.StatusCode, body)
	}
}

func TestCreateAndGetTask(t *testing.T) {
	env := newTestEnv(t, "test_api_create_get_")
	env.store.AddPerson(tasks.Person{Name: "Alice", Handle: "alice"})

	res, body := env.do(t, http.MethodPost, "/api/task", map[string]any{
		"title":             "write newsletter",
		"due":               "2026-09-01",
		"assignee_username": "@alice",
		"refs":              []map[string]any{{"url": "https://example.com/brief"}},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if body["ok"] != true {
		t.Fatalf("create body = %+v, want ok:true", body)
	}
	id := int64(body["id"].(float64))

	res, view := env.do(t, http.MethodGet, fmt.Sprintf("/api/task/%d", id), nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if view["title"] != "write newsletter" || view["assignee_username"] != "alice" || view["due"] != "2026-09-01" {
		t.Fatalf("view = %+v, want created fields", view)
	}
	refs, ok := view["refs"].([]any)
	if !ok || len(refs) != 1 {
		t.Fatalf("view refs = %+v, want 1 reference", view["refs"])
	}

	res, body = env.do(t, http.MethodGet, "/api/task/999", nil)
	if res.StatusCode != http.StatusNotFound || body["error"] != "not_found" {
		t.Fatalf("get unknown: status=%d body=%+v, want 404 not_found", res.StatusCode, body)
	}
}

func TestPatchTask(t *testing.T) {
	env := newTestEnv(t, "test_api_patch_")
	env.store.AddPerson(tasks.Person{Name: "Alice", Handle: "alice"})

	_, created := env.do(t, http.MethodPost, "/api/task", map[string]any{
		"title":             "cut teaser",
		"assignee_username": "alice",
	})
	id := int64(created["id"].(float64))

	res, body := env.do(t, http.MethodPatch, fmt.Sprintf("/api/task/%d", id), map[string]any{"status": "in_progress"})
	if res.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("patch status: status=%d body=%+v, want ok", res.StatusCode, body)
	}

	// assignee_username present with null clears the assignee.
	res, _ = env.do(t, http.MethodPatch, fmt.Sprintf("/api/task/%d", id), `{"assignee_username":null}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch null assignee status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	_, view := env.do(t, http.MethodGet, fmt.Sprintf("/api/task/%d", id), nil)
	if view["status"] != "in_progress" || view["assignee_username"] != "" {
		t.Fatalf("view = %+v, want in_progress and cleared assignee", view)
	}

	res, body = env.do(t, http.MethodPatch, "/api/task/999", map[string]any{"status": "done"})
	if res.StatusCode != http.StatusNotFound || body["error"] != "not_found" {
		t.Fatalf("patch unknown: status=%d body=%+v, want 404 not_found", res.StatusCode, body)
	}

	res, body = env.do(t, http.MethodPatch, fmt.Sprintf("/api/task/%d", id), map[string]any{"status": "paused"})
	if res.StatusCode != http.StatusBadRequest || body["error"] != "invalid_status" {
		t.Fatalf("patch bad status: status=%d body=%+v, want 400 invalid_status", res.StatusCode, body)
	}
}

func TestRefAndPrereqEndpoints(t *testing.T) {
	env := newTestEnv(t, "test_api_edges_")

	_, first := env.do(t, http.MethodPost, "/api/task", map[string]any{"title": "script"})
	firstID := int64(first["id"].(float64))
	_, second := env.do(t, http.MethodPost, "/api/task", map[string]any{"title": "shoot"})
	secondID := int64(second["id"].(float64))

	res, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/task/%d/ref", firstID), map[string]any{"caption": "no url"})
	if res.StatusCode != http.StatusBadRequest || body["error"] != "url_required" {
		t.Fatalf("ref without url: status=%d body=%+v, want 400 url_required", res.StatusCode, body)
	}
	res, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/task/%d/ref", firstID), map[string]any{"url": "https://example.com"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ref status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	res, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/task/%d/prereq", secondID), map[string]any{})
	if res.StatusCode != http.StatusBadRequest || body["error"] != "prereq_required" {
		t.Fatalf("prereq missing: status=%d body=%+v, want 400 prereq_required", res.StatusCode, body)
	}
	res, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/task/%d/prereq", secondID), map[string]any{"requires_task_id": secondID})
	if res.StatusCode != http.StatusBadRequest || body["error"] != "self_dependency" {
		t.Fatalf("self prereq: status=%d body=%+v, want 400 self_dependency", res.StatusCode, body)
	}
	res, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/task/%d/prereq", secondID), map[string]any{"requires_task_id": firstID})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("prereq status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	_, view := env.do(t, http.MethodGet, fmt.Sprintf("/api/task/%d", secondID), nil)
	prereqs, ok := view["prereqs"].([]any)
	if !ok || len(prereqs) != 1 {
		t.Fatalf("view prereqs = %+v, want 1 edge", view["prereqs"])
	}
}

func TestListTasksEndpoint(t *testing.T) {
	env := newTestEnv(t, "test_api_list_")
	env.store.AddPerson(tasks.Person{Name: "Alice", Handle: "alice"})

	env.do(t, http.MethodPost, "/api/task", map[string]any{"title": "a", "assignee_username": "alice", "due": "2026-09-02"})
	_, b := env.do(t, http.MethodPost, "/api/task", map[string]any{"title": "b", "due": "2026-09-01"})
	bID := int64(b["id"].(float64))
	env.do(t, http.MethodPatch, fmt.Sprintf("/api/task/%d", bID), map[string]any{"status": "done"})

	res, body := env.do(t, http.MethodGet, "/api/tasks?status=todo&assignee=@alice", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	listed, ok := body["tasks"].([]any)
	if !ok || len(listed) != 1 {
		t.Fatalf("tasks = %+v, want exactly alice's todo task", body["tasks"])
	}
	sum := listed[0].(map[string]any)
	if sum["title"] != "a" || sum["assignee_username"] != "alice" {
		t.Fatalf("summary = %+v, want task a for alice", sum)
	}

	res, body = env.do(t, http.MethodGet, "/api/tasks?status=bogus", nil)
	if res.StatusCode != http.StatusBadRequest || body["error"] != "invalid_status" {
		t.Fatalf("list bogus status: status=%d body=%+v, want 400 invalid_status", res.StatusCode, body)
	}
}

func TestWebhookCommands(t *testing.T) {
	env := newTestEnv(t, "test_api_webhook_")

	update := func(text string) map[string]any {
		return map[string]any{"message": map[string]any{"chat": map[string]any{"id": 7}, "text": text}}
	}

	res, _ := env.do(t, http.MethodPost, "/api/webhook", update("/newcontent Autumn campaign"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("webhook status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	items := env.store.ContentItems()
	if len(items) != 1 || items[0].Title != "Autumn campaign" {
		t.Fatalf("content items = %+v, want the campaign item", items)
	}

	res, _ = env.do(t, http.MethodPost, "/api/webhook", update("/id"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("webhook /id status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	res, _ = env.do(t, http.MethodPost, "/api/webhook", update("hello there"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("webhook other status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	// Updates without a message are acknowledged and dropped.
	res, _ = env.do(t, http.MethodPost, "/api/webhook", map[string]any{"edited_message": map[string]any{}})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("webhook no-message status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	sent := env.mock.Sent()
	if len(sent) != 3 {
		t.Fatalf("len(sent) = %d, want 3 replies", len(sent))
	}
	if sent[0].ChatID != 7 || !strings.Contains(sent[0].Text, "Autumn campaign") {
		t.Fatalf("newcontent reply = %+v, want confirmation with title", sent[0])
	}
	if sent[1].Text != "Chat ID: 7" {
		t.Fatalf("id reply = %q, want %q", sent[1].Text, "Chat ID: 7")
	}
	if !strings.Contains(sent[2].Text, "/newcontent") {
		t.Fatalf("help reply = %q, want mention of /newcontent", sent[2].Text)
	}
}

func TestDigestEndpoint(t *testing.T) {
	env := newTestEnv(t, "test_api_digest_")
	now := time.Now()
	if _, err := env.store.CreateTask(context.Background(), tasks.Task{Title: "due now", Due: &now, Status: tasks.StatusTodo}, nil, nil); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	res, body := env.do(t, http.MethodGet, "/api/digest", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("digest status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if body["sent"] != true || body["count"] != float64(1) {
		t.Fatalf("digest body = %+v, want sent:true count:1", body)
	}
	if len(env.mock.Sent()) != 1 {
		t.Fatalf("sent = %+v, want one dispatched digest", env.mock.Sent())
	}
}
