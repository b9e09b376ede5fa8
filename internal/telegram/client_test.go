package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendMessage(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	client := NewClient("123:abc", ts.URL)
	if err := client.SendMessage(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Fatalf("path = %q, want %q", gotPath, "/bot123:abc/sendMessage")
	}
	if gotBody.ChatID != 42 || gotBody.Text != "hello" {
		t.Fatalf("body = %+v, want chat 42 text hello", gotBody)
	}
}

func TestClientSendMessageNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false,"description":"bad token"}`, http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := NewClient("bad", ts.URL)
	if err := client.SendMessage(context.Background(), 42, "hello"); err == nil {
		t.Fatalf("SendMessage() error = nil, want failure on 401")
	}
}

func TestMockRecordsMessages(t *testing.T) {
	mock := NewMock()
	if err := mock.SendMessage(context.Background(), 1, "first"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if err := mock.SendMessage(context.Background(), 2, "second"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 2 || sent[0].Text != "first" || sent[1].ChatID != 2 {
		t.Fatalf("Sent() = %+v, want both messages in order", sent)
	}
}
