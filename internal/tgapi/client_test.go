package tgapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientCallDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot123:abc/sendMessage" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("123:abc", srv.URL)
	resp, err := client.Call(context.Background(), MethodSendMessage, SendMessageParams(1, "hi"))
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if !resp.OK {
		t.Fatalf("expected ok response")
	}
	if err := resp.Err(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestClientCallSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: message not found"}`))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("123:abc", srv.URL)
	resp, err := client.Call(context.Background(), MethodDeleteMessage, DeleteMessageParams(1, 2))
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if err := resp.Err(); err == nil {
		t.Fatal("expected a ResponseError")
	}
}

func TestClientCallUnescapesUnicodeInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":{"title":"caf` + "\\u00e9" + `"}}`))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("123:abc", srv.URL)
	resp, err := client.Call(context.Background(), MethodGetChat, GetChatParams(1))
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if string(resp.Result) != `{"title":"café"}` {
		t.Fatalf("got %q", string(resp.Result))
	}
}

func TestChatMembersDecodesAdministrators(t *testing.T) {
	resp := &Response{Result: []byte(`[{"status":"creator","user":{"id":1}},{"status":"administrator","user":{"id":2}}]`)}
	members, err := resp.ChatMembers()
	if err != nil {
		t.Fatalf("ChatMembers error: %v", err)
	}
	if len(members) != 2 || members[0].User.ID != 1 {
		t.Fatalf("got %+v", members)
	}
}
