// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

func TestFetchMessages(t *testing.T) {
	t.Run("direct pull with cursor", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/get_messages/9" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			query := request.URL.Query()
			if query.Get("since") != "1000" || query.Get("last_id") != "41" || query.Get("limit") != "50" {
				t.Errorf("unexpected query: %s", request.URL.RawQuery)
			}
			writer.Write([]byte(`[{"id": 42, "sender_id": 9, "receiver_id": 7, "content": "hi", "timestamp_ms": 1200}]`))
		})

		messages, err := client.FetchMessages(context.Background(), chat.FetchRequest{
			Conversation: chat.DirectRef("9"),
			Cursor:       chat.Cursor{LastMessageID: "41", LastTimestampMs: 1000},
			Limit:        50,
		})
		if err != nil {
			t.Fatalf("FetchMessages failed: %v", err)
		}
		if len(messages) != 1 || messages[0].ID != chat.ServerID("42") {
			t.Fatalf("unexpected messages: %+v", messages)
		}
		if messages[0].Conversation != chat.DirectRef("9") {
			t.Errorf("conversation = %v", messages[0].Conversation)
		}
	})

	t.Run("initial group pull", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/get_group_messages/4" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			query := request.URL.Query()
			if query.Get("last_id") != "0" {
				t.Errorf("last_id = %q, want 0", query.Get("last_id"))
			}
			if query.Has("since") || query.Has("limit") {
				t.Errorf("unexpected query: %s", request.URL.RawQuery)
			}
			writer.Write([]byte(`[]`))
		})

		messages, err := client.FetchMessages(context.Background(), chat.FetchRequest{Conversation: chat.GroupRef("4")})
		if err != nil {
			t.Fatalf("FetchMessages failed: %v", err)
		}
		if len(messages) != 0 {
			t.Errorf("expected no messages, got %d", len(messages))
		}
	})

	t.Run("malformed batch", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
			writer.Write([]byte(`[{"id": 1}]`))
		})
		_, err := client.FetchMessages(context.Background(), chat.FetchRequest{Conversation: chat.GroupRef("4")})
		if !errors.Is(err, chat.ErrMalformedPayload) {
			t.Fatalf("error = %v, want ErrMalformedPayload", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(t, writer, http.StatusForbidden, map[string]any{"ok": false, "error": "forbidden"})
		})
		_, err := client.FetchMessages(context.Background(), chat.FetchRequest{Conversation: chat.GroupRef("4")})
		if !errors.Is(err, chat.ErrNetworkFailure) || !IsAPIError(err, ErrCodeForbidden) {
			t.Fatalf("error = %v, want forbidden network failure", err)
		}
	})
}

func TestSendMessage(t *testing.T) {
	tests := []struct {
		name         string
		conversation chat.ConversationRef
		path         string
		field        string
	}{
		{"direct", chat.DirectRef("9"), "/send_message", "receiver_id"},
		{"group", chat.GroupRef("4"), "/send_group_message", "group_id"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
				if request.Method != http.MethodPost || request.URL.Path != test.path {
					t.Errorf("unexpected request: %s %s", request.Method, request.URL.Path)
				}
				if err := request.ParseForm(); err != nil {
					t.Fatalf("parsing form: %v", err)
				}
				if request.PostForm.Get(test.field) != test.conversation.ID {
					t.Errorf("%s = %q", test.field, request.PostForm.Get(test.field))
				}
				if request.PostForm.Get("content") != "hello" {
					t.Errorf("content = %q", request.PostForm.Get("content"))
				}
				writeJSON(t, writer, http.StatusOK, map[string]any{
					"status": "ok",
					"message": map[string]any{
						"id": 55, "sender_id": 7, "receiver_id": nil, "content": "hello",
						"message_type": "text", "timestamp_iso": "2026-03-01T12:00:00+00:00",
						"timestamp_ms": 1772366400000,
					},
				})
			})

			msg, err := client.SendMessage(context.Background(), test.conversation, chat.Draft{Content: "hello"})
			if err != nil {
				t.Fatalf("SendMessage failed: %v", err)
			}
			if msg.ID != chat.ServerID("55") || msg.Conversation != test.conversation || msg.SenderID != "7" {
				t.Errorf("unexpected message: %+v", msg)
			}
		})
	}

	t.Run("rejected", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(t, writer, http.StatusBadRequest, map[string]any{"ok": false, "error": "empty"})
		})
		_, err := client.SendMessage(context.Background(), chat.GroupRef("4"), chat.Draft{Content: "x"})
		if !IsAPIError(err, ErrCodeEmpty) {
			t.Fatalf("error = %v, want empty APIError", err)
		}
	})

	t.Run("response without message", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
			writer.Write([]byte(`{"status": "ok"}`))
		})
		_, err := client.SendMessage(context.Background(), chat.GroupRef("4"), chat.Draft{Content: "x"})
		if !errors.Is(err, chat.ErrMalformedPayload) {
			t.Fatalf("error = %v, want ErrMalformedPayload", err)
		}
	})
}

func TestMessageActions(t *testing.T) {
	type call struct {
		path string
		body map[string]any
	}
	var calls []call
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		var body map[string]any
		if request.ContentLength > 0 {
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Errorf("decoding body: %v", err)
			}
		}
		calls = append(calls, call{path: request.URL.Path, body: body})
		writer.Write([]byte(`{"ok": true}`))
	})
	ctx := context.Background()
	direct := chat.DirectRef("9")
	group := chat.GroupRef("4")
	id := chat.ServerID("31")

	if err := client.EditMessage(ctx, group, id, "fixed"); err != nil {
		t.Fatalf("EditMessage failed: %v", err)
	}
	if err := client.DeleteForEveryone(ctx, direct, id); err != nil {
		t.Fatalf("DeleteForEveryone failed: %v", err)
	}
	if err := client.DeleteForMe(ctx, group, id); err != nil {
		t.Fatalf("DeleteForMe failed: %v", err)
	}
	if err := client.StarMessage(ctx, direct, id, true); err != nil {
		t.Fatalf("StarMessage failed: %v", err)
	}

	want := []string{
		"/api/group_messages/31/edit",
		"/api/messages/31/delete_for_all",
		"/api/group_messages/31/delete_for_me",
		"/api/messages/31/star",
	}
	if len(calls) != len(want) {
		t.Fatalf("got %d calls, want %d", len(calls), len(want))
	}
	for index, path := range want {
		if calls[index].path != path {
			t.Errorf("call %d path = %q, want %q", index, calls[index].path, path)
		}
	}
	if calls[0].body["content"] != "fixed" {
		t.Errorf("edit body = %v", calls[0].body)
	}
	if calls[3].body["enable"] != true {
		t.Errorf("star body = %v", calls[3].body)
	}

	t.Run("group delete for everyone", func(t *testing.T) {
		if err := client.DeleteForEveryone(ctx, group, id); err == nil {
			t.Fatal("expected error for group delete for everyone")
		}
	})

	t.Run("local identity", func(t *testing.T) {
		if err := client.DeleteForMe(ctx, group, chat.LocalID(1)); err == nil {
			t.Fatal("expected error for unconfirmed message")
		}
	})
}

func TestActionRejectedWithOK(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte(`{"ok": false, "error": "forbidden"}`))
	})
	err := client.EditMessage(context.Background(), chat.DirectRef("9"), chat.ServerID("1"), "x")
	if !IsAPIError(err, ErrCodeForbidden) {
		t.Fatalf("error = %v, want forbidden APIError", err)
	}
}

func TestUnreadCounts(t *testing.T) {
	t.Run("counts", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/api/unread_counts" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			writer.Write([]byte(`{
				"ok": true,
				"users": {"9": 3, "12": 0},
				"groups": {"4": 7},
				"invites": 2,
				"last_ts": {"users": {"9": 1772366400000, "12": null}, "groups": {"4": "2026-03-01T12:00:00Z"}}
			}`))
		})

		counts, err := client.UnreadCounts(context.Background())
		if err != nil {
			t.Fatalf("UnreadCounts failed: %v", err)
		}
		if counts.PerUser["9"] != 3 || counts.PerGroup["4"] != 7 || counts.Invites != 2 {
			t.Errorf("unexpected counts: %+v", counts)
		}
		if _, ok := counts.PerUser["12"]; !ok {
			t.Error("zero counts should still be reported")
		}
		if counts.LastActivityPerUser["9"] != 1772366400000 {
			t.Errorf("user last activity = %d", counts.LastActivityPerUser["9"])
		}
		if _, ok := counts.LastActivityPerUser["12"]; ok {
			t.Error("null last activity should be omitted")
		}
		if counts.LastActivityPerGroup["4"] != 1772366400000 {
			t.Errorf("group last activity = %d", counts.LastActivityPerGroup["4"])
		}
	})

	t.Run("logged out", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
			writer.Write([]byte(`{"ok": false}`))
		})
		_, err := client.UnreadCounts(context.Background())
		if !IsAPIError(err, ErrCodeUnauthorized) {
			t.Fatalf("error = %v, want unauthorized APIError", err)
		}
	})
}

func TestLastSeen(t *testing.T) {
	t.Run("offline", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/api/users/9/presence" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			writer.Write([]byte(`{"ok": true, "online": false, "last_seen": "2026-03-01T11:55:00Z"}`))
		})
		status, err := client.LastSeen(context.Background(), "9")
		if err != nil {
			t.Fatalf("LastSeen failed: %v", err)
		}
		want := time.Date(2026, 3, 1, 11, 55, 0, 0, time.UTC)
		if status.Online || !status.LastSeen.Equal(want) {
			t.Errorf("status = %+v, want offline since %v", status, want)
		}
	})

	t.Run("never seen", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
			writer.Write([]byte(`{"ok": true, "online": true, "last_seen": null}`))
		})
		status, err := client.LastSeen(context.Background(), "9")
		if err != nil {
			t.Fatalf("LastSeen failed: %v", err)
		}
		if !status.Online || !status.LastSeen.IsZero() {
			t.Errorf("status = %+v", status)
		}
	})
}

func TestUpdateSettings(t *testing.T) {
	var paths []string
	var bodies []map[string]any
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		paths = append(paths, request.URL.Path)
		bodies = append(bodies, body)
		writer.Write([]byte(`{"ok": true}`))
	})
	ctx := context.Background()

	rank := 1
	archived := true
	mute := 8 * time.Hour
	unmute := time.Duration(0)

	changes := []chat.SettingsChange{
		{PinnedRank: &rank},
		{Unpin: true},
		{Archived: &archived},
		{MuteFor: &mute},
		{MuteFor: &unmute},
	}
	for _, change := range changes {
		if err := client.UpdateSettings(ctx, chat.GroupRef("4"), change); err != nil {
			t.Fatalf("UpdateSettings(%+v) failed: %v", change, err)
		}
	}
	if err := client.UpdateSettings(ctx, chat.DirectRef("9"), chat.SettingsChange{}); err != nil {
		t.Fatalf("empty UpdateSettings failed: %v", err)
	}

	if len(bodies) != len(changes) {
		t.Fatalf("got %d requests, want %d (empty change sends nothing)", len(bodies), len(changes))
	}
	if paths[0] != "/api/conversations/group/4/settings" {
		t.Errorf("path = %q", paths[0])
	}
	if bodies[0]["pinned_rank"] != float64(1) {
		t.Errorf("pin body = %v", bodies[0])
	}
	if value, ok := bodies[1]["pinned_rank"]; !ok || value != nil {
		t.Errorf("unpin body = %v", bodies[1])
	}
	if bodies[2]["is_archived"] != true {
		t.Errorf("archive body = %v", bodies[2])
	}
	if bodies[3]["muted_until"] != float64(28800) {
		t.Errorf("mute body = %v", bodies[3])
	}
	if value, ok := bodies[4]["muted_until"]; !ok || value != nil {
		t.Errorf("unmute body = %v", bodies[4])
	}
}
