package fathom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatgrid/insights/internal/log"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New("test-key", log.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	client.SetBaseURL(srv.URL)
	return client, srv
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New("", log.NewNop()); err == nil {
		t.Error("New() with empty key should fail")
	}
	if _, err := New("key", nil); err == nil {
		t.Error("New() with nil logger should fail")
	}
}

func TestAllMeetingsFollowsCursor(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Api-Key")
		if r.URL.Path != "/meetings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}

		cursor := r.URL.Query().Get("cursor")
		switch cursor {
		case "":
			json.NewEncoder(w).Encode(meetingsResponse{
				Items: []Meeting{
					{RecordingID: 1, Title: "Kickoff", CreatedAt: "2025-06-01T10:00:00Z"},
					{RecordingID: 2, Title: "Demo", CreatedAt: "2025-06-02T10:00:00Z"},
				},
				NextCursor: "page2",
			})
		case "page2":
			json.NewEncoder(w).Encode(meetingsResponse{
				Items: []Meeting{
					{RecordingID: 3, Title: "Retro", CreatedAt: "2025-06-03T10:00:00Z"},
				},
			})
		default:
			t.Errorf("unexpected cursor %q", cursor)
		}
	}))

	meetings, err := client.AllMeetings(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("AllMeetings() error = %v", err)
	}
	if len(meetings) != 3 {
		t.Fatalf("got %d meetings, want 3", len(meetings))
	}
	if meetings[2].RecordingID != 3 {
		t.Errorf("last meeting recording_id = %d, want 3", meetings[2].RecordingID)
	}
	if gotAuth != "test-key" {
		t.Errorf("X-Api-Key header = %q, want %q", gotAuth, "test-key")
	}
}

func TestListMeetingsPassesFilters(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("created_after") != "2025-01-01T00:00:00Z" {
			t.Errorf("created_after = %q", q.Get("created_after"))
		}
		if q.Get("include_transcript") != "true" {
			t.Errorf("include_transcript = %q", q.Get("include_transcript"))
		}
		json.NewEncoder(w).Encode(meetingsResponse{})
	}))

	_, _, err := client.ListMeetings(context.Background(), "", ListOptions{
		IncludeTranscript: true,
		CreatedAfter:      "2025-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("ListMeetings() error = %v", err)
	}
}

func TestTranscript(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recordings/42/transcript" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(transcriptResponse{
			Transcript: []Entry{
				{Speaker: Speaker{DisplayName: "Ana"}, Text: "Hello everyone", Timestamp: "00:00:03"},
			},
		})
	}))

	entries, err := client.Transcript(context.Background(), 42)
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Speaker.DisplayName != "Ana" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestMakeRequestSurfacesAPIErrors(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid api key"}`)
	}))

	_, err := client.AllMeetings(context.Background(), ListOptions{})
	if err == nil {
		t.Fatal("expected error on 401 response")
	}
}

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name    string
		meeting Meeting
		want    string
	}{
		{"prefers meeting_title", Meeting{MeetingTitle: "Weekly Sync", Title: "recording"}, "Weekly Sync"},
		{"falls back to title", Meeting{Title: "recording"}, "recording"},
		{"untitled", Meeting{}, "Untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.meeting.DisplayTitle(); got != tt.want {
				t.Errorf("DisplayTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCreateWebhookSendsPayload(t *testing.T) {
	var body map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/webhooks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		fmt.Fprint(w, `{"id":"wh_1","destination_url":"https://example.com/hook"}`)
	}))

	webhook, err := client.CreateWebhook(context.Background(), WebhookOptions{
		DestinationURL:    "https://example.com/hook",
		TriggeredFor:      []string{"my_recordings"},
		IncludeTranscript: true,
	})
	if err != nil {
		t.Fatalf("CreateWebhook() error = %v", err)
	}
	if webhook.ID != "wh_1" {
		t.Errorf("webhook ID = %q, want wh_1", webhook.ID)
	}
	if body["destination_url"] != "https://example.com/hook" {
		t.Errorf("destination_url = %v", body["destination_url"])
	}
	if body["include_transcript"] != true {
		t.Errorf("include_transcript = %v", body["include_transcript"])
	}
}

func TestCreateWebhookRequiresIncludeFlag(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for invalid options")
	}))

	_, err := client.CreateWebhook(context.Background(), WebhookOptions{
		DestinationURL: "https://example.com/hook",
		TriggeredFor:   []string{"my_recordings"},
	})
	if err == nil {
		t.Fatal("expected error when no include flag is set")
	}
}

func TestDeleteWebhook(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/webhooks/wh_1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	if err := client.DeleteWebhook(context.Background(), "wh_1"); err != nil {
		t.Fatalf("DeleteWebhook() error = %v", err)
	}
}
