package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldsync/internal/engine"
	"fieldsync/internal/job"
)

func TestClient_GetJob(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/j1" {
			t.Errorf("path = %s, want /jobs/j1", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "j1",
			"site": "Acme Warehouse",
			"status": "started",
			"timing_status": "active",
			"doors": [{
				"id": "d1",
				"door_number": 1,
				"line_items": [
					{"id": "i1", "description": "Replace rollers", "completed": true, "completed_at": "2025-03-10T08:15:00"}
				],
				"completed": false,
				"photo_info": {"id": "p1", "url": "https://cdn/p1", "thumbnail_url": "https://cdn/p1-t"}
			}],
			"time_tracking": {
				"total_minutes": 42,
				"sessions": [
					{"start": "2025-03-10T07:00:00-05:00", "end": "2025-03-10T07:30:00-05:00"},
					{"start": "2025-03-10T08:00:00"}
				]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-123", 0)
	j, err := c.GetJob(context.Background(), "j1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}

	if j.ID != "j1" || j.Status != job.StatusStarted || j.TimingStatus != job.TimingActive {
		t.Errorf("job header = %s/%s/%s", j.ID, j.Status, j.TimingStatus)
	}
	if j.ConfirmedMinutes != 42 {
		t.Errorf("ConfirmedMinutes = %d, want 42", j.ConfirmedMinutes)
	}

	if len(j.Sessions) != 2 {
		t.Fatalf("len(Sessions) = %d, want 2", len(j.Sessions))
	}
	wantStart := time.Date(2025, 3, 10, 7, 0, 0, 0, time.FixedZone("", -5*3600))
	if !j.Sessions[0].Start.Equal(wantStart) {
		t.Errorf("session 0 start = %v, want %v", j.Sessions[0].Start, wantStart)
	}
	// Naive timestamp: local wall-clock, so the clock fields carry over.
	open := j.Sessions[1]
	if open.End != nil {
		t.Error("session 1 should be open")
	}
	if h, m := open.Start.Hour(), open.Start.Minute(); h != 8 || m != 0 {
		t.Errorf("naive session start = %02d:%02d, want 08:00 local", h, m)
	}

	d := j.Door("d1")
	if d == nil {
		t.Fatal("door d1 missing")
	}
	item := d.Item("i1")
	if item == nil || !item.Completed || item.CompletedAt == nil {
		t.Errorf("item = %+v, want completed with timestamp", item)
	}
	if d.PhotoInfo == nil || d.PhotoInfo.URL != "https://cdn/p1" {
		t.Errorf("PhotoInfo = %+v", d.PhotoInfo)
	}
	if d.VideoInfo != nil {
		t.Errorf("VideoInfo = %+v, want nil", d.VideoInfo)
	}
}

func TestClient_JobActions(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody = nil
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	ctx := context.Background()
	signer := job.Signed("Pat Jones", "Manager", []byte{0x89, 'P', 'N', 'G'})

	t.Run("start posts the signer", func(t *testing.T) {
		if err := c.StartJob(ctx, "j1", signer); err != nil {
			t.Fatalf("StartJob() error = %v", err)
		}
		if gotPath != "/jobs/j1/start" {
			t.Errorf("path = %s, want /jobs/j1/start", gotPath)
		}
		if gotBody["signer_kind"] != "on_site" || gotBody["signer_name"] != "Pat Jones" {
			t.Errorf("body = %v", gotBody)
		}
		if _, ok := gotBody["signature"]; !ok {
			t.Error("signature missing from body")
		}
	})

	t.Run("vacant action omits signer fields", func(t *testing.T) {
		if err := c.PauseJob(ctx, "j1", job.Vacant()); err != nil {
			t.Fatalf("PauseJob() error = %v", err)
		}
		if gotPath != "/jobs/j1/pause" {
			t.Errorf("path = %s, want /jobs/j1/pause", gotPath)
		}
		if gotBody["signer_kind"] != "vacant" {
			t.Errorf("signer_kind = %v, want vacant", gotBody["signer_kind"])
		}
		if _, ok := gotBody["signer_name"]; ok {
			t.Error("vacant action should not carry signer_name")
		}
	})

	t.Run("toggle sends the requested end state", func(t *testing.T) {
		if err := c.ToggleLineItem(ctx, "j1", "i1", true); err != nil {
			t.Fatalf("ToggleLineItem() error = %v", err)
		}
		if gotPath != "/jobs/j1/line-items/i1/toggle" {
			t.Errorf("path = %s", gotPath)
		}
		if gotBody["completed"] != true {
			t.Errorf("completed = %v, want true", gotBody["completed"])
		}
	})

	t.Run("door completion", func(t *testing.T) {
		if err := c.CompleteDoor(ctx, "j1", "d1", signer); err != nil {
			t.Fatalf("CompleteDoor() error = %v", err)
		}
		if gotPath != "/jobs/j1/doors/d1/complete" {
			t.Errorf("path = %s", gotPath)
		}
	})
}

func TestClient_TimeSummary(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_minutes": 95, "active_session_start": "2025-03-10T08:00:00", "session_count": 4}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	summary, err := c.TimeSummary(context.Background(), "j1")
	if err != nil {
		t.Fatalf("TimeSummary() error = %v", err)
	}
	if summary.TotalMinutes != 95 || summary.SessionCount != 4 {
		t.Errorf("summary = %+v", summary)
	}
	// Kept raw: parsing is the tracker's concern.
	if summary.ActiveSessionStart != "2025-03-10T08:00:00" {
		t.Errorf("ActiveSessionStart = %q", summary.ActiveSessionStart)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	t.Parallel()

	t.Run("5xx is retryable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		err := NewClient(srv.URL, "", 0).Ping(context.Background())
		var te *engine.TransportError
		if !errors.As(err, &te) {
			t.Fatalf("error = %v, want TransportError", err)
		}
		if !te.Retryable() || te.Offline() {
			t.Errorf("502: Retryable=%v Offline=%v, want retryable non-offline", te.Retryable(), te.Offline())
		}
	})

	t.Run("4xx is permanent", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		err := NewClient(srv.URL, "", 0).Ping(context.Background())
		if engine.IsRetryable(err) {
			t.Errorf("404 classified retryable: %v", err)
		}
	})

	t.Run("connection failure is offline and retryable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // nothing listening anymore

		err := NewClient(srv.URL, "", time.Second).Ping(context.Background())
		var te *engine.TransportError
		if !errors.As(err, &te) {
			t.Fatalf("error = %v, want TransportError", err)
		}
		if !te.Offline() || !te.Retryable() {
			t.Errorf("connection failure: Retryable=%v Offline=%v, want both", te.Retryable(), te.Offline())
		}
	})
}

func TestUploader_Upload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/j1/doors/d1/media" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}
		if got := r.FormValue("media_type"); got != "photo" {
			t.Errorf("media_type = %q, want photo", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("reading file part: %v", err)
		}
		defer file.Close()

		w.Write([]byte(`{"id": "m1", "url": "https://cdn/m1", "thumbnail_url": "https://cdn/m1-t", "uploaded_at": "2025-03-10T08:00:00Z"}`))
	}))
	defer srv.Close()

	u := NewUploader(NewClient(srv.URL, "", 0))
	info, err := u.UploadPhoto(context.Background(), "j1", "d1", []byte{0xFF, 0xD8, 0xFF})
	if err != nil {
		t.Fatalf("UploadPhoto() error = %v", err)
	}
	if info.ID != "m1" || info.URL != "https://cdn/m1" || info.ThumbnailURL != "https://cdn/m1-t" {
		t.Errorf("info = %+v", info)
	}
	if info.Placeholder {
		t.Error("server-issued MediaInfo must not be a placeholder")
	}
	want := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	if !info.UploadedAt.Equal(want) {
		t.Errorf("UploadedAt = %v, want %v", info.UploadedAt, want)
	}
}
