package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jass-lite/apps/server/internal/auth"
	"jass-lite/apps/server/internal/codec"
)

func TestHistoryRoutes(t *testing.T) {
	ctx := context.Background()
	authSvc := auth.NewManager(time.Hour)
	grant, err := authSvc.Register(ctx, "anna", "secret-pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	svc := NewMemoryService(10)
	rec := sampleMatch("m1", time.Now())
	rec.Players[0].AccountID = grant.AccountID
	if err := svc.RecordMatch(ctx, rec); err != nil {
		t.Fatalf("record match: %v", err)
	}
	env, err := codec.WrapServerEnvelope("m1", 1, 7, &codec.ErrorResponse{Code: "REJECTED", Message: "nope"})
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	encoded, err := codec.EncodeLedger(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := svc.AppendEvent(ctx, EventRecord{MatchID: "m1", Seq: 1, EventType: string(env.Type), Envelope: encoded, ServerTsMs: env.TsMs}); err != nil {
		t.Fatalf("append: %v", err)
	}

	mux := http.NewServeMux()
	NewHTTPHandler(authSvc, svc).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	get := func(path, token string) *http.Response {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		return resp
	}

	resp := get("/api/history/recent", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", resp.StatusCode)
	}

	resp = get("/api/history/recent?limit=5", grant.Token)
	var recent struct {
		Items []HistoryItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&recent); err != nil {
		t.Fatalf("decode recent: %v", err)
	}
	resp.Body.Close()
	if len(recent.Items) != 1 || recent.Items[0].MatchID != "m1" {
		t.Fatalf("recent = %+v", recent.Items)
	}

	resp = get("/api/history/matches/m1/events", grant.Token)
	var events struct {
		MatchID string `json:"match_id"`
		Events  []struct {
			Seq      uint64         `json:"seq"`
			Envelope map[string]any `json:"envelope"`
		} `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	resp.Body.Close()
	if len(events.Events) != 1 {
		t.Fatalf("events = %+v", events.Events)
	}
	if events.Events[0].Envelope["type"] != string(codec.TypeError) {
		t.Fatalf("rendered envelope = %+v", events.Events[0].Envelope)
	}

	resp = get("/api/history/matches/other/events", grant.Token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown match: status %d", resp.StatusCode)
	}
}

func TestParseLimit(t *testing.T) {
	for raw, want := range map[string]int{"": 20, "x": 20, "-3": 20, "7": 7, "500": 100} {
		if got := parseLimit(raw); got != want {
			t.Fatalf("parseLimit(%q) = %d, want %d", raw, got, want)
		}
	}
}
