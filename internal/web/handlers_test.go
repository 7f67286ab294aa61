package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cjeanneret/focuser/internal/focuser"
)

type fixedSource struct {
	st focuser.Status
}

func (f fixedSource) Status() focuser.Status { return f.st }

func testStatus() focuser.Status {
	return focuser.Status{
		Pins: []focuser.PinStatus{
			{Label: "DIR", Pin: 27, Level: 1},
			{Label: "STEP", Pin: 17, Level: 0},
			{Label: "ENBL", Pin: 22, Level: 1},
		},
		Position:      4,
		LastDirection: "OUTFOCUS",
		StepsPerMM:    470,
		Backlash0:     200,
		Backlash1:     240,
		DelayUs:       10000,
		Commands:      1,
		LastCommand:   "OF 10",
		LastReply:     "OK OUTFOCUS 4 pulses",
	}
}

func newTestHandlers() *Handlers {
	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>test</html>")},
	}
	return NewHandlers(NewBroadcaster(), fixedSource{testStatus()}, staticFS)
}

// ---------- HandleStatus ----------

func TestHandleStatus(t *testing.T) {
	h := newTestHandlers()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()

	h.HandleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var st focuser.Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Position != 4 || st.LastDirection != "OUTFOCUS" {
		t.Errorf("status = %+v", st)
	}
	if len(st.Pins) != 3 || st.Pins[2].Label != "ENBL" || st.Pins[2].Level != 1 {
		t.Errorf("pins = %+v", st.Pins)
	}
}

func TestHandleStatus_JSONKeys(t *testing.T) {
	h := newTestHandlers()
	w := httptest.NewRecorder()
	h.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	body := w.Body.String()
	for _, key := range []string{`"steps_per_mm":470`, `"backlash0":200`, `"backlash1":240`, `"delay":10000`, `"last_direction":"OUTFOCUS"`} {
		if !strings.Contains(body, key) {
			t.Errorf("body missing %s: %s", key, body)
		}
	}
}

// ---------- ServeIndex ----------

func TestServeIndex(t *testing.T) {
	h := newTestHandlers()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.ServeIndex(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestServeIndex_Missing(t *testing.T) {
	h := NewHandlers(NewBroadcaster(), fixedSource{}, fstest.MapFS{})
	w := httptest.NewRecorder()
	h.ServeIndex(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ---------- HandleStatusStream ----------

func TestHandleStatusStream(t *testing.T) {
	h := newTestHandlers()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleStatusStream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	r := bufio.NewReader(resp.Body)
	next := func() Event {
		t.Helper()
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
				var evt Event
				if err := json.Unmarshal([]byte(data), &evt); err != nil {
					t.Fatalf("unmarshal %q: %v", data, err)
				}
				return evt
			}
		}
	}

	first := next()
	if first.Kind != KindStatus || first.Status == nil || first.Status.Position != 4 {
		t.Fatalf("first event = %+v, want the current status", first)
	}

	// The handler subscribes before writing the first event.
	h.Broadcaster.Log("live", "Move INFOCUS: 202 pulses")
	evt := next()
	if evt.Kind != KindLog || evt.Msg != "Move INFOCUS: 202 pulses" {
		t.Errorf("event = %+v", evt)
	}
}

// ---------- Server mux ----------

func TestServerMux_Routes(t *testing.T) {
	s, err := NewServer(":0", NewBroadcaster(), fixedSource{testStatus()})
	if err != nil {
		t.Fatal(err)
	}
	mux := s.Mux()

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/status", http.StatusOK},
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodPost, "/status", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, w.Code, tc.want)
		}
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s, err := NewServer("127.0.0.1:0", NewBroadcaster(), fixedSource{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
