package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ritzau/flow-editor/pkg/machine"
	"github.com/ritzau/flow-editor/pkg/pubsub"
	"github.com/ritzau/flow-editor/pkg/store"
)

const chain = `{"nodes":[` +
	`{"id":"a","type":"color","position":{"x":0,"y":0},"data":{"color":"#ff0000"}},` +
	`{"id":"b","position":{"x":10,"y":10},"data":{}},` +
	`{"id":"c","position":{"x":20,"y":20},"data":{}}` +
	`],"edges":[` +
	`{"id":"a-b","source":"a","target":"b"},` +
	`{"id":"b-c","source":"b","target":"c"},` +
	`{"id":"c-b","source":"c","target":"b"}` +
	`]}`

type testHost struct {
	machine *machine.Machine
	store   *store.MemoryStore
	server  *httptest.Server
}

func newTestHost(t *testing.T, text string) *testHost {
	t.Helper()

	st := store.NewMemoryStoreWithText(text)
	pub := NewPublisher()
	m := machine.New(st,
		machine.WithSaveDelay(20*time.Millisecond),
		machine.WithObserver(NewSnapshotPublisher(pub).Observe),
	)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	srv := httptest.NewServer(NewServer(m, pub).Handler())
	t.Cleanup(func() {
		pub.Close()
		srv.Close()
		cancel()
		<-m.Done()
	})

	h := &testHost{machine: m, store: st, server: srv}
	h.waitFor(t, "machine to load", func() bool {
		return m.Snapshot().State != machine.StateLoadStore
	})
	return h
}

func (h *testHost) waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *testHost) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *testHost) expectStatus(t *testing.T, method, path, body string, want int) *http.Response {
	t.Helper()
	resp := h.do(t, method, path, body)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status = %d, want %d", method, path, resp.StatusCode, want)
	}
	return resp
}

func TestGetGraphReturnsLoadedDocument(t *testing.T) {
	h := newTestHost(t, chain)

	resp := h.expectStatus(t, "GET", "/api/graph", "", http.StatusOK)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	var gs pubsub.GraphState
	if err := json.NewDecoder(resp.Body).Decode(&gs); err != nil {
		t.Fatal(err)
	}
	if gs.State != "active" || len(gs.Nodes) != 3 || len(gs.Edges) != 3 {
		t.Errorf("got state=%s nodes=%d edges=%d", gs.State, len(gs.Nodes), len(gs.Edges))
	}
}

func TestGetGraphUnavailableWhenFailed(t *testing.T) {
	h := newTestHost(t, `{"nodes":`)
	<-h.machine.Done()

	h.expectStatus(t, "GET", "/api/graph", "", http.StatusServiceUnavailable)
	h.expectStatus(t, "GET", "/api/graph/stats", "", http.StatusServiceUnavailable)
	h.expectStatus(t, "POST", "/api/connect", `{"source":"a","target":"b"}`, http.StatusServiceUnavailable)
}

func TestStatsReportsCycles(t *testing.T) {
	h := newTestHost(t, chain)

	resp := h.expectStatus(t, "GET", "/api/graph/stats", "", http.StatusOK)
	var stats StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}

	if stats.Nodes != 3 || stats.Edges != 3 {
		t.Errorf("nodes=%d edges=%d, want 3 and 3", stats.Nodes, stats.Edges)
	}
	if stats.Acyclic {
		t.Error("expected cyclic graph")
	}
	if len(stats.Cycles) != 1 || strings.Join(stats.Cycles[0].Nodes, ",") != "b,c" {
		t.Errorf("cycles = %+v, want [[b c]]", stats.Cycles)
	}
	if len(stats.Roots) != 1 || stats.Roots[0] != "a" {
		t.Errorf("roots = %v, want [a]", stats.Roots)
	}
}

func TestDistances(t *testing.T) {
	h := newTestHost(t, chain)

	h.expectStatus(t, "GET", "/api/graph/distances", "", http.StatusBadRequest)
	h.expectStatus(t, "GET", "/api/graph/distances?from=a&max=x", "", http.StatusBadRequest)

	resp := h.expectStatus(t, "GET", "/api/graph/distances?from=a&max=1", "", http.StatusOK)
	var got DistancesResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Distances["a"] != 0 || got.Distances["b"] != 1 || got.Distances["c"] != 2 {
		t.Errorf("distances = %v", got.Distances)
	}
	if strings.Join(got.Within, ",") != "a,b" {
		t.Errorf("within = %v, want [a b]", got.Within)
	}
}

func TestAddNodeGeneratesIDAndSaves(t *testing.T) {
	h := newTestHost(t, "")

	h.expectStatus(t, "POST", "/api/canvas", `{"x":100,"y":50,"zoom":2}`, http.StatusAccepted)
	h.waitFor(t, "canvas to bind", func() bool { return h.machine.Snapshot().Viewport != nil })

	resp := h.expectStatus(t, "POST", "/api/nodes", `{"node":{"type":"color","data":{"color":"#00ff00"}},"point":{"x":300,"y":250}}`, http.StatusAccepted)
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	id := body["id"]
	if len(id) != 21 {
		t.Errorf("expected a 21 character generated id, got %q", id)
	}

	h.waitFor(t, "save", func() bool { return h.store.Writes() == 1 })

	snap := h.machine.Snapshot()
	if len(snap.Nodes) != 1 || snap.Nodes[0].ID != id {
		t.Fatalf("nodes = %+v", snap.Nodes)
	}
	if pos := snap.Nodes[0].Position; pos.X != 100 || pos.Y != 100 {
		t.Errorf("position = %+v, want flow coordinates {100 100}", pos)
	}
	if !strings.Contains(h.store.Text(), `"zoom":2`) {
		t.Errorf("saved document lacks viewport: %s", h.store.Text())
	}
}

func TestCanvasUpdateChangesViewport(t *testing.T) {
	h := newTestHost(t, "")

	h.expectStatus(t, "POST", "/api/canvas", "", http.StatusAccepted)
	h.waitFor(t, "canvas to bind", func() bool { return h.machine.Snapshot().Viewport != nil })
	h.expectStatus(t, "POST", "/api/canvas", `{"x":5,"y":6,"zoom":3}`, http.StatusAccepted)

	h.expectStatus(t, "POST", "/api/nodes", `{"node":{"id":"n1"},"point":{"x":8,"y":9}}`, http.StatusAccepted)
	h.waitFor(t, "node", func() bool { return len(h.machine.Snapshot().Nodes) == 1 })

	if pos := h.machine.Snapshot().Nodes[0].Position; pos.X != 1 || pos.Y != 1 {
		t.Errorf("position = %+v, want {1 1}", pos)
	}
}

func TestNodeColor(t *testing.T) {
	h := newTestHost(t, chain)

	h.expectStatus(t, "POST", "/api/nodes/missing/color", `{"color":"#123456"}`, http.StatusNotFound)
	h.expectStatus(t, "POST", "/api/nodes/a/color", `{"color":"#123456"}`, http.StatusAccepted)

	h.waitFor(t, "color change", func() bool {
		for _, n := range h.machine.Snapshot().Nodes {
			if n.ID == "a" {
				return n.Data["color"] == "#123456"
			}
		}
		return false
	})
	for _, n := range h.machine.Snapshot().Nodes {
		if n.ID != "a" && n.Data["color"] != nil {
			t.Errorf("node %s unexpectedly has color %v", n.ID, n.Data["color"])
		}
	}
}

func TestMutationRoutes(t *testing.T) {
	h := newTestHost(t, chain)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"node position", "POST", "/api/nodes/changes", `[{"type":"position","id":"a","position":{"x":1,"y":2}}]`, http.StatusAccepted},
		{"node change missing id", "POST", "/api/nodes/changes", `[{"type":"position"}]`, http.StatusBadRequest},
		{"malformed json", "POST", "/api/nodes/changes", `[{`, http.StatusBadRequest},
		{"edge select", "POST", "/api/edges/changes", `[{"type":"select","id":"a-b","selected":true}]`, http.StatusAccepted},
		{"connect", "POST", "/api/connect", `{"source":"a","target":"c"}`, http.StatusAccepted},
		{"connect without target", "POST", "/api/connect", `{"source":"a"}`, http.StatusBadRequest},
		{"set edges", "PUT", "/api/edges", `[]`, http.StatusAccepted},
		{"set nodes", "PUT", "/api/nodes", `[{"id":"z","position":{"x":0,"y":0},"data":{}}]`, http.StatusAccepted},
		{"wrong method", "DELETE", "/api/nodes", ``, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.expectStatus(t, tt.method, tt.path, tt.body, tt.want)
		})
	}

	h.waitFor(t, "set nodes", func() bool {
		snap := h.machine.Snapshot()
		return len(snap.Nodes) == 1 && snap.Nodes[0].ID == "z" && len(snap.Edges) == 0
	})
}

func TestSubscribeGraphStreamsCurrentState(t *testing.T) {
	h := newTestHost(t, chain)

	resp := h.expectStatus(t, "GET", "/api/subscribe/graph", "", http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	readEvent := func() pubsub.Event {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatal("stream ended")
				}
				if data, found := strings.CutPrefix(line, "data: "); found {
					var ev pubsub.Event
					if err := json.Unmarshal([]byte(data), &ev); err != nil {
						t.Fatal(err)
					}
					return ev
				}
			case <-timeout:
				t.Fatal("timeout waiting for SSE event")
			}
		}
	}

	// The latest snapshot is replayed on subscribe
	ev := readEvent()
	if ev.Topic != pubsub.TopicGraphState || ev.Type != "active" {
		t.Fatalf("replayed event = %s/%s", ev.Topic, ev.Type)
	}

	h.expectStatus(t, "POST", "/api/connect", `{"source":"a","target":"c"}`, http.StatusAccepted)
	for {
		ev = readEvent()
		var gs pubsub.GraphState
		if err := json.Unmarshal(ev.Data, &gs); err != nil {
			t.Fatal(err)
		}
		if len(gs.Edges) == 4 {
			break
		}
	}
}

func TestSnapshotPublisherReportsSaves(t *testing.T) {
	pub := NewPublisher()
	defer pub.Close()

	sub, err := pub.Subscribe(context.Background(), pubsub.TopicGraphSaved)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	sp := NewSnapshotPublisher(pub)
	sp.Observe(machine.Snapshot{State: machine.StateActive})
	sp.Observe(machine.Snapshot{State: machine.StateSaveStore})
	sp.Observe(machine.Snapshot{State: machine.StateActive, Saves: 1})
	sp.Observe(machine.Snapshot{State: machine.StateActive, Saves: 1})

	select {
	case ev := <-sub.Events():
		if ev.Type != "saved" {
			t.Errorf("type = %s, want saved", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no graph_saved event")
	}

	select {
	case ev := <-sub.Events():
		t.Errorf("unexpected second save event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
