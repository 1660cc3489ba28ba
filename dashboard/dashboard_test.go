package dashboard

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/waggle/broker"
	"github.com/casualjim/waggle/inventory"
	"github.com/casualjim/waggle/messages"
	"github.com/casualjim/waggle/scenario"
)

func newDashFixture(t *testing.T, options ...opts.Option[Server]) (*Server, *broker.Local) {
	t.Helper()

	world := scenario.Default()
	store := inventory.NewStore()
	world.Seed(store)

	bus := broker.New()
	t.Cleanup(func() { require.NoError(t, bus.Close()) })

	return New(bus, store, world, options...), bus
}

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthReportsHealthy(t *testing.T) {
	s, _ := newDashFixture(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	body := getJSON(t, ts.URL+"/api/health")
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestInventoryListsEveryPosition(t *testing.T) {
	s, _ := newDashFixture(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	body := getJSON(t, ts.URL+"/api/inventory")
	levels, ok := body["inventory"].([]any)
	require.True(t, ok)
	// ten SKUs across three warehouses
	assert.Len(t, levels, 30)
}

func TestWarehousesListsTheNetwork(t *testing.T) {
	s, _ := newDashFixture(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	body := getJSON(t, ts.URL+"/api/warehouses")
	warehouses, ok := body["warehouses"].([]any)
	require.True(t, ok)
	assert.Len(t, warehouses, 3)
}

func TestMetricsPairKPIsWithMessaging(t *testing.T) {
	s, bus := newDashFixture(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	env := messages.New("demand", messages.KindDemandForecast, nil)
	require.NoError(t, bus.Publish(context.Background(), env))

	body := getJSON(t, ts.URL+"/api/metrics")

	kpis, ok := body["kpis"].(map[string]any)
	require.True(t, ok)
	assert.Greater(t, kpis["total_inventory_value"], 0.0)

	messaging, ok := body["messaging"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, messaging["total_published"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHistoryFiltersAndWindows(t *testing.T) {
	s, bus := newDashFixture(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	ctx := context.Background()
	for range 3 {
		require.NoError(t, bus.Publish(ctx, messages.New("demand", messages.KindDemandForecast, nil)))
	}
	require.NoError(t, bus.Publish(ctx, messages.New("supply", messages.KindSupplyAlert, nil)))

	body := getJSON(t, ts.URL+"/api/history?sender=demand&limit=2")
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)

	body = getJSON(t, ts.URL+"/api/history?kind=supply_alert")
	msgs, ok = body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 1)

	body = getJSON(t, ts.URL+"/api/history")
	msgs, ok = body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 4)
}

func TestHistoryRejectsABadLimit(t *testing.T) {
	s, _ := newDashFixture(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	for _, limit := range []string{"nope", "-1", "0"} {
		resp, err := http.Get(ts.URL + "/api/history?limit=" + limit)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestScenarioSchemaIsServed(t *testing.T) {
	s, _ := newDashFixture(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/scenario/schema")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "warehouses")
	assert.Contains(t, string(raw), "simulation_params")
}

func TestAgentsReportsConfiguredIdentities(t *testing.T) {
	s, bus := newDashFixture(t, Agents("demand", "supply"))
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	env := messages.New("demand", messages.KindDemandForecast, nil)
	require.NoError(t, bus.Publish(context.Background(), env))

	body := getJSON(t, ts.URL+"/api/agents")
	agents, ok := body["agents"].(map[string]any)
	require.True(t, ok)
	require.Len(t, agents, 2)

	demand, ok := agents["demand"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "active", demand["status"])
	assert.EqualValues(t, 1, demand["messages_sent"])
	assert.NotEmpty(t, demand["last_activity"])

	supply, ok := agents["supply"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 0, supply["messages_sent"])
	assert.Nil(t, supply["last_activity"])
}

func TestAgentsFallsBackToObservedSenders(t *testing.T) {
	s, bus := newDashFixture(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	env := messages.New("logistics", messages.KindInventoryUpdate, nil)
	require.NoError(t, bus.Publish(context.Background(), env))

	body := getJSON(t, ts.URL+"/api/agents")
	agents, ok := body["agents"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, agents, "logistics")
}

// readEvent scans to the next data line of a server-sent event stream
// and returns its decoded frame.
func readEvent(t *testing.T, r *bufio.Reader) event {
	t.Helper()

	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var e event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(data)), &e))
			return e
		}
	}
}

func TestStreamGreetsThenRelays(t *testing.T) {
	s, _ := newDashFixture(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	greeting := readEvent(t, reader)
	assert.Equal(t, "metrics", greeting.Type)

	s.feed.publish(event{Type: "message", Data: map[string]string{"note": "hello"}})
	next := readEvent(t, reader)
	assert.Equal(t, "message", next.Type)
}

func TestFeedDropsFramesForSlowClients(t *testing.T) {
	f := newFeed()
	ch := f.subscribe()

	for range cap(ch) + 5 {
		f.publish(event{Type: "metrics"})
	}
	assert.Len(t, ch, cap(ch))

	f.unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestFeedCloseReleasesSubscribers(t *testing.T) {
	f := newFeed()
	ch := f.subscribe()

	f.close()
	_, open := <-ch
	assert.False(t, open)

	// closed feeds hand out pre-closed channels
	_, open = <-f.subscribe()
	assert.False(t, open)

	// racing unsubscribe after close must not double close
	f.unsubscribe(ch)
}

func TestServeBindsPollsAndShutsDown(t *testing.T) {
	s, bus := newDashFixture(t,
		WithAddr("127.0.0.1:0"),
		WithTick(10*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx) }()

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}
	base := "http://" + s.Addr().String()

	body := getJSON(t, base+"/api/health")
	assert.Equal(t, "healthy", body["status"])

	resp, err := http.Get(base + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	readEvent(t, reader)

	env := messages.New("demand", messages.KindDemandForecast, nil)
	require.NoError(t, bus.Publish(context.Background(), env))

	deadline := time.Now().Add(5 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "poll loop never relayed the envelope")
		if e := readEvent(t, reader); e.Type == "message" {
			break
		}
	}

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server never shut down")
	}
}
