package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tmorst/signalboard/internal/controller"
	"github.com/tmorst/signalboard/internal/hub"
	"github.com/tmorst/signalboard/internal/media"
	"github.com/tmorst/signalboard/internal/types"
)

type simFixture struct {
	srv  *httptest.Server
	ctrl *controller.Controller
}

func newSimFixture(t *testing.T) *simFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zap.NewNop()
	ctrl := controller.New(ctx, controller.Config{
		LaneIDs:        []int{1, 2, 3, 4},
		GreenDuration:  time.Hour, // cycle frozen unless a test overrides it
		YellowDuration: 10 * time.Millisecond,
	}, log)
	h := hub.NewHub(ctx, ctrl, 20*time.Millisecond, log)

	store, err := media.NewStore(t.TempDir(), []int{1, 2, 3, 4}, log)
	require.NoError(t, err)

	srv := httptest.NewServer(SimulatorRoutes(ctrl, h, store, log))
	t.Cleanup(srv.Close)
	return &simFixture{srv: srv, ctrl: ctrl}
}

func (f *simFixture) waitSignal(t *testing.T, laneID int, want types.SignalState) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if f.ctrl.Snapshot().Signals[types.LaneKey(laneID)] == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("lane %d never reached %s", laneID, want)
}

func mustDo(t *testing.T, method, url string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSimulator_Healthz(t *testing.T) {
	f := newSimFixture(t)
	resp := mustDo(t, http.MethodGet, f.srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSimulator_ForceSignal(t *testing.T) {
	f := newSimFixture(t)

	resp := mustDo(t, http.MethodPost, f.srv.URL+"/signal/4/force", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	f.waitSignal(t, 4, types.SignalGreen)

	bad := mustDo(t, http.MethodPost, f.srv.URL+"/signal/banana/force", nil)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestSimulator_SimulateEmergency(t *testing.T) {
	f := newSimFixture(t)

	resp := mustDo(t, http.MethodPost, f.srv.URL+"/signal/2/simulate_emergency?active=true", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	f.waitSignal(t, 2, types.SignalGreen)

	snap := f.ctrl.Snapshot()
	lane, ok := snap.Emergency.ActiveLane()
	require.True(t, ok)
	assert.Equal(t, 2, lane)

	off := mustDo(t, http.MethodPost, f.srv.URL+"/signal/2/simulate_emergency?active=false", nil)
	assert.Equal(t, http.StatusOK, off.StatusCode)

	missing := mustDo(t, http.MethodPost, f.srv.URL+"/signal/2/simulate_emergency", nil)
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}

func uploadRequest(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSimulator_VideoLifecycle(t *testing.T) {
	f := newSimFixture(t)

	up := uploadRequest(t, f.srv.URL+"/upload/1", "approach.mp4", "not really video")
	require.Equal(t, http.StatusOK, up.StatusCode)

	var upBody struct {
		Status     string `json:"status"`
		FilePath   string `json:"file_path"`
		LanesReady int    `json:"lanes_ready"`
	}
	require.NoError(t, json.NewDecoder(up.Body).Decode(&upBody))
	assert.Equal(t, "success", upBody.Status)
	assert.Equal(t, 1, upBody.LanesReady)
	assert.Contains(t, upBody.FilePath, "lane1_approach.mp4")

	serve := mustDo(t, http.MethodGet, f.srv.URL+"/video/1", nil)
	require.Equal(t, http.StatusOK, serve.StatusCode)
	data, err := io.ReadAll(serve.Body)
	require.NoError(t, err)
	assert.Equal(t, "not really video", string(data))

	missing := mustDo(t, http.MethodGet, f.srv.URL+"/video/2", nil)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	del := mustDo(t, http.MethodDelete, f.srv.URL+"/video/1", nil)
	assert.Equal(t, http.StatusOK, del.StatusCode)

	status := mustDo(t, http.MethodGet, f.srv.URL+"/status", nil)
	var st struct {
		LanesReady      int   `json:"lanes_ready"`
		LanesWithVideos []int `json:"lanes_with_videos"`
		AllReady        bool  `json:"all_ready"`
	}
	require.NoError(t, json.NewDecoder(status.Body).Decode(&st))
	assert.Equal(t, 0, st.LanesReady)
	assert.Empty(t, st.LanesWithVideos)
	assert.False(t, st.AllReady)
}

func TestSimulator_ClearAllVideos(t *testing.T) {
	f := newSimFixture(t)

	_ = uploadRequest(t, f.srv.URL+"/upload/1", "a.mp4", "x")
	_ = uploadRequest(t, f.srv.URL+"/upload/2", "b.mp4", "y")

	resp := mustDo(t, http.MethodDelete, f.srv.URL+"/videos", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status := mustDo(t, http.MethodGet, f.srv.URL+"/status", nil)
	var st struct {
		LanesReady int `json:"lanes_ready"`
	}
	require.NoError(t, json.NewDecoder(status.Body).Decode(&st))
	assert.Equal(t, 0, st.LanesReady)
}

// Full wire round trip: dial the simulator's feed endpoint and decode
// what it pushes.
func TestSimulator_FeedPushesDecodableSnapshots(t *testing.T) {
	f := newSimFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/emergency"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	snap, err := types.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, types.SignalGreen, snap.Signals["lane1"])
	assert.False(t, snap.Emergency.IsActive)
	assert.Contains(t, snap.Detections, "lane1")
}
