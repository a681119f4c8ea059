package mixer_test

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TPiechocki/OS-xonar-driver/generichttp/mixer"
	"github.com/TPiechocki/OS-xonar-driver/oxygen"
	"github.com/TPiechocki/OS-xonar-driver/xonar"
)

func card(t *testing.T) *xonar.Chip {
	t.Helper()
	c, err := xonar.Probe(oxygen.NewMockCard(oxygen.DefaultMockOptions()), xonar.Config{
		Model:  xonar.XonarDX(),
		Logger: log.New(io.Discard, "", 0),
		Sleep:  func(time.Duration) {},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Free() })
	return c
}

func serve(t *testing.T, h *mixer.HTTPMixer) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	h.RT().Bind(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestVolumeOverHTTP(t *testing.T) {
	c := card(t)
	srv := serve(t, mixer.NewHTTPMixer(c, c.FrontPanel(), 0))

	var rng mixer.Range
	getJSON(t, srv.URL+"/volume/range", &rng)
	assert.Equal(t, mixer.Range{Channels: 8, Min: 67, Max: 127}, rng)

	levels := `{"ints":[127,127,100,100,100,100,100,100]}`
	assert.Equal(t, http.StatusOK, post(t, srv.URL+"/volume", levels))
	var got struct{ Ints []int }
	getJSON(t, srv.URL+"/volume", &got)
	assert.Equal(t, []int{127, 127, 100, 100, 100, 100, 100, 100}, got.Ints)

	assert.Equal(t, http.StatusBadRequest, post(t, srv.URL+"/volume", `{"ints":[100]}`))
	assert.Equal(t, http.StatusBadRequest, post(t, srv.URL+"/volume", `{"ints":[1,1,1,1,1,1,1,1]}`))
}

func TestMuteAndSwitchOverHTTP(t *testing.T) {
	c := card(t)
	srv := serve(t, mixer.NewHTTPMixer(c, c.FrontPanel(), 0))

	var b struct{ Bool bool }
	getJSON(t, srv.URL+"/mute", &b)
	assert.True(t, b.Bool, "cold profile is muted")

	assert.Equal(t, http.StatusOK, post(t, srv.URL+"/mute", `{"bool":false}`))
	getJSON(t, srv.URL+"/mute", &b)
	assert.False(t, b.Bool)

	assert.Equal(t, http.StatusOK, post(t, srv.URL+"/front-panel", `{"bool":true}`))
	on, err := c.FrontPanel().Get()
	require.NoError(t, err)
	assert.True(t, on)

	getJSON(t, srv.URL+"/external-power", &b)
	assert.True(t, b.Bool)

	var s struct{ Str string }
	getJSON(t, srv.URL+"/state", &s)
	assert.Equal(t, xonar.Running.String(), s.Str)
}

func TestDumpOverHTTP(t *testing.T) {
	c := card(t)
	srv := serve(t, mixer.NewHTTPMixer(c, nil, 0))

	resp, err := http.Get(srv.URL + "/dump")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.HasPrefix(string(body), "CMI8788:\n"), string(body))

	require.NoError(t, c.Free())
	resp, err = http.Get(srv.URL + "/dump")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/front-panel")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no switch was given")
}

func TestWritesAreRateLimited(t *testing.T) {
	c := card(t)
	srv := serve(t, mixer.NewHTTPMixer(c, nil, 1))

	assert.Equal(t, http.StatusOK, post(t, srv.URL+"/mute", `{"bool":false}`))
	assert.Equal(t, http.StatusTooManyRequests, post(t, srv.URL+"/mute", `{"bool":true}`))

	var b struct{ Bool bool }
	getJSON(t, srv.URL+"/mute", &b)
	assert.False(t, b.Bool, "reads are not limited and the refused write did nothing")
}
