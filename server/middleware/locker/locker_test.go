package locker_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TPiechocki/OS-xonar-driver/generichttp"
	"github.com/TPiechocki/OS-xonar-driver/server/middleware/locker"
)

type table generichttp.RouteTable

func (t table) RT() generichttp.RouteTable { return generichttp.RouteTable(t) }

func TestLockRefusesWrites(t *testing.T) {
	rt := table{}
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/mute"}] = ok
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/mute"}] = ok

	l := locker.New()
	locker.Inject(rt, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	rt.RT().Bind(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	post := func(path, body string) int {
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, post("/lock", `{"bool":true}`))
	assert.True(t, l.Locked())
	assert.Equal(t, http.StatusLocked, post("/mute", `{"bool":true}`))

	resp, err := http.Get(srv.URL + "/mute")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "reads pass")

	assert.Equal(t, http.StatusOK, post("/lock", `{"bool":false}`))
	assert.Equal(t, http.StatusOK, post("/mute", `{"bool":true}`))
	assert.Equal(t, http.StatusBadRequest, post("/lock", `nope`))
}
