package worldtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUTCOffset(t *testing.T) {
	testCases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "+00:00", want: 0},
		{in: "+09:00", want: 9 * 3600},
		{in: "-05:30", want: -(5*3600 + 30*60)},
		{in: "+05:45", want: 5*3600 + 45*60},
		{in: "05:00", wantErr: true},
		{in: "+5:00", wantErr: true},
		{in: "+05-00", wantErr: true},
		{in: "+0a:00", wantErr: true},
		{in: "+05:75", wantErr: true},
		{in: "+14:00", want: 14 * 3600},
		{in: "-12:00", want: -12 * 3600},
		{in: "+-1:30", wantErr: true},
		{in: "++1:00", wantErr: true},
		{in: "+ 1:00", wantErr: true},
		{in: "+01:-5", wantErr: true},
		{in: "+99:00", wantErr: true},
		{in: "+15:00", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseUTCOffset(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ip", r.URL.Path)
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestClient_Delta(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{
		"abbreviation": "JST",
		"timezone": "Asia/Tokyo",
		"datetime": "2021-06-01T09:00:00+09:00",
		"unixtime": 1622505600,
		"utc_offset": "+09:00"
	}`)

	local := time.Unix(1622505600-100, 0)
	c := NewClient(srv.URL, time.Second, WithClock(func() time.Time { return local }))

	delta, err := c.Delta(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9*3600+100), delta)
}

func TestClient_NegativeOffset(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"unixtime": 1000000, "utc_offset": "-01:00"}`)

	c := NewClient(srv.URL+"/", time.Second, WithClock(func() time.Time { return time.Unix(1000000, 0) }))

	delta, err := c.Delta(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(-3600), delta)
}

func TestClient_FetchErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
		{name: "missing unixtime", status: http.StatusOK, body: `{"utc_offset": "+00:00"}`},
		{name: "missing utc_offset", status: http.StatusOK, body: `{"unixtime": 1}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.status, tc.body)
			_, err := NewClient(srv.URL, time.Second).Fetch(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestClient_BadOffsetFailsDelta(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"unixtime": 1, "utc_offset": "garbage"}`)

	_, err := NewClient(srv.URL, time.Second).Delta(context.Background())
	assert.Error(t, err)
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"unixtime": 1, "utc_offset": "+00:00"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL, time.Second).Fetch(ctx)
	assert.Error(t, err)
}

func TestResponse_Corrected(t *testing.T) {
	unix := int64(1700000000)
	r := &Response{UnixTime: &unix, UTCOffset: "+01:00"}

	got, err := r.Corrected()
	require.NoError(t, err)
	assert.Equal(t, uint64(1700003600), got)

	_, err = (&Response{UTCOffset: "+01:00"}).Corrected()
	assert.Error(t, err)
}
