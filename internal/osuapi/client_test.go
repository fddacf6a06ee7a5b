package osuapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pable/go-osu-metrics/internal/model"
)

type fakeOsu struct {
	tokenCalls int32
	mux        *http.ServeMux
	srv        *httptest.Server
}

func newFakeOsu(t *testing.T) *fakeOsu {
	t.Helper()
	f := &fakeOsu{mux: http.NewServeMux()}
	f.mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "public", r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":86400}`))
	})
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOsu) client() *Client {
	return NewClient(Options{
		APIURL:       f.srv.URL + "/api/v2",
		TokenURL:     f.srv.URL + "/oauth/token",
		BeatmapURL:   f.srv.URL + "/osu",
		ClientID:     "1",
		ClientSecret: "secret",
		HTTPClient:   f.srv.Client(),
	})
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGetMatch_PagesAndTokenReuse(t *testing.T) {
	f := newFakeOsu(t)
	f.mux.HandleFunc("/api/v2/matches/42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		page := model.MatchPage{Match: model.Match{ID: 42, Name: "OWC: (A) vs (B)"}}
		if r.URL.Query().Get("before") == "10" {
			page.Events = []model.MatchEvent{{ID: 5, Detail: model.EventDetail{Type: model.EventMatchCreated}}}
		} else {
			page.Events = []model.MatchEvent{{ID: 10, Detail: model.EventDetail{Type: model.EventPlayerJoined}}}
		}
		writeJSON(t, w, page)
	})
	c := f.client()
	ctx := context.Background()

	latest, err := c.GetMatch(ctx, 42, 0)
	require.NoError(t, err)
	assert.Equal(t, "OWC: (A) vs (B)", latest.Match.Name)
	require.Len(t, latest.Events, 1)
	assert.Equal(t, int64(10), latest.Events[0].ID)

	older, err := c.GetMatch(ctx, 42, 10)
	require.NoError(t, err)
	assert.Equal(t, model.EventMatchCreated, older.Events[0].Detail.Type)

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls), "token should be cached between calls")
}

func TestGetMatch_NotFound(t *testing.T) {
	f := newFakeOsu(t)
	f.mux.HandleFunc("/api/v2/matches/7", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":null}`, http.StatusNotFound)
	})

	_, err := f.client().GetMatch(context.Background(), 7, 0)
	assert.ErrorIs(t, err, ErrMatchNotFound)
	assert.NotErrorIs(t, err, ErrFetchFailure)
}

func TestGet_ServerErrorIsFetchFailure(t *testing.T) {
	f := newFakeOsu(t)
	f.mux.HandleFunc("/api/v2/users/peppy/osu", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "username", r.URL.Query().Get("key"))
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := f.client().GetUser(context.Background(), "peppy", model.ModeOsu)
	assert.ErrorIs(t, err, ErrFetchFailure)
}

func TestGetUser_NumericHasNoKey(t *testing.T) {
	f := newFakeOsu(t)
	f.mux.HandleFunc("/api/v2/users/2/taiko", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("key"))
		writeJSON(t, w, model.User{ID: 2, Username: "peppy"})
	})

	u, err := f.client().GetUser(context.Background(), "2", model.ModeTaiko)
	require.NoError(t, err)
	assert.Equal(t, "peppy", u.Username)
}

func TestGetRecentScores_Query(t *testing.T) {
	f := newFakeOsu(t)
	f.mux.HandleFunc("/api/v2/users/2/scores/recent", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("include_fails"))
		assert.Equal(t, "mania", q.Get("mode"))
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, "3", q.Get("offset"))
		writeJSON(t, w, []model.RecentScore{{ID: 99, Rank: "F"}})
	})

	scores, err := f.client().GetRecentScores(context.Background(), 2, model.ModeMania, 1, 3, true)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.True(t, scores[0].Failed())
}

func TestGetBeatmapFile_Zstd(t *testing.T) {
	f := newFakeOsu(t)
	const content = "osu file format v14\n\n[HitObjects]\n256,192,1000,1,0\n"
	f.mux.HandleFunc("/osu/123", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var buf bytes.Buffer
		enc, err := zstd.NewWriter(&buf)
		if !assert.NoError(t, err) {
			return
		}
		_, _ = enc.Write([]byte(content))
		assert.NoError(t, enc.Close())
		w.Header().Set("Content-Encoding", "zstd")
		_, _ = w.Write(buf.Bytes())
	})

	data, err := f.client().GetBeatmapFile(context.Background(), 123)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.tokenCalls))
}

func TestGetBeatmapFile_Empty(t *testing.T) {
	f := newFakeOsu(t)
	f.mux.HandleFunc("/osu/1", func(w http.ResponseWriter, r *http.Request) {})

	_, err := f.client().GetBeatmapFile(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseMatchID(t *testing.T) {
	for in, want := range map[string]int64{
		"111555364": 111555364,
		"https://osu.ppy.sh/community/matches/111555364": 111555364,
		"https://osu.ppy.sh/mp/42":                       42,
		"http://old.ppy.sh/mp/42/":                       42,
	} {
		got, err := ParseMatchID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "https://example.com/mp/1"} {
		_, err := ParseMatchID(bad)
		assert.Error(t, err, bad)
	}
}
