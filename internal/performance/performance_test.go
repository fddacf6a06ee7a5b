package performance

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pable/go-osu-metrics/internal/beatmap"
	"github.com/pable/go-osu-metrics/internal/difficulty"
	"github.com/pable/go-osu-metrics/internal/metrics"
	"github.com/pable/go-osu-metrics/internal/model"
	"github.com/pable/go-osu-metrics/internal/osuapi"
)

const fourObjects = `osu file format v14

[General]
Mode: 0

[HitObjects]
256,192,1000,1,0
256,192,2000,1,0
256,192,3000,1,0
256,192,4000,1,0
`

type fakeFiles struct {
	data  map[int64]string
	calls int
}

func (f *fakeFiles) GetBeatmapFile(_ context.Context, id int64) ([]byte, error) {
	f.calls++
	d, ok := f.data[id]
	if !ok {
		return nil, osuapi.ErrNotFound
	}
	return []byte(d), nil
}

// comboService reports the combo as pp so tests can tell the played and FC inputs apart.
type comboService struct{}

func (comboService) PP(_ context.Context, _ model.Mode, in difficulty.Input) (float64, error) {
	return float64(in.Combo), nil
}

type fakeStars struct {
	gotMods []string
	calls   int
}

func (f *fakeStars) Stars(_ context.Context, _ []byte, mods []string) (float64, error) {
	f.calls++
	f.gotMods = mods
	return 5.5, nil
}

func newRecomputer(files *fakeFiles, stars *fakeStars, m *metrics.Metrics) *Recomputer {
	return NewRecomputer(files, difficulty.NewRegistry(comboService{}), stars, m, nil)
}

func failedPlay() Play {
	return Play{
		BeatmapID:  7,
		Mods:       []string{"HD"},
		Combo:      2,
		MaxCombo:   4,
		Statistics: model.Statistics{Count300: 1, CountMiss: 1},
		Failed:     true,
	}
}

func TestRecomputer_FailedStandardPlay(t *testing.T) {
	files := &fakeFiles{data: map[int64]string{7: fourObjects}}
	stars := &fakeStars{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	res, err := newRecomputer(files, stars, m).Compute(context.Background(), failedPlay(), model.ModeOsu)
	require.NoError(t, err)

	require.NotNil(t, res.Stars)
	assert.Equal(t, 5.5, *res.Stars)
	assert.Equal(t, []string{"HD"}, stars.gotMods)
	assert.InDelta(t, 100.0/3, res.Completion, 1e-9)

	assert.Equal(t, 2.0, res.Played.PP)
	assert.Equal(t, 4.0, res.FullCombo.PP)
	assert.InDelta(t, 50, res.Played.Accuracy, 1e-9)
	assert.InDelta(t, 100, res.FullCombo.Accuracy, 1e-9)

	assert.Equal(t, 1, files.calls)
	n, err := testutil.GatherAndCount(reg, "osumetrics_performance_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecomputer_NonStandardHasNoStars(t *testing.T) {
	files := &fakeFiles{data: map[int64]string{7: fourObjects}}
	stars := &fakeStars{}
	play := failedPlay()
	play.Failed = false

	res, err := newRecomputer(files, stars, nil).Compute(context.Background(), play, model.ModeTaiko)
	require.NoError(t, err)
	assert.Nil(t, res.Stars)
	assert.Equal(t, 0, stars.calls)
	assert.Equal(t, 100.0, res.Completion)
}

func TestRecomputer_RefetchesEveryCall(t *testing.T) {
	files := &fakeFiles{data: map[int64]string{7: fourObjects}}
	r := newRecomputer(files, nil, nil)
	for i := 0; i < 2; i++ {
		_, err := r.Compute(context.Background(), failedPlay(), model.ModeOsu)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, files.calls)
}

func TestRecomputer_Errors(t *testing.T) {
	t.Run("unsupported mode", func(t *testing.T) {
		files := &fakeFiles{data: map[int64]string{7: fourObjects}}
		r := NewRecomputer(files, difficulty.Registry{}, nil, nil, nil)
		_, err := r.Compute(context.Background(), failedPlay(), model.ModeMania)
		assert.True(t, errors.Is(err, difficulty.ErrUnsupportedMode))
		assert.Equal(t, 0, files.calls)
	})
	t.Run("missing beatmap", func(t *testing.T) {
		_, err := newRecomputer(&fakeFiles{}, nil, nil).Compute(context.Background(), failedPlay(), model.ModeOsu)
		assert.True(t, errors.Is(err, osuapi.ErrNotFound))
	})
	t.Run("malformed beatmap", func(t *testing.T) {
		files := &fakeFiles{data: map[int64]string{7: "not a beatmap"}}
		_, err := newRecomputer(files, nil, nil).Compute(context.Background(), failedPlay(), model.ModeOsu)
		assert.True(t, errors.Is(err, beatmap.ErrMalformedBeatmap))
	})
	t.Run("single object fail", func(t *testing.T) {
		files := &fakeFiles{data: map[int64]string{7: "osu file format v14\n[HitObjects]\n0,0,500,1\n"}}
		_, err := newRecomputer(files, nil, nil).Compute(context.Background(), failedPlay(), model.ModeOsu)
		assert.True(t, errors.Is(err, beatmap.ErrMalformedBeatmap))
	})
}

type fakeAPI struct {
	user      *model.User
	scores    []model.RecentScore
	meta      *model.BeatmapMeta
	gotOffset int
	gotFails  bool
	gotLimit  int
}

func (f *fakeAPI) GetUser(_ context.Context, user string, _ model.Mode) (*model.User, error) {
	if f.user == nil {
		return nil, osuapi.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeAPI) GetRecentScores(_ context.Context, _ int64, _ model.Mode, limit, offset int, includeFails bool) ([]model.RecentScore, error) {
	f.gotLimit, f.gotOffset, f.gotFails = limit, offset, includeFails
	return f.scores, nil
}

func (f *fakeAPI) GetBeatmap(_ context.Context, id int64) (*model.BeatmapMeta, error) {
	return f.meta, nil
}

func TestService_Recent(t *testing.T) {
	api := &fakeAPI{
		user: &model.User{ID: 2, Username: "peppy"},
		scores: []model.RecentScore{{
			Rank:       "F",
			MaxCombo:   2,
			Mods:       []string{"HD"},
			Statistics: model.Statistics{Count300: 1, CountMiss: 1},
			Beatmap:    model.RecentBeatmap{ID: 7},
		}},
		meta: &model.BeatmapMeta{ID: 7, MaxCombo: 40},
	}
	files := &fakeFiles{data: map[int64]string{7: fourObjects}}
	svc := NewService(api, newRecomputer(files, &fakeStars{}, nil))

	rep, err := svc.Recent(context.Background(), "peppy", model.ModeOsu, RecentOptions{Offset: 3, IncludeFails: true})
	require.NoError(t, err)

	assert.Equal(t, 1, api.gotLimit)
	assert.Equal(t, 3, api.gotOffset)
	assert.True(t, api.gotFails)
	assert.Equal(t, "peppy", rep.User.Username)
	assert.Equal(t, 40, rep.Meta.MaxCombo)
	assert.Equal(t, 40.0, rep.Result.FullCombo.PP)
	assert.InDelta(t, 100.0/3, rep.Result.Completion, 1e-9)
}

func TestService_RecentErrors(t *testing.T) {
	files := &fakeFiles{data: map[int64]string{7: fourObjects}}

	api := &fakeAPI{user: &model.User{ID: 2, Username: "peppy"}}
	_, err := NewService(api, newRecomputer(files, nil, nil)).Recent(context.Background(), "peppy", model.ModeOsu, RecentOptions{})
	assert.True(t, errors.Is(err, ErrNoRecentPlay))

	_, err = NewService(&fakeAPI{}, newRecomputer(files, nil, nil)).Recent(context.Background(), "nobody", model.ModeOsu, RecentOptions{})
	assert.True(t, errors.Is(err, osuapi.ErrNotFound))

	_, err = NewService(api, newRecomputer(files, nil, nil)).Recent(context.Background(), "peppy", model.ModeOsu, RecentOptions{Offset: -1})
	assert.Error(t, err)
}
