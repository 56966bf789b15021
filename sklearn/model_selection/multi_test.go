package model_selection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
	"github.com/YuminosukeSato/searchcv/pkg/log"
)

type failingStore struct{ saves int }

func (s *failingStore) Save(*AggregateRecord, string) (string, error) {
	s.saves++
	return "", errors.New("disk full")
}

func (s *failingStore) Load(string) (*AggregateRecord, error) {
	return nil, errors.New("not implemented")
}

func abConfig() MultiSearchConfig {
	return MultiSearchConfig{
		Estimators: []interface{}{model.Factory(newStubA), model.Factory(newStubB)},
		Grids: [][]Grid{
			{{"x": {1.0, 2.0}}},
			{{"x": {10.0}}},
		},
		CVFolds: 4,
		Scoring: "accuracy",
	}
}

func TestMultiSearch_TwoEstimators(t *testing.T) {
	X, y := onesData(8)
	logger := log.NewTestLogger(log.LevelInfo)
	record, err := NewMultiSearch(abConfig(), WithLogger(logger)).Run(X, y)
	require.NoError(t, err)

	assert.NotEmpty(t, record.RunID)
	assert.Equal(t, []string{"stubA", "stubB"}, record.Names())
	assert.Equal(t, "accuracy", record.Scoring)
	assert.Equal(t, 4, record.CVFolds)
	assert.Equal(t, ExhaustiveGrid, record.Kind)

	a, ok := record.Get("stubA")
	require.True(t, ok)
	assert.Equal(t, "stubA", a.TypeName)
	assert.Equal(t, Params{"x": 1.0}, a.BestParams)
	assert.Equal(t, 1.0, a.BestScore)
	assert.Equal(t, 2, a.CVResults.Len())
	assert.Equal(t, []int{1, 2}, a.CVResults.RankTestScore)
	assert.Equal(t, []Grid{{"x": {1.0, 2.0}}}, a.GridParams)
	assert.Equal(t, "accuracy", a.Scoring)

	require.NotNil(t, a.BestScores)
	assert.Equal(t, []float64{1, 1, 1, 1}, a.BestScores.CVScores)
	assert.Equal(t, 8, a.BestScores.NSamples)
	assert.Nil(t, a.BestScores.MeanSquaredError)
	assert.Equal(t, 8, a.BestEstimator.(*stubA).lastFitRows())

	b, ok := record.Get("stubB")
	require.True(t, ok)
	assert.Equal(t, Params{"x": 10.0}, b.BestParams)
	assert.Equal(t, 0.0, b.BestScore)

	_, ok = record.Get("stubC")
	assert.False(t, ok)
	assert.Equal(t, 2, logger.Count("Entry completed"))
	assert.True(t, logger.ContainsField(log.RunIDKey, record.RunID))
}

func TestMultiSearch_DefaultFolds(t *testing.T) {
	X, y := onesData(14)
	cfg := abConfig()
	cfg.CVFolds = 0
	record, err := NewMultiSearch(cfg).Run(X, y)
	require.NoError(t, err)
	assert.Equal(t, DefaultMultiCVFolds, record.CVFolds)

	a, _ := record.Get("stubA")
	assert.Len(t, a.CVResults.SplitTestScores[0], DefaultMultiCVFolds)
	assert.Len(t, a.BestScores.CVScores, DefaultMultiCVFolds)
}

func TestMultiSearch_DuplicateTypes(t *testing.T) {
	X, y := onesData(8)
	cfg := abConfig()
	cfg.Estimators = append(cfg.Estimators, model.Factory(newStubA))
	cfg.Grids = append(cfg.Grids, []Grid{{"x": {2.0}}})

	record, err := NewMultiSearch(cfg).Run(X, y)
	require.NoError(t, err)
	assert.Equal(t, []string{"stubA_0", "stubB", "stubA_2"}, record.Names())

	last, ok := record.Get("stubA_2")
	require.True(t, ok)
	assert.Equal(t, "stubA", last.TypeName)
	assert.Equal(t, Params{"x": 2.0}, last.BestParams)
}

func TestMultiSearch_UnusedOptionWarnsOnce(t *testing.T) {
	X, y := onesData(8)
	cfg := abConfig()
	cfg.ExtraOptions = map[string]interface{}{"verbose": 2}
	warn, got := collectWarnings()

	record, err := NewMultiSearch(cfg, WithWarningHandler(warn)).Run(X, y)
	require.NoError(t, err)
	require.Len(t, *got, 1)
	var unused *errors.UnusedOptionWarning
	require.True(t, errors.As((*got)[0], &unused))
	assert.Equal(t, "verbose", unused.Option)

	a, _ := record.Get("stubA")
	assert.Equal(t, map[string]interface{}{"verbose": 2}, a.ExtraOptions)
}

func TestMultiSearch_LengthMismatch(t *testing.T) {
	X, y := onesData(8)
	first, second := &stubA{}, &stubB{}
	_, err := NewMultiSearch(MultiSearchConfig{
		Estimators: []interface{}{first, second},
		Grids:      [][]Grid{{{"x": {1.0}}}},
		Scoring:    "accuracy",
	}).Run(X, y)

	var cfg *errors.InvalidConfigurationError
	require.True(t, errors.As(err, &cfg))
	assert.Contains(t, err.Error(), "2 estimators and 1 grids")
	assert.Zero(t, first.fitCount())
	assert.Zero(t, second.fitCount())
}

func TestMultiSearch_ValidatesEveryPairFirst(t *testing.T) {
	X, y := onesData(8)
	first := &stubA{}
	_, err := NewMultiSearch(MultiSearchConfig{
		Estimators: []interface{}{first, predictOnly{}},
		Grids:      [][]Grid{{{"x": {1.0}}}, {{}}},
		Scoring:    "accuracy",
	}).Run(X, y)

	var estErr *errors.EstimatorError
	require.True(t, errors.As(err, &estErr))
	assert.Zero(t, first.fitCount())
}

func TestMultiSearch_FailureAbortsWithoutSaving(t *testing.T) {
	X, y := onesData(8)
	dir := t.TempDir()
	_, err := NewMultiSearch(MultiSearchConfig{
		Estimators: []interface{}{model.Factory(newStubA), brokenModel{}},
		Grids:      [][]Grid{{{"x": {1.0}}}, {{}}},
		CVFolds:    2,
		Scoring:    "accuracy",
		SaveJob:    true,
	}, WithStore(NewFileStore(dir))).Run(X, y)

	var searchErr *errors.SearchError
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, "brokenModel", searchErr.Estimator)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMultiSearch_SaveAndLoad(t *testing.T) {
	X, y := onesData(8)
	dir := t.TempDir()
	store := NewFileStore(dir)
	cfg := abConfig()
	cfg.SaveJob = true

	record, err := NewMultiSearch(cfg, WithStore(store)).Run(X, y)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "stubA__stubB.results"))

	loaded, err := store.Load("stubA__stubB.results")
	require.NoError(t, err)
	assert.Equal(t, record.RunID, loaded.RunID)
	assert.Equal(t, record.Names(), loaded.Names())
	assert.True(t, record.CreatedAt.Equal(loaded.CreatedAt))

	for _, name := range record.Names() {
		want, _ := record.Get(name)
		got, ok := loaded.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want.BestParams, got.BestParams)
		assert.Equal(t, want.BestScore, got.BestScore)
		assert.Equal(t, want.GridParams, got.GridParams)
		assert.Equal(t, want.CVResults.MeanTestScore, got.CVResults.MeanTestScore)
		assert.Equal(t, want.CVResults.RankTestScore, got.CVResults.RankTestScore)
		assert.Equal(t, want.BestScores.CVScores, got.BestScores.CVScores)
	}

	a, _ := loaded.Get("stubA")
	require.IsType(t, &stubA{}, a.BestEstimator)
	assert.Equal(t, 1.0, a.BestEstimator.(*stubA).value)

	// stubB is not registered, so only its estimator is lost.
	b, _ := loaded.Get("stubB")
	assert.Nil(t, b.BestEstimator)
	assert.Equal(t, Params{"x": 10.0}, b.BestParams)
}

func TestMultiSearch_SaveFailureKeepsRecord(t *testing.T) {
	X, y := onesData(8)
	store := &failingStore{}
	cfg := abConfig()
	cfg.SaveJob = true

	record, err := NewMultiSearch(cfg, WithStore(store)).Run(X, y)
	require.Error(t, err)
	require.NotNil(t, record)
	assert.Len(t, record.Entries, 2)
	assert.Equal(t, 1, store.saves)
}

func TestMultiSearch_NoSaveByDefault(t *testing.T) {
	X, y := onesData(8)
	store := &failingStore{}
	_, err := NewMultiSearch(abConfig(), WithStore(store)).Run(X, y)
	require.NoError(t, err)
	assert.Zero(t, store.saves)
}
