package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

func TestCandidates_Order(t *testing.T) {
	grids := []Grid{
		{"b": {"x", "y"}, "a": {1, 2}},
		{"c": {true}},
	}
	got := Candidates(grids)
	want := []Params{
		{"a": 1, "b": "x"},
		{"a": 1, "b": "y"},
		{"a": 2, "b": "x"},
		{"a": 2, "b": "y"},
		{"c": true},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 5, TotalSize(grids))
	assert.Equal(t, Params{"c": true}, candidateAt(grids, 4))
	assert.Nil(t, candidateAt(grids, 5))
}

func TestGrid_EmptyGridIsDefaults(t *testing.T) {
	got := Candidates([]Grid{{}})
	require.Len(t, got, 1)
	assert.Empty(t, got[0])
}

func TestParams_String(t *testing.T) {
	assert.Equal(t, "{alpha=0.5, kind=l2}", Params{"kind": "l2", "alpha": 0.5}.String())
	assert.Equal(t, "{}", Params{}.String())
}

func TestValidateGrids(t *testing.T) {
	tests := []struct {
		name    string
		grids   []Grid
		wantErr bool
	}{
		{"valid", []Grid{{"a": {1}}}, false},
		{"empty grid", []Grid{{}}, false},
		{"no grids", nil, true},
		{"empty values", []Grid{{"a": {1}}, {"b": {}}}, true},
		{"blank key", []Grid{{" ": {1}}}, true},
		{"grid overflows int", []Grid{{"a": {1}}, wideGrid(7, 1000)}, true},
		{"total overflows int", repeatGrid(wideGrid(6, 1000), 10), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGrids("test", tt.grids)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cfg *errors.InvalidConfigurationError
			assert.True(t, errors.As(err, &cfg))
		})
	}
}

func TestValidateGrids_OverflowNamesGrid(t *testing.T) {
	err := ValidateGrids("test", []Grid{{"a": {1}}, wideGrid(7, 1000)})
	var cfg *errors.InvalidConfigurationError
	require.True(t, errors.As(err, &cfg))
	assert.Equal(t, 1, cfg.GridIndex)
	assert.Equal(t, math.MaxInt, wideGrid(7, 1000).Size())
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", ExhaustiveGrid, false},
		{"GridSearchCV", ExhaustiveGrid, false},
		{"grid", ExhaustiveGrid, false},
		{"1", ExhaustiveGrid, false},
		{"RandomizedSearchCV", RandomizedSample, false},
		{"random", RandomizedSample, false},
		{"2", RandomizedSample, false},
		{"bayes", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "GridSearchCV", ExhaustiveGrid.String())
	assert.Equal(t, "RandomizedSearchCV", RandomizedSample.String())
}

func TestParseOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := ParseOptions("test", ExhaustiveGrid, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultOptions(), opts)
	})

	t.Run("randomized", func(t *testing.T) {
		warn, warnings := collectWarnings()
		opts, err := ParseOptions("test", RandomizedSample, map[string]interface{}{
			"n_iter": 3, "random_state": int64(7), "n_jobs": 2.0, "return_train_score": true,
		}, warn)
		require.NoError(t, err)
		assert.Equal(t, Options{NIter: 3, RandomState: 7, NJobs: 2, ReturnTrainScore: true}, opts)
		assert.Empty(t, *warnings)
	})

	t.Run("unused by grid", func(t *testing.T) {
		warn, warnings := collectWarnings()
		_, err := ParseOptions("test", ExhaustiveGrid, map[string]interface{}{"n_iter": 3}, warn)
		require.NoError(t, err)
		require.Len(t, *warnings, 1)
		var w *errors.UnusedOptionWarning
		assert.True(t, errors.As((*warnings)[0], &w))
	})

	t.Run("unknown key passes through", func(t *testing.T) {
		warn, warnings := collectWarnings()
		opts, err := ParseOptions("test", RandomizedSample, map[string]interface{}{"verbose": 2}, warn)
		require.NoError(t, err)
		assert.Equal(t, DefaultOptions(), opts)
		require.Len(t, *warnings, 1)
		assert.Contains(t, (*warnings)[0].Error(), "verbose")
	})

	t.Run("all cpus", func(t *testing.T) {
		opts, err := ParseOptions("test", ExhaustiveGrid, map[string]interface{}{"n_jobs": -1}, nil)
		require.NoError(t, err)
		assert.Equal(t, runtime.NumCPU(), opts.NJobs)
	})

	bad := []map[string]interface{}{
		{"n_jobs": 0},
		{"n_iter": 0},
		{"n_iter": 2.5},
		{"return_train_score": "yes"},
	}
	for _, extra := range bad {
		_, err := ParseOptions("test", RandomizedSample, extra, nil)
		var cfg *errors.InvalidConfigurationError
		assert.True(t, errors.As(err, &cfg), "%v", extra)
	}
}

func TestRandomizedStrategy(t *testing.T) {
	grids := []Grid{{"a": {1, 2, 3, 4, 5}}}

	first := NewStrategy(RandomizedSample, Options{NIter: 3, RandomState: 11}).Candidates(grids)
	again := NewStrategy(RandomizedSample, Options{NIter: 3, RandomState: 11}).Candidates(grids)
	require.Len(t, first, 3)
	assert.Equal(t, first, again)

	seen := make(map[interface{}]bool)
	for _, p := range first {
		assert.False(t, seen[p["a"]], "duplicate candidate %v", p)
		seen[p["a"]] = true
	}

	all := NewStrategy(RandomizedSample, Options{NIter: 10, RandomState: 11}).Candidates(grids)
	assert.Len(t, all, 5)
	assert.Equal(t, RandomizedSample, NewStrategy(RandomizedSample, DefaultOptions()).Kind())
	assert.Equal(t, ExhaustiveGrid, NewStrategy(ExhaustiveGrid, DefaultOptions()).Kind())
}

func TestRandomizedStrategy_HugeSpace(t *testing.T) {
	grids := []Grid{wideGrid(5, 1000)}
	require.Equal(t, 1000000000000000, TotalSize(grids))

	got := NewStrategy(RandomizedSample, Options{NIter: 3, RandomState: 42}).Candidates(grids)
	require.Len(t, got, 3)
	assert.Equal(t, got, NewStrategy(RandomizedSample, Options{NIter: 3, RandomState: 42}).Candidates(grids))
	seen := make(map[string]bool)
	for _, p := range got {
		assert.Len(t, p, 5)
		assert.False(t, seen[p.String()], "duplicate candidate %v", p)
		seen[p.String()] = true
	}
}

func TestSampleIndices(t *testing.T) {
	for _, k := range []int{0, 1, 7, 20, 50} {
		idx := sampleIndices(rand.New(rand.NewPCG(1, 1)), 20, k)
		want := k
		if want > 20 {
			want = 20
		}
		require.Len(t, idx, want)
		seen := make(map[int]bool)
		for _, i := range idx {
			assert.True(t, i >= 0 && i < 20, "index %d out of range", i)
			assert.False(t, seen[i], "duplicate index %d", i)
			seen[i] = true
		}
	}
}

// wideGrid returns a grid of keys parameters with width values each.
func wideGrid(keys, width int) Grid {
	values := make([]interface{}, width)
	for i := range values {
		values[i] = float64(i)
	}
	g := make(Grid, keys)
	for k := 0; k < keys; k++ {
		g[fmt.Sprintf("p%d", k)] = values
	}
	return g
}

func repeatGrid(g Grid, n int) []Grid {
	out := make([]Grid, n)
	for i := range out {
		out[i] = g
	}
	return out
}
