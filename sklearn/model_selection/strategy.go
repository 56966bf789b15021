package model_selection

import (
	"fmt"
	"math/rand/v2"
	"runtime"
	"strings"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// Kind selects how candidates are drawn from the grids.
type Kind int

const (
	// ExhaustiveGrid evaluates every combination.
	ExhaustiveGrid Kind = iota
	// RandomizedSample evaluates n_iter combinations drawn without
	// replacement using random_state.
	RandomizedSample
)

func (k Kind) String() string {
	switch k {
	case ExhaustiveGrid:
		return "GridSearchCV"
	case RandomizedSample:
		return "RandomizedSearchCV"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts "GridSearchCV", "grid" or "1" for ExhaustiveGrid and
// "RandomizedSearchCV", "random" or "2" for RandomizedSample, case
// insensitively. The empty string selects ExhaustiveGrid.
func ParseKind(s string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return ExhaustiveGrid, nil
	case v == "1" || strings.Contains(v, "grid"):
		return ExhaustiveGrid, nil
	case v == "2" || strings.Contains(v, "random"):
		return RandomizedSample, nil
	}
	return 0, errors.NewInvalidConfigurationError("ParseKind", "kind",
		"expected GridSearchCV or RandomizedSearchCV", s)
}

// Recognized extra option keys.
const (
	OptionNIter            = "n_iter"
	OptionRandomState      = "random_state"
	OptionNJobs            = "n_jobs"
	OptionReturnTrainScore = "return_train_score"
)

// Options are the parsed extra options of a search.
type Options struct {
	NIter            int
	RandomState      int64
	NJobs            int
	ReturnTrainScore bool
}

// MaxExhaustiveCandidates bounds the candidate list of an exhaustive
// search. Larger spaces need RandomizedSample.
const MaxExhaustiveCandidates = 1 << 20

// DefaultOptions returns n_iter=10, random_state=42, n_jobs=1.
func DefaultOptions() Options {
	return Options{NIter: 10, RandomState: 42, NJobs: 1}
}

// ParseOptions validates extra options for kind. Options that kind ignores,
// including keys no strategy knows, are reported through warn and passed
// through unchanged.
func ParseOptions(op string, kind Kind, extra map[string]interface{}, warn func(error)) (Options, error) {
	opts := DefaultOptions()
	for key, value := range extra {
		var err error
		switch key {
		case OptionNIter:
			opts.NIter, err = intOption(op, key, value)
			if err == nil && opts.NIter < 1 {
				err = errors.NewInvalidConfigurationError(op, key, "must be at least 1", value)
			}
			if kind != RandomizedSample && warn != nil {
				warn(errors.NewUnusedOptionWarning(key, kind.String()))
			}
		case OptionRandomState:
			var seed int
			seed, err = intOption(op, key, value)
			opts.RandomState = int64(seed)
			if kind != RandomizedSample && warn != nil {
				warn(errors.NewUnusedOptionWarning(key, kind.String()))
			}
		case OptionNJobs:
			opts.NJobs, err = intOption(op, key, value)
			if err == nil && opts.NJobs == 0 {
				err = errors.NewInvalidConfigurationError(op, key, "must be positive or -1", value)
			}
		case OptionReturnTrainScore:
			var ok bool
			if opts.ReturnTrainScore, ok = value.(bool); !ok {
				err = errors.NewInvalidConfigurationError(op, key, "expected a boolean", value)
			}
		default:
			if warn != nil {
				warn(errors.NewUnusedOptionWarning(key, kind.String()))
			}
		}
		if err != nil {
			return Options{}, err
		}
	}
	if opts.NJobs < 0 {
		opts.NJobs = runtime.NumCPU()
	}
	return opts, nil
}

func intOption(op, key string, value interface{}) (int, error) {
	n, err := model.IntParam(op, key, value)
	if err != nil {
		return 0, errors.NewInvalidConfigurationError(op, key, "expected an integer", value)
	}
	return n, nil
}

// Strategy draws the candidate list for a search.
type Strategy interface {
	Kind() Kind
	Candidates(grids []Grid) []Params
}

// NewStrategy returns the strategy for kind.
func NewStrategy(kind Kind, opts Options) Strategy {
	if kind == RandomizedSample {
		return randomized{nIter: opts.NIter, seed: uint64(opts.RandomState)}
	}
	return exhaustive{}
}

type exhaustive struct{}

func (exhaustive) Kind() Kind { return ExhaustiveGrid }

func (exhaustive) Candidates(grids []Grid) []Params {
	return Candidates(grids)
}

type randomized struct {
	nIter int
	seed  uint64
}

func (randomized) Kind() Kind { return RandomizedSample }

// Candidates samples min(n_iter, total) distinct combinations without
// enumerating the candidate space. The draw depends only on the seed and
// the grids.
func (r randomized) Candidates(grids []Grid) []Params {
	idx := sampleIndices(rand.New(rand.NewPCG(r.seed, r.seed)), TotalSize(grids), r.nIter)
	out := make([]Params, len(idx))
	for i, j := range idx {
		out[i] = candidateAt(grids, j)
	}
	return out
}

// sampleIndices draws min(k, n) distinct values from [0, n) using Floyd's
// algorithm, then shuffles them so late indices are not biased to the end.
func sampleIndices(rng *rand.Rand, n, k int) []int {
	if k > n {
		k = n
	}
	picked := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := rng.IntN(j + 1)
		if _, dup := picked[t]; dup {
			t = j
		}
		picked[t] = struct{}{}
		out = append(out, t)
	}
	rng.Shuffle(len(out), func(a, b int) { out[a], out[b] = out[b], out[a] })
	return out
}
