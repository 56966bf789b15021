package model_selection

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// Params is one hyperparameter combination.
type Params map[string]interface{}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders p as {a=1, b=x} with sorted keys.
func (p Params) String() string {
	parts := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Grid maps each hyperparameter to its candidate values. A search takes a
// list of grids; the candidate space is the union of each grid's product.
type Grid map[string][]interface{}

// Keys returns the grid's parameter names in sorted order.
func (g Grid) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the number of combinations in g. An empty grid has one
// combination: the estimator's defaults. Size saturates at math.MaxInt;
// ValidateGrids rejects grids that large.
func (g Grid) Size() int {
	n, _ := g.size()
	return n
}

func (g Grid) size() (int, bool) {
	n := 1
	for _, values := range g {
		if len(values) == 0 {
			return 0, true
		}
		if n > math.MaxInt/len(values) {
			return math.MaxInt, false
		}
		n *= len(values)
	}
	return n, true
}

// Clone returns a copy of g with copied value lists.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for k, v := range g {
		out[k] = append([]interface{}(nil), v...)
	}
	return out
}

// ValidateGrids checks a grid list before any fitting happens.
func ValidateGrids(op string, grids []Grid) error {
	if len(grids) == 0 {
		return errors.NewInvalidConfigurationError(op, "grid", "at least one parameter grid is required", nil)
	}
	for i, g := range grids {
		for _, key := range g.Keys() {
			if strings.TrimSpace(key) == "" {
				return errors.NewInvalidGridError(op, i, key, "parameter name is empty")
			}
			if len(g[key]) == 0 {
				return errors.NewInvalidGridError(op, i, key, "no candidate values")
			}
		}
		if _, ok := g.size(); !ok {
			return errors.NewInvalidGridError(op, i, "grid", "candidate space overflows int")
		}
	}
	if _, ok := totalSize(grids); !ok {
		return errors.NewInvalidConfigurationError(op, "grid", "candidate space overflows int", nil)
	}
	return nil
}

// TotalSize returns the number of candidates across grids, saturating at
// math.MaxInt.
func TotalSize(grids []Grid) int {
	n, _ := totalSize(grids)
	return n
}

func totalSize(grids []Grid) (int, bool) {
	n := 0
	for _, g := range grids {
		size, ok := g.size()
		if !ok || n > math.MaxInt-size {
			return math.MaxInt, false
		}
		n += size
	}
	return n, true
}

// Candidates enumerates every combination of every grid, grid by grid.
// Within a grid keys are sorted and the last key varies fastest.
func Candidates(grids []Grid) []Params {
	out := make([]Params, 0, TotalSize(grids))
	for _, g := range grids {
		for i := 0; i < g.Size(); i++ {
			out = append(out, g.At(i))
		}
	}
	return out
}

// At returns the i-th combination of g in enumeration order.
func (g Grid) At(i int) Params {
	keys := g.Keys()
	p := make(Params, len(keys))
	for k := len(keys) - 1; k >= 0; k-- {
		values := g[keys[k]]
		p[keys[k]] = values[i%len(values)]
		i /= len(values)
	}
	return p
}

// candidateAt maps a global candidate index onto the grid list.
func candidateAt(grids []Grid, i int) Params {
	for _, g := range grids {
		n := g.Size()
		if i < n {
			return g.At(i)
		}
		i -= n
	}
	return nil
}
