// Package dataset reads numeric CSV tables into gonum matrices.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// Options control how a table is parsed.
type Options struct {
	// Target names the label column. Empty selects the last column.
	Target string
	Header bool
	Comma  rune
}

// Dataset is a feature matrix with its target column.
type Dataset struct {
	X        *mat.Dense
	Y        *mat.Dense
	Features []string
	Target   string
}

// Rows returns the number of samples.
func (d *Dataset) Rows() int {
	r, _ := d.X.Dims()
	return r
}

// Load opens path and parses it with Read.
func Load(path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	ds, err := Read(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "read dataset %s", path)
	}
	return ds, nil
}

// Read parses a CSV table. Every cell must be a float. Without a header
// columns are named x0, x1, ... so Target may refer to them that way.
func Read(r io.Reader, opts Options) (*Dataset, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}

	var header []string
	if opts.Header {
		if len(records) == 0 {
			return nil, errors.NewValueError("dataset.Read", "missing header row")
		}
		header, records = records[0], records[1:]
	}
	if len(records) == 0 {
		return nil, errors.NewValueError("dataset.Read", "no data rows")
	}

	cols := len(records[0])
	if cols < 2 {
		return nil, errors.NewValueError("dataset.Read", "need at least one feature and a target column")
	}
	if header == nil {
		header = make([]string, cols)
		for j := range header {
			header[j] = "x" + strconv.Itoa(j)
		}
	}

	target, err := targetIndex(header, opts.Target)
	if err != nil {
		return nil, err
	}

	rows := len(records)
	X := mat.NewDense(rows, cols-1, nil)
	y := mat.NewDense(rows, 1, nil)
	for i, rec := range records {
		k := 0
		for j, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.NewValueError("dataset.Read",
					"row "+strconv.Itoa(i+1)+" column "+header[j]+": not a number: "+strconv.Quote(cell))
			}
			if j == target {
				y.Set(i, 0, v)
				continue
			}
			X.Set(i, k, v)
			k++
		}
	}

	features := make([]string, 0, cols-1)
	for j, name := range header {
		if j != target {
			features = append(features, name)
		}
	}
	return &Dataset{X: X, Y: y, Features: features, Target: header[target]}, nil
}

func targetIndex(header []string, target string) (int, error) {
	if target == "" {
		return len(header) - 1, nil
	}
	for j, name := range header {
		if name == target {
			return j, nil
		}
	}
	return 0, errors.NewInvalidConfigurationError("dataset.Read", "target", "column not found", target)
}
