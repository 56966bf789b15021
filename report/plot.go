package report

import (
	"io"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
	ms "github.com/YuminosukeSato/searchcv/sklearn/model_selection"
)

// Plot size per entry and the fixed height.
var (
	boxSpacing = 2 * vg.Centimeter
	plotHeight = 10 * vg.Centimeter
)

// CVScores returns the fold scores plotted for an entry: the re-evaluation
// scores when present, otherwise the split scores of the best candidate.
// NaN folds are dropped.
func CVScores(e *ms.Entry) []float64 {
	var scores []float64
	switch {
	case e.BestScores != nil && len(e.BestScores.CVScores) > 0:
		scores = e.BestScores.CVScores
	default:
		for i, rank := range e.CVResults.RankTestScore {
			if rank == 1 {
				scores = e.CVResults.SplitTestScores[i]
				break
			}
		}
	}
	out := make([]float64, 0, len(scores))
	for _, s := range scores {
		if !math.IsNaN(s) {
			out = append(out, s)
		}
	}
	return out
}

// NewCVScoresPlot builds a box plot with one box per entry.
func NewCVScoresPlot(record *ms.AggregateRecord) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Cross-validation scores"
	p.Y.Label.Text = record.Scoring

	names := make([]string, 0, len(record.Entries))
	for i, e := range record.Entries {
		scores := CVScores(e)
		if len(scores) == 0 {
			return nil, errors.NewValueError("report.NewCVScoresPlot", "entry "+e.Name+" has no finite cv scores")
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(i), plotter.Values(scores))
		if err != nil {
			return nil, errors.Wrapf(err, "box plot for %s", e.Name)
		}
		p.Add(box)
		names = append(names, e.Name)
	}
	if len(names) == 0 {
		return nil, errors.NewValueError("report.NewCVScoresPlot", "record has no entries")
	}
	p.NominalX(names...)
	return p, nil
}

// PlotCVScores draws the box plot into path. The image format follows the
// file extension (png, svg, pdf, ...).
func PlotCVScores(record *ms.AggregateRecord, path string) error {
	p, err := NewCVScoresPlot(record)
	if err != nil {
		return err
	}
	if err := p.Save(plotWidth(len(record.Entries)), plotHeight, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}

// WriteCVScores writes the box plot to w in format, e.g. "svg".
func WriteCVScores(record *ms.AggregateRecord, w io.Writer, format string) error {
	p, err := NewCVScoresPlot(record)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth(len(record.Entries)), plotHeight, strings.TrimPrefix(format, "."))
	if err != nil {
		return errors.Wrapf(err, "plot format %s", format)
	}
	_, err = wt.WriteTo(w)
	return err
}

// DefaultPlotPath derives the image path from a results file path.
func DefaultPlotPath(resultsPath string) string {
	return strings.TrimSuffix(resultsPath, filepath.Ext(resultsPath)) + ".png"
}

func plotWidth(entries int) vg.Length {
	w := vg.Length(entries+1) * boxSpacing
	if w < 8*vg.Centimeter {
		w = 8 * vg.Centimeter
	}
	return w
}
