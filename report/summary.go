// Package report renders aggregate search records for people: a terminal
// summary styled with lipgloss and cv-score box plots drawn with gonum/plot.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	ms "github.com/YuminosukeSato/searchcv/sklearn/model_selection"
)

const columnGap = "  "

// Summary renders one row per entry in record order.
func Summary(record *ms.AggregateRecord, styles Styles) string {
	title := styles.Title.Render("Search " + record.RunID)
	info := strings.Join([]string{
		styles.Label.Render("scoring ") + styles.Value.Render(record.Scoring),
		styles.Label.Render("cv ") + styles.Value.Render(fmt.Sprint(record.CVFolds)),
		styles.Label.Render("kind ") + styles.Value.Render(record.Kind.String()),
	}, styles.Dim.Render("  •  "))

	header := []string{"entry", "best score", "eval mean ± std", "mse", "rows", "best params"}
	rows := make([][]string, 0, len(record.Entries))
	best := bestEntry(record)
	for i, e := range record.Entries {
		row := []string{e.Name, formatScore(e.BestScore), "-", "-", "-", e.BestParams.String()}
		if e.BestScores != nil {
			row[2] = formatScore(e.BestScores.Mean()) + " ± " + formatScore(e.BestScores.Std())
			if e.BestScores.MeanSquaredError != nil {
				row[3] = formatScore(*e.BestScores.MeanSquaredError)
			}
			row[4] = fmt.Sprint(e.BestScores.NSamples)
		}
		if i == best {
			row[0] = "* " + row[0]
		}
		rows = append(rows, row)
	}

	table := renderTable(header, rows, styles, best)
	return lipgloss.JoinVertical(lipgloss.Left, title, info, styles.Panel.Render(table))
}

// Candidates renders the top limit candidates of one entry by rank.
// limit <= 0 shows all of them.
func Candidates(entry *ms.Entry, styles Styles, limit int) string {
	res := entry.CVResults
	order := make([]int, res.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return res.RankTestScore[order[a]] < res.RankTestScore[order[b]]
	})
	if limit > 0 && limit < len(order) {
		order = order[:limit]
	}

	header := []string{"rank", "mean", "std", "fit s", "params"}
	rows := make([][]string, 0, len(order))
	for _, i := range order {
		rows = append(rows, []string{
			fmt.Sprint(res.RankTestScore[i]),
			formatScore(res.MeanTestScore[i]),
			formatScore(res.StdTestScore[i]),
			fmt.Sprintf("%.3f", res.MeanFitTime[i]),
			res.Params[i].String(),
		})
	}
	title := styles.Title.Render(entry.Name) + " " + styles.Label.Render("("+entry.TypeName+")")
	return lipgloss.JoinVertical(lipgloss.Left, title, styles.Panel.Render(renderTable(header, rows, styles, 0)))
}

// bestEntry returns the index of the entry with the highest best score,
// or -1 when no entry has a finite one.
func bestEntry(record *ms.AggregateRecord) int {
	best := -1
	for i, e := range record.Entries {
		if math.IsNaN(e.BestScore) {
			continue
		}
		if best < 0 || e.BestScore > record.Entries[best].BestScore {
			best = i
		}
	}
	return best
}

func renderTable(header []string, rows [][]string, styles Styles, highlight int) string {
	widths := make([]int, len(header))
	for j, h := range header {
		widths[j] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for j, cell := range row {
			if w := lipgloss.Width(cell); w > widths[j] {
				widths[j] = w
			}
		}
	}

	render := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for j, cell := range cells {
			parts[j] = style.Width(widths[j]).Render(cell)
		}
		return strings.TrimRight(strings.Join(parts, columnGap), " ")
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, render(header, styles.Header))
	for i, row := range rows {
		style := styles.Value
		if i == highlight {
			style = styles.Best
		}
		lines = append(lines, render(row, style))
	}
	return strings.Join(lines, "\n")
}

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.4f", v)
}
