package report

import (
	"fmt"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/cognicore/obsetl/pkg/obsetl/record"
)

// Chart file names written by WriteCharts.
const (
	EmotionalChartFile = "score_distribution_emotional.png"
	SocialChartFile    = "score_distribution_social.png"
	AveragesChartFile  = "averages_by_child.png"
)

const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 4 * vg.Inch
)

var barWidth = vg.Points(14)

// WriteCharts renders the score distributions and the per-child averages
// into dir and returns the paths written. The averages chart is skipped
// when there are no summaries.
func WriteCharts(dir string, summaries []Summary, dist Distribution) ([]string, error) {
	var written []string

	for _, c := range []struct {
		file   string
		title  string
		counts [record.MaxScore]int
	}{
		{EmotionalChartFile, "Emotional regulation scores", dist.EmotionalRegulation},
		{SocialChartFile, "Social integration scores", dist.SocialIntegration},
	} {
		p, err := distributionPlot(c.title, c.counts)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, c.file)
		if err := p.Save(chartWidth, chartHeight, path); err != nil {
			return written, fmt.Errorf("save %s: %w", c.file, err)
		}
		written = append(written, path)
	}

	if len(summaries) == 0 {
		return written, nil
	}
	p, err := averagesPlot(summaries)
	if err != nil {
		return written, err
	}
	path := filepath.Join(dir, AveragesChartFile)
	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return written, fmt.Errorf("save %s: %w", AveragesChartFile, err)
	}
	return append(written, path), nil
}

func distributionPlot(title string, counts [record.MaxScore]int) (*plot.Plot, error) {
	values := make(plotter.Values, len(counts))
	labels := make([]string, len(counts))
	for i, n := range counts {
		values[i] = float64(n)
		labels[i] = strconv.Itoa(i + record.MinScore)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Score"
	p.Y.Label.Text = "Sessions"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, barWidth*2)
	if err != nil {
		return nil, fmt.Errorf("distribution chart: %w", err)
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(labels...)
	return p, nil
}

func averagesPlot(summaries []Summary) (*plot.Plot, error) {
	emotional := make(plotter.Values, len(summaries))
	social := make(plotter.Values, len(summaries))
	labels := make([]string, len(summaries))
	for i, s := range summaries {
		emotional[i] = s.MeanEmotionalRegulation
		social[i] = s.MeanSocialIntegration
		labels[i] = s.Identifier
	}

	p := plot.New()
	p.Title.Text = "Average scores by child"
	p.Y.Label.Text = "Mean score"
	p.Y.Min = 0
	p.Y.Max = record.MaxScore

	emotionalBars, err := plotter.NewBarChart(emotional, barWidth)
	if err != nil {
		return nil, fmt.Errorf("averages chart: %w", err)
	}
	emotionalBars.Color = plotutil.Color(0)
	emotionalBars.Offset = -barWidth / 2

	socialBars, err := plotter.NewBarChart(social, barWidth)
	if err != nil {
		return nil, fmt.Errorf("averages chart: %w", err)
	}
	socialBars.Color = plotutil.Color(1)
	socialBars.Offset = barWidth / 2

	p.Add(emotionalBars, socialBars)
	p.Legend.Add("Emotional regulation", emotionalBars)
	p.Legend.Add("Social integration", socialBars)
	p.Legend.Top = true
	p.NominalX(labels...)
	return p, nil
}
