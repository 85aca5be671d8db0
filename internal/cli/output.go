package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"gopkg.in/yaml.v3"

	"github.com/anime-shed/image-quality-engine/pkg/models"
	"github.com/anime-shed/image-quality-engine/pkg/validation"
)

// Output formats accepted by --output.
const (
	OutputJSON  = "json"
	OutputYAML  = "yaml"
	OutputTable = "table"
)

var (
	excellentColor = color.New(color.FgGreen, color.Bold)
	goodColor      = color.New(color.FgGreen)
	fairColor      = color.New(color.FgYellow)
	poorColor      = color.New(color.FgMagenta, color.Bold)
	rejectedColor  = color.New(color.FgRed, color.Bold)
)

func validOutput(format string) bool {
	switch format {
	case OutputJSON, OutputYAML, OutputTable:
		return true
	}
	return false
}

// coloredLevel renders level in its traffic-light color. Colors switch off
// automatically when stdout is not a terminal.
func coloredLevel(level models.QualityLevel) string {
	var c *color.Color
	switch level {
	case models.LevelExcellent:
		c = excellentColor
	case models.LevelGood:
		c = goodColor
	case models.LevelFair:
		c = fairColor
	case models.LevelPoor:
		c = poorColor
	default:
		c = rejectedColor
	}
	return c.Sprint(strings.ToUpper(level.String()))
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func writeResult(w io.Writer, format string, r *models.AnalysisResult) error {
	if format != OutputTable {
		return encode(w, format, r)
	}

	if _, err := fmt.Fprintf(w, "%s  %dx%d  profile=%s  overall=%s (%.2f)\n",
		r.Source, r.Width, r.Height, r.Profile, coloredLevel(r.OverallLevel), r.OverallScore); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Metric", "Value", "Level"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, m := range models.AllMetrics {
		data = append(data, []string{
			m.String(),
			strconv.FormatFloat(r.Scores.Get(m), 'f', 2, 64),
			coloredLevel(r.Levels.Get(m)),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	qv := validation.NewQualityValidator()
	if len(r.IssuesDetected) > 0 {
		heading := fairColor.Sprint("Warnings:")
		if qv.HasCriticalIssues(r.IssuesDetected) {
			heading = rejectedColor.Sprint("Blocking issues:")
		}
		if err := writeList(w, heading, qv.ConvertIssuesToMessages(r.IssuesDetected)); err != nil {
			return err
		}
	}
	if len(r.Recommendations) > 0 {
		return writeList(w, "Recommendations:", r.Recommendations)
	}
	return nil
}

func writeList(w io.Writer, heading string, items []string) error {
	if _, err := fmt.Fprintln(w, heading); err != nil {
		return err
	}
	for _, item := range items {
		if _, err := fmt.Fprintf(w, "  - %s\n", item); err != nil {
			return err
		}
	}
	return nil
}

func writeBatch(w io.Writer, format string, out *models.BatchOutcome) error {
	if format != OutputTable {
		return encode(w, format, out)
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Source", "Level", "Score", "Issues", "Error"})

	var data [][]string
	for _, item := range out.Items {
		row := []string{strconv.Itoa(item.Index), item.Source}
		if item.Succeeded() {
			row = append(row,
				coloredLevel(item.Result.OverallLevel),
				strconv.FormatFloat(item.Result.OverallScore, 'f', 2, 64),
				strconv.Itoa(len(item.Result.IssuesDetected)),
				"",
			)
		} else {
			row = append(row, "", "", "", rejectedColor.Sprint(item.Error.Kind))
		}
		data = append(data, row)
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	s := out.Statistics
	_, err := fmt.Fprintf(w, "%d images: %d succeeded, %d failed, mean score %.2f, %.2fs\n",
		s.Total, s.Successful, s.Failed, s.MeanOverallScore, out.ProcessingTime)
	return err
}
