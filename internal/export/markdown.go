package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "aqicli/internal/errors"
	"aqicli/pkg/contracts/domain"
)

// MarkdownWriter renders the validation report as a human-readable summary.
type MarkdownWriter struct {
	logger *slog.Logger
}

// NewMarkdownWriter creates a Markdown report writer.
func NewMarkdownWriter(logger *slog.Logger) *MarkdownWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkdownWriter{logger: logger}
}

// Write renders the report and writes it to path.
func (w *MarkdownWriter) Write(ctx context.Context, path string, report *domain.ValidationReport) error {
	if report == nil {
		return apperrors.NewConfigurationError("cannot render a nil report", nil)
	}
	start := time.Now()

	content := w.Render(report)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("create directory for "+path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return apperrors.NewStorageError("write "+path, err)
	}

	w.logger.InfoContext(ctx, "markdown report written",
		"path", path,
		"bytes", len(content),
		"duration", time.Since(start))
	return nil
}

// Render returns the Markdown document for a report. Sections without rows
// are omitted.
func (w *MarkdownWriter) Render(report *domain.ValidationReport) string {
	var b strings.Builder

	b.WriteString("# Air quality model validation\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", report.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Cities: %s\n", strings.Join(report.Cities, ", "))
	fmt.Fprintf(&b, "- Horizons: %s\n", joinHorizons(report.Horizons))
	fmt.Fprintf(&b, "- Units: %d evaluated, %d failed\n", report.UnitsTotal, report.UnitsFailed)

	b.WriteString("\n## Model ranking\n\n")
	if len(report.Rankings) == 0 {
		b.WriteString("No model produced enough scorable units to rank.\n")
	} else {
		b.WriteString("| Rank | Model | Score | Multi-city R^2 | Forecast RMSE | Cross-city variance |\n")
		b.WriteString("|---:|:---|---:|---:|---:|---:|\n")
		for _, r := range report.Rankings {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
				r.Rank, r.ModelID, formatMetric(r.Score), formatMetric(r.MultiCityR2),
				formatMetric(r.ForecastRMSE), formatMetric(r.CrossCityVariance))
		}
	}

	if len(report.Benchmarks) > 0 {
		b.WriteString("\n## Published baselines\n\n")
		b.WriteString("| Model | City | Baseline RMSE | Model RMSE | Improvement | Source |\n")
		b.WriteString("|:---|:---|---:|---:|---:|:---|\n")
		for _, cmp := range report.Benchmarks {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				cmp.ModelID, cmp.City, formatMetric(cmp.BaselineRMSE),
				formatMetric(cmp.ModelRMSE), formatPercent(cmp.Improvement), cmp.Source)
		}
	}

	if len(report.GroundTruth) > 0 {
		b.WriteString("\n## Ground truth\n\n")
		b.WriteString("| Model | City | Matched | Unmatched | RMSE | MAE |\n")
		b.WriteString("|:---|:---|---:|---:|---:|---:|\n")
		for _, gt := range report.GroundTruth {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %s | %s |\n",
				gt.ModelID, gt.City, gt.MatchedRows, gt.UnmatchedRows,
				formatMetric(gt.Metrics.RMSE), formatMetric(gt.Metrics.MAE))
		}
	}

	if len(report.Transfers) > 0 {
		b.WriteString("\n## Cross-city transfer\n\n")
		b.WriteString("| Model | From | To | R^2 | Same-city R^2 | Degradation |\n")
		b.WriteString("|:---|:---|:---|---:|---:|---:|\n")
		for _, tr := range report.Transfers {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				tr.ModelID, tr.FromCity, tr.ToCity, formatMetric(tr.Metrics.R2),
				formatMetric(tr.SameCityR2), formatMetric(tr.Degradation))
		}
	}

	if report.UnitsFailed > 0 {
		b.WriteString("\n## Failed units\n\n")
		b.WriteString("| Section | Model | City | Horizon | Error |\n")
		b.WriteString("|:---|:---|:---|---:|:---|\n")
		writeFailed := func(section string, results []domain.ValidationResult) {
			for _, res := range results {
				if !res.Failed() {
					continue
				}
				fmt.Fprintf(&b, "| %s | %s | %s | %dh | %s |\n",
					section, res.ModelID, res.City, res.HorizonHours,
					strings.ReplaceAll(res.Err, "|", "\\|"))
			}
		}
		writeFailed("holdout", report.Holdout)
		writeFailed("forecast", report.Forecast)
	}

	return b.String()
}

func joinHorizons(horizons []int) string {
	if len(horizons) == 0 {
		return "none"
	}
	parts := make([]string, len(horizons))
	for i, h := range horizons {
		parts[i] = fmt.Sprintf("%dh", h)
	}
	return strings.Join(parts, ", ")
}
