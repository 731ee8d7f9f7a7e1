package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"refweaver/internal/config"
	"refweaver/internal/models"

	"github.com/fatih/color"
)

// Generator handles formatting and displaying run results
type Generator struct {
	format string
	config *config.Config
}

// NewGenerator creates a new report generator
func NewGenerator(format string) *Generator {
	return &Generator{
		format: format,
		config: config.DefaultConfig(),
	}
}

func NewGeneratorWithConfig(cfg *config.Config) *Generator {
	return &Generator{
		format: cfg.Output.Format,
		config: cfg,
	}
}

// Generate creates a formatted report from a run result
func (r *Generator) Generate(result *models.RunResult) string {
	switch r.format {
	case "json":
		return r.generateJSON(result)
	default:
		return r.generateConsole(result)
	}
}

// generateJSON creates a JSON report
func (r *Generator) generateJSON(result *models.RunResult) string {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error generating JSON report: %v", err)
	}
	return string(data) + "\n"
}

// generateConsole creates a colorized console report
func (r *Generator) generateConsole(result *models.RunResult) string {
	var report strings.Builder

	useColors := true
	verbose := false
	showSuggestions := true

	if r.config != nil {
		useColors = r.config.Output.Colors
		verbose = r.config.Output.Verbose
		showSuggestions = r.config.Output.ShowSuggestions
	}

	// Header
	title := fmt.Sprintf("refweaver %s", result.Command)
	if result.DryRun {
		title += " (dry run)"
	}
	if useColors {
		report.WriteString(color.CyanString("%s\n", title))
		report.WriteString(color.WhiteString("═══════════════════════════════════════\n\n"))
	} else {
		report.WriteString(title + "\n")
		report.WriteString("=======================================\n\n")
	}

	if verbose && r.config != nil {
		r.writeConfigInfo(&report, useColors)
	}

	r.writeSummary(&report, result, useColors)

	if verbose {
		r.writePasses(&report, result, useColors)
	}

	if len(result.Findings) > 0 {
		r.writeFindingsSummary(&report, result, useColors)
		report.WriteString("\n")
		r.writeDetailedFindings(&report, result, useColors, showSuggestions)
	} else if useColors {
		report.WriteString(color.GreenString("No findings.\n\n"))
	} else {
		report.WriteString("No findings.\n\n")
	}

	// Footer
	if useColors {
		report.WriteString(color.WhiteString("Completed in %s\n", result.Duration))
	} else {
		report.WriteString(fmt.Sprintf("Completed in %s\n", result.Duration))
	}

	return report.String()
}

// getSeverityDisplay returns a marker and color function for a severity level
func (r *Generator) getSeverityDisplay(severity string) (string, func(a ...interface{}) string) {
	switch severity {
	case "CRITICAL":
		return "!!", color.New(color.FgRed, color.Bold).SprintFunc()
	case "HIGH":
		return "x ", color.New(color.FgRed).SprintFunc()
	case "MEDIUM":
		return "! ", color.New(color.FgYellow).SprintFunc()
	case "LOW":
		return "i ", color.New(color.FgBlue).SprintFunc()
	default:
		return "? ", color.New(color.FgWhite).SprintFunc()
	}
}

func (r *Generator) writeConfigInfo(report *strings.Builder, useColors bool) {
	rc := r.config.RefCount
	names := fmt.Sprintf("%s: %s/%s, %s/%s, hook %s, wrapper %s.%s",
		rc.Marker, rc.Retain, rc.Release, rc.RetainAll, rc.ReleaseAll, rc.Hook, rc.Wrapper, rc.Wrap)
	iters := fmt.Sprintf("%d", r.config.Pipeline.MaxIterations)
	if useColors {
		report.WriteString(color.WhiteString("Configuration:\n"))
		report.WriteString(fmt.Sprintf("   Runtime: %s\n", color.CyanString(names)))
		report.WriteString(fmt.Sprintf("   Max iterations: %s\n", color.CyanString(iters)))
	} else {
		report.WriteString("Configuration:\n")
		report.WriteString(fmt.Sprintf("   Runtime: %s\n", names))
		report.WriteString(fmt.Sprintf("   Max iterations: %s\n", iters))
	}
	report.WriteString("\n")
}

func (r *Generator) writeSummary(report *strings.Builder, result *models.RunResult, useColors bool) {
	if useColors {
		report.WriteString(color.WhiteString("Summary:\n"))
	} else {
		report.WriteString("Summary:\n")
	}
	changed := "Files changed"
	if result.DryRun {
		changed = "Files that would change"
	}
	report.WriteString(fmt.Sprintf("   Files processed: %d\n", len(result.Files)))
	report.WriteString(fmt.Sprintf("   %s: %d\n", changed, len(result.FilesChanged)))
	report.WriteString(fmt.Sprintf("   Findings: %d\n", result.TotalFindings))
	for _, f := range result.FilesChanged {
		if useColors {
			report.WriteString(color.GreenString("     ~ %s\n", f))
		} else {
			report.WriteString(fmt.Sprintf("     ~ %s\n", f))
		}
	}
	report.WriteString("\n")
}

func (r *Generator) writePasses(report *strings.Builder, result *models.RunResult, useColors bool) {
	if len(result.Passes) == 0 {
		return
	}
	if useColors {
		report.WriteString(color.WhiteString("Passes:\n"))
	} else {
		report.WriteString("Passes:\n")
	}
	for _, p := range result.Passes {
		line := fmt.Sprintf("   %-10s #%d %-18s changed %d\n", p.Stage, p.Iteration, p.Pass, p.Changed)
		if useColors && p.Changed > 0 {
			line = color.YellowString(line)
		}
		report.WriteString(line)
	}
	report.WriteString("\n")
}

func (r *Generator) writeFindingsSummary(report *strings.Builder, result *models.RunResult, useColors bool) {
	if useColors {
		report.WriteString(color.WhiteString("Findings by Severity:\n"))
	} else {
		report.WriteString("Findings by Severity:\n")
	}

	severities := []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"}
	for _, severity := range severities {
		count := result.FindingsBySeverity[severity]
		if count > 0 {
			if useColors {
				marker, colorFunc := r.getSeverityDisplay(severity)
				countText := colorFunc(fmt.Sprintf("%d", count))
				report.WriteString(fmt.Sprintf("   %s %s: %s\n", marker, severity, countText))
			} else {
				report.WriteString(fmt.Sprintf("   %s: %d\n", severity, count))
			}
		}
	}
}

func (r *Generator) writeDetailedFindings(report *strings.Builder, result *models.RunResult, useColors, showSuggestions bool) {
	if useColors {
		report.WriteString(color.WhiteString("Details:\n"))
	} else {
		report.WriteString("Details:\n")
	}
	report.WriteString(strings.Repeat("─", 50) + "\n\n")

	// most severe first, position order within a severity
	sorted := make([]models.Finding, len(result.Findings))
	copy(sorted, result.Findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity > sorted[j].Severity
	})

	for i, f := range sorted {
		r.writeFinding(report, f, i+1, useColors, showSuggestions)
		report.WriteString("\n")
	}
}

// suggestionFor returns the advice shown when a finding carries none.
func suggestionFor(k models.Kind) string {
	switch k {
	case models.KindUnresolved:
		return "Add the declaring sources to source_roots or classpath in refweaver.toml."
	case models.KindUnsupported:
		return "Rewrite the statement into a plain assignment or call, or manage the reference by hand."
	case models.KindAnonymousCapture:
		return "Replace the anonymous class with a lambda, or retain the captured reference explicitly."
	case models.KindPlainOwner, models.KindInstrumentFailure:
		return "Make the owning class reference counted so its teardown hook can release the field."
	case models.KindMissingSupport, models.KindMissingRetain, models.KindMissingRelease,
		models.KindMissingExchange, models.KindUnwrappedCapture:
		return "Run 'refweaver insert' to bring the instrumentation up to date."
	}
	return ""
}

func (r *Generator) writeFinding(report *strings.Builder, f models.Finding, index int, useColors, showSuggestions bool) {
	suggestion := f.Suggestion
	if suggestion == "" {
		suggestion = suggestionFor(f.Kind)
	}
	if useColors {
		marker, severityColor := r.getSeverityDisplay(f.Severity.String())

		report.WriteString(fmt.Sprintf("%s #%d - %s %s\n",
			marker, index, severityColor(f.Severity.String()),
			color.WhiteString(strings.ToUpper(string(f.Kind)))))

		report.WriteString(color.CyanString("   Location: %s:%d:%d", f.File, f.Line, f.Column))
		if f.Binding != "" {
			report.WriteString(color.CyanString(" (%s)", f.Binding))
		}
		report.WriteString("\n")

		report.WriteString(color.WhiteString("   %s\n", f.Message))

		if showSuggestions && suggestion != "" {
			report.WriteString(color.GreenString("   Suggestion: %s\n", suggestion))
		}
		return
	}

	report.WriteString(fmt.Sprintf("#%d - %s %s\n", index, f.Severity.String(), strings.ToUpper(string(f.Kind))))
	report.WriteString(fmt.Sprintf("   Location: %s:%d:%d", f.File, f.Line, f.Column))
	if f.Binding != "" {
		report.WriteString(fmt.Sprintf(" (%s)", f.Binding))
	}
	report.WriteString("\n")
	report.WriteString(fmt.Sprintf("   %s\n", f.Message))
	if showSuggestions && suggestion != "" {
		report.WriteString(fmt.Sprintf("   Suggestion: %s\n", suggestion))
	}
}
