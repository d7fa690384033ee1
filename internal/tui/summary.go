// Package tui renders run results for terminals.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/slipway-io/slipway/kube"
	"github.com/slipway-io/slipway/pipeline"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5a5a70"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	stageColumn  = lipgloss.NewStyle().Width(22)
)

func statusGlyph(s pipeline.Status) string {
	switch s {
	case pipeline.StatusSucceeded:
		return successStyle.Render("✓")
	case pipeline.StatusFailed:
		return errorStyle.Render("✗")
	case pipeline.StatusSkipped:
		return dimStyle.Render("-")
	case pipeline.StatusRunning:
		return warnStyle.Render("›")
	default:
		return dimStyle.Render("·")
	}
}

// RenderRun renders one run as a stage-by-stage summary block.
func RenderRun(res *pipeline.RunResult) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(res.Pipeline))
	b.WriteString(dimStyle.Render("  " + res.ID))
	b.WriteString("\n")
	if res.Image != "" {
		b.WriteString(dimStyle.Render("image  " + res.Image))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, sr := range res.Stages {
		b.WriteString(fmt.Sprintf("  %s %s", statusGlyph(sr.Status), stageColumn.Render(sr.Stage)))
		switch sr.Status {
		case pipeline.StatusSucceeded, pipeline.StatusFailed:
			b.WriteString(dimStyle.Render(sr.Duration().Round(time.Millisecond).String()))
		case pipeline.StatusSkipped:
			b.WriteString(dimStyle.Render(sr.Error))
		}
		b.WriteString("\n")
		if sr.Status == pipeline.StatusFailed && sr.Error != "" {
			b.WriteString(errorStyle.Render("      " + sr.Error))
			b.WriteString("\n")
		}
	}

	if res.Rollout != nil {
		b.WriteString("\n")
		b.WriteString(renderRollout(res.Rollout))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case res.Failed() && res.FailedStage != "":
		b.WriteString(errorStyle.Render(fmt.Sprintf("run failed (%s error in stage %s)", res.ErrorKind, res.FailedStage)))
	case res.Failed():
		b.WriteString(errorStyle.Render(fmt.Sprintf("run failed (%s error)", res.ErrorKind)))
	default:
		b.WriteString(successStyle.Render("run succeeded"))
	}
	b.WriteString("\n")
	return b.String()
}

func renderRollout(o *kube.RolloutOutcome) string {
	line := fmt.Sprintf("rollout %s  %d/%d ready", o.Phase, o.State.Ready, o.State.Desired)
	switch o.Phase {
	case kube.PhaseSucceeded:
		return successStyle.Render(line)
	case kube.PhaseTimedOut:
		return warnStyle.Render(line)
	default:
		return dimStyle.Render(line)
	}
}

// RenderRunList renders one line per stored run, newest first as given.
func RenderRunList(runs []*pipeline.RunResult) string {
	if len(runs) == 0 {
		return dimStyle.Render("no runs recorded") + "\n"
	}

	var b strings.Builder
	for _, r := range runs {
		glyph := statusGlyph(r.Status)
		b.WriteString(fmt.Sprintf("%s %s  %s", glyph, r.ID, stageColumn.Render(r.Pipeline)))
		if r.Image != "" {
			b.WriteString(dimStyle.Render(r.Image))
		}
		b.WriteString("\n")
	}
	return b.String()
}
