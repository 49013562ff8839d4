package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/stagecraft/stagecraft/internal/completeness"
	"github.com/stagecraft/stagecraft/internal/engine"
	"github.com/stagecraft/stagecraft/internal/ledger"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle   = lipgloss.NewStyle().Width(14)
	decisionCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

func renderVerdict(stageName string, v completeness.Verdict) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Stage: "+stageName) + "\n")
	if v.Complete {
		b.WriteString(okStyle.Render("✓ complete") + "\n")
	} else {
		b.WriteString(failStyle.Render("✗ incomplete") + "\n")
	}
	b.WriteString(labelStyle.Render("Reason") + v.Reason + "\n")
	if len(v.Metrics) > 0 {
		keys := make([]string, 0, len(v.Metrics))
		for k := range v.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(titleStyle.Render("Metrics") + "\n")
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("  %s%s\n", labelStyle.Render(k), trimFloat(v.Metrics[k])))
		}
	}
	return b.String()
}

func renderOutcome(out *engine.Outcome) string {
	var b strings.Builder
	b.WriteString(renderVerdict(out.Stage.BranchName(), out.Verdict))
	if !out.Verdict.Complete {
		return b.String()
	}

	switch {
	case out.Terminal:
		b.WriteString(subtleStyle.Render("Terminal stage, nothing to transition into.") + "\n")
	default:
		b.WriteString(fmt.Sprintf("%s%d committed\n", labelStyle.Render("Files"), out.GeneratedFiles))
		b.WriteString(fmt.Sprintf("%s%d new, %d reused\n", labelStyle.Render("Decisions"),
			out.DecisionsNew, out.DecisionsReused))
		switch {
		case out.PRNumber < 0:
			b.WriteString(subtleStyle.Render("No transition PR (populated the terminal stage).") + "\n")
		case out.Merged:
			b.WriteString(okStyle.Render(fmt.Sprintf("✓ PR #%d merged", out.PRNumber)) + "\n")
		case out.Blocked:
			b.WriteString(warnStyle.Render(fmt.Sprintf("PR #%d left open for manual review", out.PRNumber)) + "\n")
		}
	}
	return b.String()
}

func renderDecision(d *ledger.Decision) string {
	var b strings.Builder
	name := titleStyle.Render(d.Name)
	if d.IsReversal() {
		name += warnStyle.Render(" (reversal of " + d.ReversalOf + ")")
	}
	b.WriteString(name + "\n")
	b.WriteString(labelStyle.Render("Type") + string(d.Type) + "\n")
	if len(d.Alternatives) > 0 {
		b.WriteString(labelStyle.Render("Alternatives") + strings.Join(d.Alternatives, ", ") + "\n")
	}
	b.WriteString(labelStyle.Render("Chosen") + d.Chosen + "\n")
	if d.Reason != "" {
		b.WriteString(labelStyle.Render("Reason") + d.Reason + "\n")
	}
	b.WriteString(labelStyle.Render("Confidence") + trimFloat(d.Confidence) + "\n")
	b.WriteString(labelStyle.Render("Revisit") + trimFloat(d.RevisitProbability) + "\n")
	b.WriteString(subtleStyle.Render("recorded on " + d.Branch))
	return decisionCard.Render(b.String())
}

func trimFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}
