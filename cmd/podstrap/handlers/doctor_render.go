package handlers

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/podstrap/internal/provisioning/preflight"
	"github.com/imamik/podstrap/internal/provisioning/validate"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
)

const (
	checkMark = "[OK]"
	crossMark = "[!!]"
	warnMark  = "[??]"
)

type doctorStyles struct {
	title, section, ok, failed, warning, dim lipgloss.Style
}

func newDoctorStyles(w io.Writer) doctorStyles {
	r := lipgloss.NewRenderer(w)
	return doctorStyles{
		title:   r.NewStyle().Bold(true),
		section: r.NewStyle().Bold(true).Foreground(colorBlue),
		ok:      r.NewStyle().Foreground(colorGreen),
		failed:  r.NewStyle().Foreground(colorRed),
		warning: r.NewStyle().Foreground(colorYellow),
		dim:     r.NewStyle().Foreground(colorDim),
	}
}

// renderDoctor prints the preflight and component status table.
func renderDoctor(w io.Writer, target string, checks []preflight.Result, probe validate.Result) {
	s := newDoctorStyles(w)
	var b strings.Builder

	b.WriteString(s.title.Render("podstrap doctor: "+target) + "\n\n")

	b.WriteString(s.section.Render("Preflight") + "\n")
	for _, c := range checks {
		if c.Passed {
			fmt.Fprintf(&b, "  %s %-14s %s\n", s.ok.Render(checkMark), c.Check, s.dim.Render(c.Detail))
			continue
		}
		fmt.Fprintf(&b, "  %s %-14s %s\n", s.failed.Render(crossMark), c.Check, c.Reason)
	}

	b.WriteString("\n" + s.section.Render("Components") + "\n")
	for _, r := range probe.Records {
		switch {
		case r.Missing && r.Required:
			fmt.Fprintf(&b, "  %s %-14s %s\n", s.failed.Render(crossMark), r.Name, "missing")
		case r.Missing:
			fmt.Fprintf(&b, "  %s %-14s %s\n", s.warning.Render(warnMark), r.Name, s.dim.Render("not installed (optional)"))
		default:
			fmt.Fprintf(&b, "  %s %-14s %-10s %s\n", s.ok.Render(checkMark), r.Name, r.Version, s.dim.Render(r.Path))
		}
	}

	fmt.Fprintf(&b, "\n%d error(s), %d warning(s)\n", probe.Errors, probe.Warnings)
	_, _ = io.WriteString(w, b.String())
}
