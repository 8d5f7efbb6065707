package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles render against the color profile of the destination writer, so
// files and pipes get plain text.
type styles struct {
	title lipgloss.Style
	head  lipgloss.Style
	ok    lipgloss.Style
	bad   lipgloss.Style
	dim   lipgloss.Style
	hit   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7")),
		head:  r.NewStyle().Bold(true),
		ok:    r.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
		bad:   r.NewStyle().Foreground(lipgloss.Color("#f7768e")),
		dim:   r.NewStyle().Foreground(lipgloss.Color("#565f89")),
		hit:   r.NewStyle().Foreground(lipgloss.Color("#e0af68")).Bold(true),
	}
}

func (s styles) status(status string) string {
	if status == "accepted" || status == "matched" {
		return s.ok.Render(status)
	}
	return s.bad.Render(status)
}
