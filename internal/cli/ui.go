package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mossy-p/classroom-signaling/internal/models"
	"github.com/mossy-p/classroom-signaling/internal/peerlink"
)

// Color palette
var (
	Primary = lipgloss.Color("#22d3ee")
	Success = lipgloss.Color("#10B981")
	Warning = lipgloss.Color("#F59E0B")
	Error   = lipgloss.Color("#EF4444")
	Muted   = lipgloss.Color("#6B7280")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	ChatStyle    = lipgloss.NewStyle().Foreground(Primary).Bold(true)
)

// Printer writes styled status lines. Output goes to one writer so the
// commands can be exercised in tests.
type Printer struct {
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", TitleStyle.Render("•"), fmt.Sprintf(format, args...))
}

func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", SuccessStyle.Render("✓"), fmt.Sprintf(format, args...))
}

func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", WarningStyle.Render("!"), WarningStyle.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.out, "%s %s\n", ErrorStyle.Render("✗"), ErrorStyle.Render(msg))
}

// LinkState prints a link transition, colored by how far along it is.
func (p *Printer) LinkState(peerID string, state peerlink.State) {
	style := WarningStyle
	switch state {
	case peerlink.Active:
		style = SuccessStyle
	case peerlink.Closed:
		style = ErrorStyle
	}
	fmt.Fprintf(p.out, "%s %s %s\n", MutedStyle.Render("link"), peerID, style.Render(state.String()))
}

func (p *Printer) Chat(from, text string) {
	fmt.Fprintf(p.out, "%s %s\n", ChatStyle.Render(from+":"), text)
}

func (p *Printer) Roster(list []models.RosterEntry, self string) {
	fmt.Fprintln(p.out, RosterTable(list, self))
}

// RosterTable renders the attendants list; self is marked with "*".
func RosterTable(list []models.RosterEntry, self string) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Attendants")
	t.AppendHeader(table.Row{"#", "Name", "Role", "ID"})

	for i, entry := range list {
		name := entry.Name
		if entry.ID == self {
			name += " *"
		}
		t.AppendRow(table.Row{i + 1, name, entry.Role, entry.ID})
	}
	if len(list) == 0 {
		t.AppendRow(table.Row{"", "(empty)", "", ""})
	}
	return t.Render()
}
