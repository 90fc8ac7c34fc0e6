package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/session"
)

// palette is the raw colour set a theme is derived from.
type palette struct {
	bg0, bg1, bg2, bg3 string
	sel, selFg         string
	line, lineFocus    string
	fg, comment, dim   string
	blue, green        string
	yellow, red, cyan  string
	// transitional states (ending, stopping)
	extra string
}

// Theme holds the resolved colours for one named palette.
type Theme struct {
	Name string

	Background string
	Surface    string
	FocusBg    string

	SelectionBg   string
	SelectionText string

	Border      string
	BorderMuted string
	BorderFocus string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// StatusColors is keyed by session phase, link state and stream state
	// names as they appear on the wire.
	StatusColors map[string]string
}

func newTheme(name string, p palette) Theme {
	return Theme{
		Name:          name,
		Background:    p.bg0,
		Surface:       p.bg1,
		FocusBg:       p.bg3,
		SelectionBg:   p.sel,
		SelectionText: p.selFg,
		Border:        p.line,
		BorderMuted:   p.bg2,
		BorderFocus:   p.lineFocus,
		Text:          p.fg,
		Muted:         p.comment,
		Faint:         p.dim,
		Accent:        p.blue,
		Success:       p.green,
		Warning:       p.yellow,
		Danger:        p.red,
		Info:          p.cyan,
		StatusColors: map[string]string{
			session.Idle.String():       p.comment,
			session.Starting.String():   p.cyan,
			session.Active.String():     p.green,
			session.Conflicted.String(): p.yellow,
			session.Ending.String():     p.extra,

			string(hub.ConnDiscovered):              p.dim,
			string(hub.ConnConnecting):              p.cyan,
			string(hub.ConnDiscoveringCapabilities): p.cyan,
			string(hub.ConnReady):                   p.green,
			string(hub.ConnDisconnected):            p.comment,
			string(hub.ConnFailed):                  p.red,

			string(hub.StreamStreaming):   p.green,
			string(hub.StreamStopping):    p.extra,
			string(hub.StreamStalled):     p.yellow,
			string(hub.StreamUnsupported): p.dim,
		},
	}
}

// Styles is the set of lipgloss styles the views render with.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header   lipgloss.Style
	Logo     lipgloss.Style
	Selected lipgloss.Style

	statusColors map[string]string
	badgeFg      string
	fallback     string
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// Styles builds the style set for t.
func (t Theme) Styles() Styles {
	return Styles{
		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Success).Bold(true),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),
		InfoText:    fg(t.Info),

		Header:   fg(t.Text).Background(lipgloss.Color(t.Surface)).Padding(0, 1),
		Logo:     fg(t.Warning).Bold(true),
		Selected: fg(t.SelectionText).Background(lipgloss.Color(t.SelectionBg)),

		statusColors: t.StatusColors,
		badgeFg:      t.Background,
		fallback:     t.Muted,
	}
}

// StatusStyle returns a badge style for a phase or device state name.
// Unknown names get the muted colour.
func (s Styles) StatusStyle(status string) lipgloss.Style {
	color, ok := s.statusColors[status]
	if !ok || color == "" {
		color = s.fallback
	}
	return fg(s.badgeFg).Background(lipgloss.Color(color)).Padding(0, 1)
}

// WithBackground paints every style onto bgColor so text inside panels does
// not fall through to the terminal background.
func (s Styles) WithBackground(bgColor string) Styles {
	bg := lipgloss.Color(bgColor)
	out := s
	for _, st := range []*lipgloss.Style{
		&out.Text, &out.MutedText, &out.FaintText, &out.AccentText,
		&out.SuccessText, &out.WarningText, &out.DangerText, &out.InfoText,
		&out.Header, &out.Logo, &out.Selected,
	} {
		*st = st.Background(bg)
	}
	return out
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

var themes = map[string]Theme{
	// https://github.com/EdenEast/nightfox.nvim
	"Nightfox": newTheme("Nightfox", palette{
		bg0: "#131a24", bg1: "#192330", bg2: "#212e3f", bg3: "#29394f",
		sel: "#2b3b51", selFg: "#cdcecf",
		line: "#39506d", lineFocus: "#719cd6",
		fg: "#cdcecf", comment: "#738091", dim: "#71839b",
		blue: "#719cd6", green: "#81b29a", yellow: "#dbc074",
		red: "#c94f6d", cyan: "#63cdcf", extra: "#f4a261",
	}),
	// https://github.com/rebelot/kanagawa.nvim
	"Kanagawa": newTheme("Kanagawa", palette{
		bg0: "#16161D", bg1: "#1F1F28", bg2: "#2A2A37", bg3: "#2A2A37",
		sel: "#2D4F67", selFg: "#DCD7BA",
		line: "#54546D", lineFocus: "#7E9CD8",
		fg: "#DCD7BA", comment: "#C8C093", dim: "#727169",
		blue: "#7E9CD8", green: "#98BB6C", yellow: "#E6C384",
		red: "#E46876", cyan: "#7FB4CA", extra: "#957FB8",
	}),
	// Tailwind slate with sky accents.
	"Slate": newTheme("Slate", palette{
		bg0: "#020617", bg1: "#0f172a", bg2: "#1e293b", bg3: "#283548",
		sel: "#0284c7", selFg: "#f8fafc",
		line: "#334155", lineFocus: "#38bdf8",
		fg: "#f1f5f9", comment: "#94a3b8", dim: "#64748b",
		blue: "#38bdf8", green: "#22c55e", yellow: "#f59e0b",
		red: "#ef4444", cyan: "#06b6d4", extra: "#a78bfa",
	}),
}

// GetTheme returns the named theme, or Nightfox when name is unknown.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[themeOrder[0]]
}

// NextTheme returns the theme after current in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames lists the themes in cycle order.
func ThemeNames() []string {
	return themeOrder
}
