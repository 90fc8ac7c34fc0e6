package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sessionctl/internal/state"
)

const sessionPanelHeight = 9

// selectedIndex returns the row of the selected device, or 0.
func (m Model) selectedIndex() int {
	for i, d := range m.view.Devices {
		if d.ID == m.selectedID {
			return i
		}
	}
	return 0
}

// clampSelection keeps the selection on a device that still exists.
func (m *Model) clampSelection() {
	devices := m.view.Devices
	if len(devices) == 0 {
		m.selectedID = ""
		return
	}
	for _, d := range devices {
		if d.ID == m.selectedID {
			return
		}
	}
	m.selectedID = devices[0].ID
}

// renderDevicesView renders the session panel above the device table.
func (m Model) renderDevicesView() string {
	contentHeight := m.height - 2
	panel := m.renderBox("Session", m.renderSessionPanel(), m.width, sessionPanelHeight, false)
	tableHeight := contentHeight - sessionPanelHeight
	table := m.renderBox(m.devicesTitle(), m.renderDeviceTable(tableHeight-2), m.width, tableHeight, true)
	return panel + "\n" + table
}

func (m Model) devicesTitle() string {
	title := fmt.Sprintf("Devices (%d)", len(m.view.Devices))
	if n := len(m.view.Discovered()); n > 0 {
		title += fmt.Sprintf(" · %d discovered", n)
	}
	return title
}

// renderSessionPanel renders phase, identity, membership and messages.
func (m Model) renderSessionPanel() string {
	styles := m.theme.Styles()
	s := m.view.Session

	label := func(text string) string {
		return styles.MutedText.Width(12).Render(text)
	}

	var lines []string

	phase := styles.StatusStyle(s.Phase.String()).Render(strings.ToUpper(s.Phase.String()))
	if s.Status != "" {
		phase += " " + styles.InfoText.Render(s.Status)
	}
	lines = append(lines, label("Phase")+phase)

	if s.ID != "" {
		id := styles.Text.Render(s.ID)
		if s.StartedAt != nil {
			id += styles.FaintText.Render(fmt.Sprintf("  started %s · %s",
				s.StartedAt.Local().Format("15:04:05"),
				formatElapsed(time.Since(*s.StartedAt))))
		}
		lines = append(lines, label("Session")+id)
	}

	roster := m.view.Roster()
	names := make([]string, 0, len(roster))
	for _, d := range roster {
		if s.ID == "" && !d.Included {
			continue
		}
		names = append(names, deviceLabel(d))
	}
	rosterLabel := "Will join"
	if s.ID != "" {
		rosterLabel = "Participants"
	}
	if len(names) == 0 {
		lines = append(lines, label(rosterLabel)+styles.FaintText.Render("none"))
	} else {
		lines = append(lines, label(rosterLabel)+styles.Text.Render(truncate(strings.Join(names, ", "), max(m.width-18, 10))))
	}

	if s.Initiator == "" {
		lines = append(lines, label("Initiator")+styles.WarningText.Render("not configured; sessions cannot start"))
	}
	if s.LastError != "" {
		lines = append(lines, label("Error")+styles.DangerText.Render(s.LastError))
	}
	if m.view.Notice != "" {
		lines = append(lines, label("Notice")+styles.WarningText.Render(m.view.Notice))
	}
	if m.flash != "" {
		lines = append(lines, label("")+styles.WarningText.Render(m.flash))
	}

	if limit := sessionPanelHeight - 2; len(lines) > limit {
		lines = lines[:limit]
	}
	return strings.Join(lines, "\n")
}

// renderDeviceTable renders one row per known device.
func (m Model) renderDeviceTable(rows int) string {
	styles := m.theme.Styles()
	devices := m.view.Devices
	if len(devices) == 0 {
		hint := "No devices. Press r to scan."
		if m.view.Scanning {
			hint = "Scanning for devices..."
		}
		return styles.FaintText.Render(hint)
	}

	showBattery := m.width >= LayoutBatteryWidth
	nameWidth := max(m.width-60, 12)

	header := fmt.Sprintf("  %-3s %-*s %-13s %-12s", "IN", nameWidth, "NAME", "LINK", "STREAM")
	if showBattery {
		header += fmt.Sprintf(" %-5s", "BATT")
	}
	header += " AUTO"

	out := []string{styles.MutedText.Bold(true).Render(header)}

	start := 0
	selected := m.selectedIndex()
	if rows > 1 && selected >= start+rows-1 {
		start = selected - rows + 2
	}

	locked := m.view.Session.ID != ""
	for i := start; i < len(devices) && len(out) < max(rows, 2); i++ {
		d := devices[i]
		out = append(out, m.renderDeviceRow(d, i == selected, locked, nameWidth, showBattery))
	}
	return strings.Join(out, "\n")
}

func (m Model) renderDeviceRow(d state.Device, selected, locked bool, nameWidth int, showBattery bool) string {
	styles := m.theme.Styles()

	include := "[ ]"
	if d.Included {
		include = "[x]"
	}
	if locked {
		include = strings.NewReplacer("[", "(", "]", ")").Replace(include)
	}

	marker := "  "
	if selected {
		marker = "▸ "
	}

	link := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.StatusColors[string(d.Connection)])).
		Width(13).
		Render(d.Connection.Label())
	stream := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.StatusColors[string(d.Stream)])).
		Width(12).
		Render(d.Stream.Label())

	row := marker + fmt.Sprintf("%-3s %-*s ", include, nameWidth, truncate(deviceLabel(d), nameWidth)) +
		link + " " + stream
	if showBattery {
		row += " " + m.renderBattery(d.Battery)
	}
	auto := "off"
	if d.AutoStream {
		auto = "on"
	}
	row += " " + auto

	if selected {
		return styles.Selected.Width(max(m.width-4, 0)).Render(row)
	}
	if !d.Eligible {
		return styles.FaintText.Render(row)
	}
	return styles.Text.Render(row)
}

func (m Model) renderBattery(level *int) string {
	styles := m.theme.Styles()
	if level == nil {
		return styles.FaintText.Width(5).Render("--")
	}
	text := fmt.Sprintf("%d%%", *level)
	switch {
	case *level <= 15:
		return styles.DangerText.Width(5).Render(text)
	case *level <= 30:
		return styles.WarningText.Width(5).Render(text)
	default:
		return styles.Text.Width(5).Render(text)
	}
}

func deviceLabel(d state.Device) string {
	if strings.TrimSpace(d.Name) != "" {
		return d.Name
	}
	return d.ID
}
