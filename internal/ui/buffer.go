package ui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/five82/sessionctl/internal/hub"
)

// renderBuffer renders the upload buffer diagnostics.
func (m Model) renderBuffer() string {
	contentHeight := m.height - 2
	return m.renderBox("Upload buffer", m.renderBufferContent(), m.width, contentHeight, true)
}

func (m Model) renderBufferContent() string {
	styles := m.theme.Styles()
	b := m.view.Buffer

	label := func(text string) string {
		return styles.MutedText.Width(14).Render(text)
	}

	var lines []string
	if b.Refreshing {
		lines = append(lines, styles.InfoText.Render(m.spinner.View()+" Refreshing..."))
	}
	if b.LastError != "" {
		lines = append(lines, label("Error")+styles.DangerText.Render(b.LastError))
	}

	if b.Stats == nil {
		if !b.Refreshing {
			lines = append(lines, styles.FaintText.Render("No counters yet. Press u to refresh."))
		}
		return strings.Join(lines, "\n")
	}

	st := b.Stats
	failedStyle := styles.Text
	if st.Buffer.TotalFailed > 0 {
		failedStyle = styles.DangerText
	}
	lines = append(lines,
		label("Packets")+styles.Text.Render(fmt.Sprintf("%d", st.Buffer.TotalPackets)),
		label("Uploaded")+styles.SuccessText.Render(fmt.Sprintf("%d", st.Buffer.Uploaded())),
		label("Pending")+styles.WarningText.Render(fmt.Sprintf("%d", st.Buffer.TotalPending)),
		label("Failed")+failedStyle.Render(fmt.Sprintf("%d", st.Buffer.TotalFailed)),
		label("Success rate")+m.renderRateBar(st.SuccessRate)+" "+styles.Text.Render(formatPercent(st.SuccessRate)),
		label("Fetched")+styles.FaintText.Render(fmt.Sprintf("%s (%s ago)",
			st.FetchedAt.Local().Format("15:04:05"), formatElapsed(time.Since(st.FetchedAt)))),
	)

	if r := b.LastReset; r != nil {
		scope := "all devices"
		if r.DeviceID != "" {
			scope = r.DeviceID
		}
		lines = append(lines, label("Last retry")+styles.Text.Render(
			fmt.Sprintf("%d packets re-queued for %s at %s", r.Count, scope, r.At.Local().Format("15:04:05"))))
	}

	if len(st.Uploads) > 0 {
		lines = append(lines, "", styles.MutedText.Bold(true).Render(
			fmt.Sprintf("%-24s %10s %10s %8s", "DEVICE", "OK", "ATTEMPTS", "RATE")))
		lines = append(lines, m.renderUploadRows(st.Uploads)...)
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderUploadRows(uploads map[string]hub.UploadStats) []string {
	styles := m.theme.Styles()
	names := make(map[string]string, len(m.view.Devices))
	for _, d := range m.view.Devices {
		names[d.ID] = deviceLabel(d)
	}

	ids := make([]string, 0, len(uploads))
	for id := range uploads {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	rows := make([]string, 0, len(ids))
	for _, id := range ids {
		u := uploads[id]
		name := names[id]
		if name == "" {
			name = id
		}
		rate := hub.SuccessRate(map[string]hub.UploadStats{id: u})
		rows = append(rows, styles.Text.Render(fmt.Sprintf("%-24s %10d %10d %8s",
			truncate(name, 24), u.SuccessCount, u.TotalAttempts, formatPercent(rate))))
	}
	return rows
}

func (m Model) renderRateBar(ratio float64) string {
	bar := progress.New(
		progress.WithSolidFill(m.theme.Success),
		progress.WithoutPercentage(),
		progress.WithWidth(24),
	)
	bar.EmptyColor = m.theme.BorderMuted
	return bar.ViewAs(ratio)
}
