// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/Thermoquad/sleepystat/pkg/sleepy"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	showAll bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of decoded packets and statistics",
	Long: `Show a live terminal dashboard while listening for observer packets.

The dashboard shows message statistics, the readings of the most recent
decoded packet, and an event log. By default only errors and encrypted
packets are logged; use --show-all to log every packet.

Press 'q' to quit. The event log scrolls with the arrow keys.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Log every packet (not just errors)")
	monitorCmd.Flags().IntVar(&listenWorkers, "workers", defaultWorkers, "Decode workers")
	monitorCmd.Flags().IntVar(&listenQueueSize, "queue-size", defaultQueueSize, "Pending envelopes before new ones are dropped")
}

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Most recent packet with readings
type latestPacket struct {
	received time.Time
	origin   string
	packet   *sleepy.Packet
}

// TUI model
type monitorModel struct {
	source       string
	keyInfo      string
	showAll      bool
	stats        *sleepy.Statistics
	startTime    time.Time
	events       []eventLogEntry
	maxEvents    int
	latest       *latestPacket
	readings     table.Model
	eventView    viewport.Model
	width        int
	height       int
	sourceClosed bool
	quitting     bool
}

// Messages
type tickMsg time.Time
type decodedMsg struct {
	msg      *sleepy.Message
	err      error
	outcome  sleepy.Outcome
	received time.Time
}
type sourceClosedMsg struct{}

// formatDuration formats a duration to a human-friendly string
func formatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	unit := func(n int64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, unit(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, unit(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, unit(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, unit(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func newReadingsTable() table.Model {
	return table.New(
		table.WithColumns([]table.Column{
			{Title: "Ch", Width: 4},
			{Title: "Sensor", Width: 20},
			{Title: "Type", Width: 6},
			{Title: "Value", Width: 40},
		}),
		table.WithHeight(6),
	)
}

func initialMonitorModel(source, keyInfo string, stats *sleepy.Statistics, showAll bool) monitorModel {
	return monitorModel{
		source:    source,
		keyInfo:   keyInfo,
		showAll:   showAll,
		stats:     stats,
		startTime: time.Now(),
		events:    make([]eventLogEntry, 0),
		maxEvents: 200,
		readings:  newReadingsTable(),
		eventView: viewport.New(76, 8),
		width:     80,
		height:    24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case sourceClosedMsg:
		m.sourceClosed = true
		m.addEvent("Connection closed", true)

	case decodedMsg:
		m.recordMessage(msg)
	}

	var cmd tea.Cmd
	m.eventView, cmd = m.eventView.Update(msg)
	return m, cmd
}

// resize fits the event log to the window below the fixed sections
func (m *monitorModel) resize() {
	m.eventView.Width = max(m.width-4, 20)
	m.eventView.Height = max(m.height-22, 5)
	m.refreshEvents()
}

// recordMessage logs a decoded message and tracks the latest readings
func (m *monitorModel) recordMessage(d decodedMsg) {
	origin := "unknown"
	if d.msg != nil && d.msg.Envelope.Origin != nil {
		origin = *d.msg.Envelope.Origin
	}

	switch d.outcome {
	case sleepy.OutcomeFailed:
		if d.err != nil {
			m.addEvent(fmt.Sprintf("ENVELOPE ERROR: %v", d.err), true)
		} else {
			m.addEvent(fmt.Sprintf("%s: PAYLOAD ERROR: %v", origin, d.msg.PayloadErr), true)
		}
	case sleepy.OutcomeEncrypted:
		if d.msg.Payload.DecryptionAttempted {
			m.addEvent(fmt.Sprintf("%s: encrypted packet, decryption failed", origin), true)
		} else {
			m.addEvent(fmt.Sprintf("%s: encrypted packet", origin), false)
		}
	case sleepy.OutcomeDecrypted:
		m.addEvent(fmt.Sprintf("%s: decrypted, %d readings", origin, d.msg.Payload.SensorCount()), false)
	case sleepy.OutcomeDecoded:
		if m.showAll {
			m.addEvent(fmt.Sprintf("%s: %d readings", origin, d.msg.Payload.SensorCount()), false)
		}
	case sleepy.OutcomeNoPayload:
		if m.showAll {
			m.addEvent(fmt.Sprintf("%s: envelope without payload", origin), false)
		}
	}

	if d.msg != nil && d.msg.Payload != nil && d.msg.Payload.SensorCount() > 0 {
		m.latest = &latestPacket{received: d.received, origin: origin, packet: d.msg.Payload}
		rows := make([]table.Row, 0, len(d.msg.Payload.Readings))
		for _, r := range d.msg.Payload.Readings {
			rows = append(rows, table.Row{
				fmt.Sprintf("%d", r.Channel),
				r.Name,
				r.TypeString(),
				sleepy.FormatReading(r),
			})
		}
		m.readings.SetRows(rows)
	}
}

func (m *monitorModel) addEvent(message string, isError bool) {
	m.events = append(m.events, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
	m.refreshEvents()
}

func (m *monitorModel) refreshEvents() {
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	infoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	if len(m.events) == 0 {
		m.eventView.SetContent(headerStyle.Render("  (no events yet)"))
		return
	}

	var content strings.Builder
	for _, entry := range m.events {
		timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
		if entry.isError {
			content.WriteString(headerStyle.Render(timestamp) + " " + errorStyle.Render("✗ "+entry.message) + "\n")
		} else {
			content.WriteString(headerStyle.Render(timestamp) + " " + infoStyle.Render("ℹ "+entry.message) + "\n")
		}
	}
	m.eventView.SetContent(content.String())
	m.eventView.GotoBottom()
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("SLEEPYSTAT - SENSOR MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Key: %s | Running: %s | Press 'q' to quit",
		m.source, m.keyInfo, formatDuration(time.Since(m.startTime)))))
	s.WriteString("\n\n")

	if m.sourceClosed {
		s.WriteString(errorStyle.Render("✗ Connection closed"))
		s.WriteString("\n\n")
	}

	// Statistics
	snap := m.stats.Snapshot()
	var decodedPercent float64
	decoded := snap.Decoded + snap.Decrypted
	failed := snap.Failed + snap.DecryptFailed
	if snap.TotalMessages > 0 {
		decodedPercent = float64(decoded) * 100.0 / float64(snap.TotalMessages)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.TotalMessages)),
		statsLabelStyle.Render("Decoded:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", decoded, decodedPercent)),
		statsLabelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprintf("%d", failed)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Decrypted:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Decrypted)),
		statsLabelStyle.Render("Decrypt failed:"), errorStyle.Render(fmt.Sprintf("%d", snap.DecryptFailed)),
		statsLabelStyle.Render("Readings:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Readings)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Message Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f msgs/s", snap.MessageRate)),
		statsLabelStyle.Render("Failure Rate:"), func() string {
			if snap.FailureRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f fails/s", snap.FailureRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f fails/s", snap.FailureRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest readings (only shown once a packet with readings arrived)
	if m.latest != nil {
		s.WriteString(statsLabelStyle.Render("Latest Readings:"))
		s.WriteString(headerStyle.Render(fmt.Sprintf(" %s at %s, RTC %s",
			m.latest.origin,
			m.latest.received.Format("15:04:05"),
			m.latest.packet.Frame.TimestampISO())))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(m.readings.View()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.eventView.View()))

	return s.String()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags())
	if err != nil {
		return err
	}

	decoder, err := cfg.NewDecoder()
	if err != nil {
		return err
	}

	src, err := OpenSource(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics, err := startMetrics(ctx, cfg)
	if err != nil {
		return err
	}

	stats := sleepy.NewStatistics()
	model := initialMonitorModel(src.Describe(), describeKey(decoder), stats, showAll)
	model.refreshEvents()
	p := tea.NewProgram(model)

	// Reports go to the TUI, not stdout
	proc := newProcessor(decoder, stats, metrics, nil, outputText)
	proc.onMessage = func(msg *sleepy.Message, err error, outcome sleepy.Outcome) {
		p.Send(decodedMsg{msg: msg, err: err, outcome: outcome, received: time.Now()})
	}
	pool := NewPool(cfg.Listener.Workers, cfg.Listener.QueueSize)

	// Log output would tear the alt screen
	log.SetOutput(io.Discard)

	err = src.Start(func(topic string, payload []byte) {
		metrics.IncReceived()
		if !pool.Submit(func() { proc.handle(topic, payload) }) {
			metrics.IncDropped()
		}
	})
	if err != nil {
		pool.Close()
		return err
	}

	go func() {
		select {
		case <-src.Done():
			p.Send(sourceClosedMsg{})
		case <-ctx.Done():
		}
	}()

	_, runErr := p.Run()

	cancel()
	src.Close()
	pool.Close()

	if runErr != nil {
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	return nil
}
