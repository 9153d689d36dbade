package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/detect"
	"github.com/vigil-dev/vigil/internal/event"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the workspace and report problems live",
	Long: `Start all enabled detectors with filesystem watching and show a live,
continuously updated view of the workspace's problems.

Keys:
  r       force a full re-scan
  q       quit`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// Messages bridged from the detection bus into the TUI event loop.
type findingsMsg struct {
	findings []detect.Tracked
	stats    detect.Stats
}

type scanActivityMsg struct {
	detector string
	active   bool
}

// watchModel is the live-view TUI state.
type watchModel struct {
	spinner  spinner.Model
	root     string
	mgr      *detect.Manager
	findings []detect.Tracked
	stats    detect.Stats
	scanning map[string]bool
	width    int
	height   int
	updated  time.Time
	quitting bool
}

func newWatchModel(root string, mgr *detect.Manager) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	return watchModel{
		spinner:  sp,
		root:     root,
		mgr:      mgr,
		scanning: make(map[string]bool),
		width:    100,
		height:   30,
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			// Force a full pass off the event loop; results arrive as
			// findings messages.
			mgr := m.mgr
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				_, _ = mgr.Detect(ctx, detect.Options{})
			}()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case findingsMsg:
		m.findings = msg.findings
		m.stats = msg.stats
		m.updated = time.Now()
		return m, nil

	case scanActivityMsg:
		m.scanning[msg.detector] = msg.active
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	// Header: spinner while any detector is mid-scan
	active := make([]string, 0, len(m.scanning))
	for name, on := range m.scanning {
		if on {
			active = append(active, name)
		}
	}
	if len(active) > 0 {
		b.WriteString(fmt.Sprintf("%s scanning %s\n", m.spinner.View(), strings.Join(active, ", ")))
	} else if m.updated.IsZero() {
		b.WriteString(fmt.Sprintf("%s starting detectors...\n", m.spinner.View()))
	} else {
		b.WriteString(fmt.Sprintf("watching %s (updated %s)\n", m.root, m.updated.Format("15:04:05")))
	}
	b.WriteString("\n")

	b.WriteString(summarize(m.stats))
	b.WriteString("\n\n")

	// Findings list, clipped to the window
	rows := m.height - 7
	if rows < 3 {
		rows = 3
	}
	shown := m.findings
	if len(shown) > rows {
		shown = shown[:rows]
	}
	for _, tr := range shown {
		b.WriteString(renderTracked(m.root, tr, m.width))
		b.WriteString("\n")
	}
	if hidden := len(m.findings) - len(shown); hidden > 0 {
		b.WriteString(countStyle.Render(fmt.Sprintf("... and %d more", hidden)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(countStyle.Render("r re-scan · q quit"))
	return b.String()
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	bus := event.NewBus()
	mgr, logger, err := buildManager(cfg, bus, true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	root := cfg.Workspace.ResolveRoot()
	program := tea.NewProgram(newWatchModel(root, mgr), tea.WithAltScreen())

	// Bridge bus events into the TUI event loop. The bus is synchronous, so
	// handlers stay tiny and Send does the cross-goroutine handoff.
	bus.Subscribe(event.TypeScanStarted, func(e event.Event) {
		if sc, ok := e.(event.ScanStartedEvent); ok {
			program.Send(scanActivityMsg{detector: sc.Detector, active: true})
		}
	})
	bus.Subscribe(event.TypeScanCompleted, func(e event.Event) {
		if sc, ok := e.(event.ScanCompletedEvent); ok {
			program.Send(scanActivityMsg{detector: sc.Detector, active: false})
		}
	})
	bus.Subscribe(event.TypeFindingsUpdated, func(e event.Event) {
		program.Send(findingsMsg{findings: mgr.Findings(), stats: mgr.Stats()})
	})

	if err := mgr.Start(); err != nil {
		return fmt.Errorf("failed to start detection: %w", err)
	}
	defer func() { _ = mgr.Stop() }()

	_, err = program.Run()
	return err
}
