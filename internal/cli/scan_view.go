package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"yt-channel-scan/internal/scan"
)

const maxViewEvents = 5

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type scanProgressMsg scan.Progress

type scanDoneMsg struct {
	result scan.Result
	err    error
}

// scanView renders live scan progress on stderr while the scan runs in a
// goroutine.
type scanView struct {
	channel   string
	spinner   spinner.Model
	bar       progress.Model
	current   scan.Progress
	events    []string
	started   time.Time
	width     int
	cancel    context.CancelFunc
	canceling bool
	done      bool
	err       error
}

func newScanView(channelURL string, cancel context.CancelFunc) scanView {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	return scanView{
		channel: channelURL,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		current: scan.Progress{Message: "Enumerating channel videos..."},
		started: time.Now(),
		cancel:  cancel,
	}
}

func (m scanView) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m scanView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = clampInt(msg.Width-6, 20, 80)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.canceling {
				m.canceling = true
				m.pushEvent("stopping; partial results will be kept")
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil
	case scanProgressMsg:
		prevQualifying := m.current.Qualifying
		m.current = scan.Progress(msg)
		if m.current.Qualifying > prevQualifying {
			m.pushEvent(fmt.Sprintf("qualifying: %d (at %d/%d)", m.current.Qualifying, m.current.Current+1, m.current.Total))
		}
		return m, nil
	case scanDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *scanView) pushEvent(e string) {
	m.events = append([]string{e}, m.events...)
	if len(m.events) > maxViewEvents {
		m.events = m.events[:maxViewEvents]
	}
}

func (m scanView) percent() float64 {
	if m.current.Total <= 0 {
		return 0
	}
	return float64(m.current.Current) / float64(m.current.Total)
}

func (m scanView) View() string {
	if m.done {
		return ""
	}
	width := m.width
	if width <= 0 {
		width = 100
	}

	header := titleStyle.Render("yt-channel-scan") + "  " + mutedStyle.Render(wrapOrTrim(m.channel, width-20))
	status := m.spinner.View() + " " + wrapOrTrim(m.current.Message, width-4)
	stats := mutedStyle.Render(fmt.Sprintf("inspected %d/%d | qualifying %d | elapsed %s",
		m.current.Current, m.current.Total, m.current.Qualifying, time.Since(m.started).Round(time.Second)))

	lines := []string{header, status, m.bar.ViewAs(m.percent()), stats}
	if len(m.events) > 0 {
		lines = append(lines, strings.Repeat("-", clampInt(width-4, 10, 80)))
		for _, e := range m.events {
			lines = append(lines, mutedStyle.Render(wrapOrTrim(e, width-4)))
		}
	}
	hint := "ctrl+c / q: stop and keep partial results"
	if m.canceling {
		hint = errorStyle.Render("stopping...")
	}
	lines = append(lines, mutedStyle.Render(hint))
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

type scanRunner func(ctx context.Context, progress scan.ProgressFunc) (scan.Result, error)

// runScanView runs the scan behind a bubbletea progress view.
func runScanView(ctx context.Context, channelURL string, run scanRunner) (scan.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newScanView(channelURL, cancel), tea.WithOutput(os.Stderr))
	finished := make(chan scanDoneMsg, 1)
	go func() {
		res, err := run(ctx, func(pr scan.Progress) { p.Send(scanProgressMsg(pr)) })
		done := scanDoneMsg{result: res, err: err}
		finished <- done
		p.Send(done)
	}()

	if _, err := p.Run(); err != nil {
		// The view failed to start; the scan keeps running without it.
		fmt.Fprintf(os.Stderr, "progress view unavailable: %v\n", err)
	}
	done := <-finished
	return done.result, done.err
}
