// Package popup is the terminal stats window: it shows the persisted
// counters, lets the user reset them, and toggles trusted-click consent.
package popup

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/llehouerou/adspeed/internal/errmsg"
	"github.com/llehouerou/adspeed/internal/state"
)

// DefaultRefresh is how often the counters are re-read.
const DefaultRefresh = time.Second

// Store is the subset of state the popup needs.
type Store interface {
	Counters() (state.Counters, error)
	ResetCounters() error
	Consent() (bool, error)
	SetConsent(enabled bool) error
}

type (
	tickMsg  struct{}
	statsMsg struct {
		counters state.Counters
		consent  bool
		err      error
	}
	resetMsg   struct{ err error }
	consentMsg struct {
		enabled bool
		err     error
	}
)

// Model is the bubbletea model.
type Model struct {
	store      Store
	refresh    time.Duration
	keys       keyMap
	help       help.Model
	counters   state.Counters
	consent    bool
	loaded     bool
	confirming bool
	status     string
	err        string
	width      int
}

// New creates the popup. refresh <= 0 selects DefaultRefresh.
func New(store Store, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return Model{
		store:   store,
		refresh: refresh,
		keys:    defaultKeys(),
		help:    help.New(),
	}
}

// Counters returns the values currently shown.
func (m Model) Counters() state.Counters { return m.counters }

// Consent returns the consent value currently shown.
func (m Model) Consent() bool { return m.consent }

// Confirming reports whether the reset confirmation is shown.
func (m Model) Confirming() bool { return m.confirming }

// Err returns the last error message shown, if any.
func (m Model) Err() string { return m.err }

// Init loads the counters and starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load, m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) load() tea.Msg {
	c, err := m.store.Counters()
	if err != nil {
		return statsMsg{err: err}
	}
	consent, err := m.store.Consent()
	return statsMsg{counters: c, consent: consent, err: err}
}

func (m Model) reset() tea.Msg {
	return resetMsg{err: m.store.ResetCounters()}
}

func (m Model) toggleConsent() tea.Cmd {
	want := !m.consent
	store := m.store
	return func() tea.Msg {
		return consentMsg{enabled: want, err: store.SetConsent(want)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case tickMsg:
		return m, tea.Batch(m.load, m.tick())
	case statsMsg:
		if msg.err != nil {
			m.err = errmsg.Format(errmsg.OpStatsLoad, msg.err)
			return m, nil
		}
		m.counters = msg.counters
		m.consent = msg.consent
		m.loaded = true
		m.err = ""
		return m, nil
	case resetMsg:
		if msg.err != nil {
			m.err = errmsg.Format(errmsg.OpStatsReset, msg.err)
			return m, nil
		}
		m.counters = state.Counters{}
		m.status = "Statistics reset"
		m.err = ""
		return m, m.load
	case consentMsg:
		if msg.err != nil {
			m.err = errmsg.Format(errmsg.OpConsentSave, msg.err)
			return m, nil
		}
		m.consent = msg.enabled
		m.status = ""
		m.err = ""
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirming {
		switch {
		case key.Matches(msg, m.keys.Yes):
			m.confirming = false
			return m, m.reset
		case key.Matches(msg, m.keys.No):
			m.confirming = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Reset):
		m.confirming = true
		m.status = ""
	case key.Matches(msg, m.keys.Consent):
		return m, m.toggleConsent()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.load
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("AdSpeed"))
	b.WriteString("\n\n")

	if !m.loaded && m.err == "" {
		b.WriteString(offStyle.Render("Loading..."))
	} else {
		b.WriteString(row("Ads sped up", m.counters.Ads))
		b.WriteString(row("Warnings hit", m.counters.Warnings))
		b.WriteString(row("Page reloads", m.counters.Reloads))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Trusted clicks"))
		if m.consent {
			b.WriteString(onStyle.Render("on"))
		} else {
			b.WriteString(offStyle.Render("off"))
		}
		b.WriteString("\n")
	}

	if m.err != "" {
		b.WriteString("\n" + errorStyle.Render(m.err) + "\n")
	} else if m.status != "" {
		b.WriteString("\n" + offStyle.Render(m.status) + "\n")
	}

	b.WriteString("\n")
	if m.confirming {
		b.WriteString(confirmStyle.Render("Are you sure you want to reset stats?"))
		b.WriteString("\n")
		b.WriteString(m.help.View(confirmKeys{m.keys}))
	} else {
		b.WriteString(m.help.View(m.keys))
	}

	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, frameStyle.Render(b.String()))
}

func row(label string, n int64) string {
	line := labelStyle.Render(label) + valueStyle.Render(FormatCount(n))
	if exact := exactCount(n); exact != "" {
		line += " " + exactStyle.Render("("+exact+")")
	}
	return line + "\n"
}

// Run starts the popup in the terminal and blocks until it is closed.
func Run(store Store, refresh time.Duration) error {
	_, err := tea.NewProgram(New(store, refresh)).Run()
	return err
}
