package viz

import (
	"fmt"
	"math/rand"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/blochsim/internal/scenes"
)

var (
	pickerTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	pickerCursor = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	pickerItem   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	pickerDesc   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// Picker is the scene menu shown before a live session. Selecting a scene
// replaces the picker with a Model built from base.
type Picker struct {
	catalog *scenes.Catalog
	names   []string
	descs   []string
	cursor  int
	base    Options
	rng     *rand.Rand
	err     error
}

func NewPicker(catalog *scenes.Catalog, base Options, seed int64) Picker {
	p := Picker{
		catalog: catalog,
		names:   catalog.List(),
		base:    base,
		rng:     rand.New(rand.NewSource(seed)),
	}
	p.descs = make([]string, len(p.names))
	for i, name := range p.names {
		if sc, err := catalog.Get(name, rand.New(rand.NewSource(seed))); err == nil {
			p.descs[i] = sc.Description
		}
	}
	return p
}

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return p, tea.Quit
	case "up", "k":
		p.cursor = (p.cursor - 1 + len(p.names)) % len(p.names)
	case "down", "j":
		p.cursor = (p.cursor + 1) % len(p.names)
	case "enter":
		sc, err := p.catalog.Get(p.names[p.cursor], p.rng)
		if err != nil {
			p.err = err
			return p, nil
		}
		opts := p.base
		opts.Scene = sc
		m, err := NewModel(opts)
		if err != nil {
			p.err = err
			return p, nil
		}
		return m, m.Init()
	}
	return p, nil
}

func (p Picker) View() string {
	var s strings.Builder
	s.WriteString(pickerTitle.Render("BLOCHSIM") + "  " + pickerDesc.Render("select a scene") + "\n\n")
	for i, name := range p.names {
		line := fmt.Sprintf("%-16s", name)
		if i == p.cursor {
			s.WriteString(pickerCursor.Render("> "+line) + " " + pickerDesc.Render(p.descs[i]) + "\n")
		} else {
			s.WriteString("  " + pickerItem.Render(line) + " " + pickerDesc.Render(p.descs[i]) + "\n")
		}
	}
	if p.err != nil {
		s.WriteString("\n" + pickerCursor.Render(p.err.Error()) + "\n")
	}
	s.WriteString("\n" + pickerDesc.Render("↑↓:Select Enter:Start Q:Quit"))
	return s.String()
}
