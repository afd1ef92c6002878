package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/jlindqvist/chorogram/pkg/atlas"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// SourceListModel is the bubbletea model for interactive source selection.
// It lists every known (dataset, granularity) pair from the registry.
type SourceListModel struct {
	Sources  []atlas.Source
	Cursor   int
	Selected *atlas.Source
}

// NewSourceListModel creates a source list model over the registry's pairs.
func NewSourceListModel(registry *atlas.Registry) SourceListModel {
	var sources []atlas.Source
	for _, dataset := range registry.Datasets() {
		for _, granularity := range registry.Granularities(dataset) {
			if src, err := registry.Resolve(dataset, granularity); err == nil {
				sources = append(sources, src)
			}
		}
	}
	return SourceListModel{Sources: sources}
}

func (m SourceListModel) Init() tea.Cmd {
	return nil
}

func (m SourceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Sources)-1 {
				m.Cursor++
			}
		case "enter":
			m.Selected = &m.Sources[m.Cursor]
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m SourceListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Dataset"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	for i, src := range m.Sources {
		cursor := "  "
		style := listNormalStyle
		if i == m.Cursor {
			cursor = "▸ "
			style = listSelectedStyle
		}
		line := fmt.Sprintf("%s%-10s %s", cursor, src.Dataset, src.Granularity)
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Sources))))
	return b.String()
}

// pickSource runs the interactive dataset picker. A nil source with nil
// error means the user quit without selecting.
func pickSource(logger *log.Logger) (*atlas.Source, error) {
	model := NewSourceListModel(atlas.NewRegistry())
	if len(model.Sources) == 0 {
		return nil, nil
	}

	program := tea.NewProgram(model)
	final, err := program.Run()
	if err != nil {
		logger.Debug("dataset picker failed", "err", err)
		return nil, err
	}
	if m, ok := final.(SourceListModel); ok {
		return m.Selected, nil
	}
	return nil, nil
}
