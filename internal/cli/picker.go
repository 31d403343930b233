package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/printforge/printforge/pkg/manifest"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// modelEntry is one selectable model directory with its declared outputs.
type modelEntry struct {
	Name    string
	Targets string // compact summary, e.g. "2 stl · 1 image · 1 doc"
}

// ModelListModel is the bubbletea model for interactive model selection.
type ModelListModel struct {
	Models   []modelEntry
	Cursor   int
	Selected string
}

// NewModelListModel creates a new model list model.
func NewModelListModel(models []modelEntry) ModelListModel {
	return ModelListModel{Models: models}
}

func (m ModelListModel) Init() tea.Cmd {
	return nil
}

func (m ModelListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
			if m.Cursor < len(m.Models)-1 {
				m.Cursor++
			}
		case "enter":
			m.Selected = m.Models[m.Cursor].Name
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ModelListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Model Directory"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("arrows: navigate  enter: select  q: quit"))
	b.WriteString("\n\n")

	for i, entry := range m.Models {
		cursor := "  "
		if i == m.Cursor {
			cursor = "> "
		}

		line := fmt.Sprintf("%s%-25s  %s", cursor, entry.Name, listDimStyle.Render(entry.Targets))
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Models))))

	return b.String()
}

// pickModel runs the interactive picker over the workspace's model
// directories. An empty result means the user quit without selecting.
func pickModel(root string) (string, error) {
	models, err := manifest.Discover(root)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", nil
	}

	entries := make([]modelEntry, 0, len(models))
	for _, name := range models {
		entries = append(entries, modelEntry{
			Name:    name,
			Targets: describeModel(root, name),
		})
	}

	final, err := tea.NewProgram(NewModelListModel(entries)).Run()
	if err != nil {
		return "", err
	}
	if m, ok := final.(ModelListModel); ok {
		return m.Selected, nil
	}
	return "", nil
}

// describeModel summarizes a model's declared outputs for display.
// Manifest errors show up as a marker instead of failing the picker.
func describeModel(root, name string) string {
	m, err := manifest.Load(filepath.Join(root, name))
	if err != nil {
		return "invalid manifest"
	}
	return summarizeTargets(len(m.STLs), len(m.Images), len(m.Documents))
}

func summarizeTargets(stls, images, docs int) string {
	var parts []string
	if stls > 0 {
		parts = append(parts, fmt.Sprintf("%d stl", stls))
	}
	if images > 0 {
		parts = append(parts, fmt.Sprintf("%d images", images))
	}
	if docs > 0 {
		parts = append(parts, fmt.Sprintf("%d docs", docs))
	}
	if len(parts) == 0 {
		return "no targets"
	}
	return strings.Join(parts, " · ")
}
