// Package explorer is a terminal tree browser over a workspace view.
package explorer

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/workspace"
)

// RefreshedMsg is delivered when a background refresh finishes.
type RefreshedMsg struct {
	Err error
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	cursorStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("229"))
	folderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Model browses a workspace tree. Folder expansion lives in an Expansion so
// it survives refreshes; the tree itself always comes from the view.
type Model struct {
	view     *workspace.View
	exp      *workspace.Expansion
	title    string
	cursor   int
	offset   int
	width    int
	height   int
	loading  bool
	err      error
	selected *models.File
}

// New creates a model over view. exp may be shared with other consumers; nil
// starts with everything collapsed.
func New(view *workspace.View, exp *workspace.Expansion, title string) *Model {
	if exp == nil {
		exp = workspace.NewExpansion()
	}
	return &Model{view: view, exp: exp, title: title}
}

// Selected returns the file chosen with enter, if any.
func (m *Model) Selected() (models.File, bool) {
	if m.selected == nil {
		return models.File{}, false
	}
	return *m.selected, true
}

// Init loads the first snapshot.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	return m.refresh()
}

func (m *Model) refresh() tea.Cmd {
	view := m.view
	return func() tea.Msg {
		return RefreshedMsg{Err: view.Refresh(context.Background())}
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scroll()

	case RefreshedMsg:
		m.loading = false
		m.err = msg.Err
		m.afterRefresh()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case "g", "home":
		m.cursor = 0
		m.scroll()
	case "G", "end":
		m.cursor = len(m.visible()) - 1
		m.scroll()
	case "right", "l":
		if n := m.current(); n != nil && n.IsFolder() {
			m.exp.Expand(n.ID)
		}
	case "left", "h":
		m.collapseOrParent()
	case " ":
		if n := m.current(); n != nil && n.IsFolder() {
			m.exp.Toggle(n.ID)
			m.clamp()
		}
	case "enter":
		n := m.current()
		if n == nil {
			return m, nil
		}
		if n.IsFolder() {
			m.exp.Toggle(n.ID)
			m.clamp()
			return m, nil
		}
		f := *n.File
		m.selected = &f
		return m, tea.Quit
	case "r":
		if !m.loading {
			m.loading = true
			return m, m.refresh()
		}
	}
	return m, nil
}

func (m *Model) visible() []*workspace.Node {
	return workspace.Visible(m.view.Tree(), m.exp)
}

func (m *Model) current() *workspace.Node {
	nodes := m.visible()
	if m.cursor < 0 || m.cursor >= len(nodes) {
		return nil
	}
	return nodes[m.cursor]
}

func (m *Model) move(delta int) {
	m.cursor += delta
	m.clamp()
}

func (m *Model) clamp() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.scroll()
}

// collapseOrParent collapses an expanded folder, otherwise jumps to the
// parent folder.
func (m *Model) collapseOrParent() {
	n := m.current()
	if n == nil {
		return
	}
	if n.IsFolder() && m.exp.IsExpanded(n.ID) {
		m.exp.Collapse(n.ID)
		m.clamp()
		return
	}
	if n.Depth == 0 {
		return
	}
	nodes := m.visible()
	for i := m.cursor - 1; i >= 0; i-- {
		if nodes[i].IsFolder() && nodes[i].Depth == n.Depth-1 {
			m.cursor = i
			break
		}
	}
	m.scroll()
}

// afterRefresh drops expansion state for folders that no longer exist and
// keeps the cursor in range.
func (m *Model) afterRefresh() {
	m.exp.Prune(m.view.Index())
	m.clamp()
}

func (m *Model) listHeight() int {
	h := m.height - 3
	if h < 1 {
		return 1 << 30
	}
	return h
}

func (m *Model) scroll() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// View renders the tree.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	nodes := m.visible()
	switch {
	case m.loading && m.view.Generation() == 0:
		b.WriteString("loading…\n")
	case len(nodes) == 0:
		b.WriteString(helpStyle.Render("(empty)") + "\n")
	}

	h := m.listHeight()
	for i := m.offset; i < len(nodes) && i < m.offset+h; i++ {
		line := renderNode(nodes[i], m.exp)
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ move • enter open • ←/→ collapse/expand • r refresh • q quit"))
	return b.String()
}

func renderNode(n *workspace.Node, exp *workspace.Expansion) string {
	indent := strings.Repeat("  ", n.Depth)
	if !n.IsFolder() {
		return fmt.Sprintf("%s  %s", indent, n.Name)
	}
	marker := "▸"
	if exp.IsExpanded(n.ID) {
		marker = "▾"
	}
	return fmt.Sprintf("%s%s %s", indent, marker, folderStyle.Render(n.Name+"/"))
}
