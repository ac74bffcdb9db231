package confirm

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tildaslashalef/prtwin/internal/difference"
	"github.com/tildaslashalef/prtwin/internal/pipeline"
)

// mode tracks which input the prompt is collecting
type mode int

const (
	modeChoosing mode = iota
	modeEditing
)

// Model is the bubbletea model for confirming one difference
type Model struct {
	diff     *difference.Difference
	preview  string // rendered origin hunk, may be empty
	position string // "difference 2 of 5"

	mode     mode
	input    textinput.Model
	styles   Styles
	renderer *glamour.TermRenderer
	width    int

	decision pipeline.Decision
	decided  bool
	aborted  bool
}

// NewModel creates a prompt model for one difference
func NewModel(d *difference.Difference, preview, position string) Model {
	input := textinput.New()
	input.Placeholder = "replacement instruction"
	input.CharLimit = 0
	input.Width = 60

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return Model{
		diff:     d,
		preview:  preview,
		position: position,
		input:    input,
		styles:   DefaultStyles(),
		renderer: renderer,
		width:    80,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeEditing {
			return m.updateEditing(msg)
		}
		return m.updateChoosing(msg)
	}

	return m, nil
}

func (m Model) updateChoosing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "a", "y":
		m.decision = pipeline.Decision{Action: pipeline.ActionAccept}
		m.decided = true
		return m, tea.Quit

	case "r", "n":
		m.decision = pipeline.Decision{Action: pipeline.ActionReject}
		m.decided = true
		return m, tea.Quit

	case "e":
		m.mode = modeEditing
		m.input.SetValue(m.diff.EffectiveInstruction())
		m.input.Focus()
		return m, textinput.Blink

	case "q", "ctrl+c", "esc":
		m.aborted = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		override := strings.TrimSpace(m.input.Value())
		if override == "" {
			// Nothing entered; back to choosing
			m.mode = modeChoosing
			return m, nil
		}
		m.decision = pipeline.Decision{Action: pipeline.ActionEdit, Override: override}
		m.decided = true
		return m, tea.Quit

	case "esc":
		m.mode = modeChoosing
		return m, nil

	case "ctrl+c":
		m.aborted = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Title.Render(m.position))
	sb.WriteString("  ")
	sb.WriteString(m.styles.Category.Render("[" + string(m.diff.Category) + "]"))
	if m.diff.Status == difference.StatusEdited {
		sb.WriteString("  ")
		sb.WriteString(m.styles.Instruction.Render("(edited)"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.renderDescription())
	sb.WriteString("\n")

	sb.WriteString(m.styles.Instruction.Render("instruction: " + m.diff.EffectiveInstruction()))
	sb.WriteString("\n")

	if len(m.diff.Origins) > 0 {
		origin := m.diff.Origins[0]
		sb.WriteString(m.styles.Origin.Render(fmt.Sprintf("origin: %s (hunk %d)", origin.Path, origin.HunkIndex)))
		sb.WriteString("\n")
	}

	if m.preview != "" {
		sb.WriteString(m.styles.Box.Render(m.renderPreview()))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	if m.mode == modeEditing {
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
		sb.WriteString(m.styles.Help.Render("enter confirm edit • esc back"))
	} else {
		sb.WriteString(m.styles.Help.Render("a accept • r reject • e edit • q abort"))
	}
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderDescription() string {
	if m.renderer != nil {
		if out, err := m.renderer.Render(m.diff.Description); err == nil {
			return out
		}
	}
	return wordwrap.String(m.diff.Description, m.width) + "\n"
}

// renderPreview colorizes the origin hunk's old and new sides
func (m Model) renderPreview() string {
	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimRight(m.preview, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "-"):
			sb.WriteString(m.styles.DiffOld.Render(line))
		case strings.HasPrefix(line, "+"):
			sb.WriteString(m.styles.DiffNew.Render(line))
		default:
			sb.WriteString(line)
		}
		sb.WriteString("\n")
	}
	return wordwrap.String(strings.TrimRight(sb.String(), "\n"), m.width-4)
}

// Decision returns the collected decision and whether one was made
func (m Model) Decision() (pipeline.Decision, bool) {
	return m.decision, m.decided
}

// Aborted reports whether the user abandoned the run
func (m Model) Aborted() bool {
	return m.aborted
}
