package audit

import (
	"fmt"
	"html"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/gigradar/internal/filter"
	"github.com/amishk599/gigradar/internal/model"
	"github.com/amishk599/gigradar/internal/notifier"
)

const rowHeight = 3 // title, subtitle, gap

var (
	accent = lipgloss.Color("39")
	muted  = lipgloss.Color("240")

	paneStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted)
	focusStyle = paneStyle.BorderForeground(accent)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	barStyle   = lipgloss.NewStyle().Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	rowTitle    = lipgloss.NewStyle().Bold(true)
	rowSubtitle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	rowSelected = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("24"))

	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent).Width(14)
	dividerStyle = lipgloss.NewStyle().Foreground(muted)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
)

// entry is one posting and the chats it would be delivered to.
type entry struct {
	posting    model.Posting
	recipients []string
}

// buildEntries pairs every posting with its eligible recipients. matched
// holds the entries at least one recipient would receive.
func buildEntries(postings []model.Posting, recipients []model.Recipient) (all, matched []entry) {
	m := filter.NewKeywordMatcher()
	for _, p := range postings {
		e := entry{posting: p}
		for _, r := range recipients {
			if r.Wants(p.Source) && m.Eligible(r, p) {
				e.recipients = append(e.recipients, r.ChatID)
			}
		}
		all = append(all, e)
		if len(e.recipients) > 0 {
			matched = append(matched, e)
		}
	}
	return all, matched
}

// pane is one scrollable posting list with its own cursor.
type pane struct {
	title   string
	entries []entry
	cursor  int
	vp      viewport.Model
}

func (p *pane) move(delta int) {
	p.cursor = clamp(p.cursor+delta, 0, max(len(p.entries)-1, 0))
	top := p.cursor * rowHeight
	switch {
	case top < p.vp.YOffset:
		p.vp.SetYOffset(top)
	case top+rowHeight > p.vp.YOffset+p.vp.Height:
		p.vp.SetYOffset(top + rowHeight - p.vp.Height)
	}
}

func (p *pane) selected() (entry, bool) {
	if len(p.entries) == 0 {
		return entry{}, false
	}
	return p.entries[p.cursor], true
}

func (p *pane) resize(w, h int) {
	p.vp.Width, p.vp.Height = w, h
}

func (p *pane) refresh(focused bool) {
	if len(p.entries) == 0 {
		p.vp.SetContent("  (no postings)")
		return
	}
	rows := make([]string, 0, len(p.entries))
	for i, e := range p.entries {
		title, sub, mark := rowTitle, rowSubtitle, "  "
		if focused && i == p.cursor {
			title, sub, mark = rowSelected.Bold(true), rowSelected, "> "
		}
		posted := "n/a"
		if e.posting.PublishedAt != nil {
			posted = e.posting.PublishedAt.Local().Format("15:04")
		}
		info := fmt.Sprintf("%s · %s · %d recipients", notifier.FormatBudget(e.posting.Budget), posted, len(e.recipients))
		rows = append(rows, mark+title.Render(e.posting.Title)+"\n"+mark+sub.Render(info))
	}
	p.vp.SetContent(strings.Join(rows, "\n\n"))
}

func (p *pane) view(focused bool) string {
	border, head := paneStyle, titleStyle.Foreground(muted)
	if focused {
		border, head = focusStyle, titleStyle.Foreground(accent)
	}
	header := lipgloss.NewStyle().Width(p.vp.Width + 2).Render(head.Render(fmt.Sprintf("%s (%d)", p.title, len(p.entries))))
	return header + "\n" + border.Width(p.vp.Width).Render(p.vp.View())
}

type auditModel struct {
	panes  [2]*pane // fetched, delivered
	focus  int
	width  int
	height int
	ready  bool

	detail     *entry
	detailVP   viewport.Model
	expandDesc bool

	wantQuit bool
}

func newAuditModel(all, matched []entry) auditModel {
	return auditModel{panes: [2]*pane{
		{title: "Fetched", entries: all},
		{title: "Delivered to someone", entries: matched},
	}}
}

func (m auditModel) Init() tea.Cmd { return nil }

func (m auditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.wantQuit = true
			return m, tea.Quit
		}
		if m.detail != nil {
			return m.detailKey(msg)
		}
		return m.listKey(msg)
	}
	return m, nil
}

func (m auditModel) listKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.panes[m.focus]
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "tab":
		m.focus = 1 - m.focus
	case "up", "k":
		p.move(-1)
	case "down", "j":
		p.move(1)
	case "enter":
		if e, ok := p.selected(); ok {
			m.detail = &e
			m.expandDesc = false
			m.detailVP = viewport.New(m.width-4, m.height-4)
			m.detailVP.SetContent(m.renderDetail())
		}
		return m, nil
	default:
		var cmd tea.Cmd
		p.vp, cmd = p.vp.Update(msg)
		return m, cmd
	}
	m.refreshPanes()
	return m, nil
}

func (m auditModel) detailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace":
		m.detail = nil
		return m, nil
	case "o":
		openURL(m.detail.posting.URL)
		return m, nil
	case "r":
		if m.detail.posting.Description != "" {
			m.expandDesc = !m.expandDesc
			m.detailVP.SetContent(m.renderDetail())
			m.detailVP.SetYOffset(0)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.detailVP, cmd = m.detailVP.Update(msg)
	return m, cmd
}

// layout sizes both panes side by side above a one-line status bar.
func (m *auditModel) layout() {
	w := max((m.width-5)/2, 20)
	h := max(m.height-4, 5)
	for _, p := range m.panes {
		if !m.ready {
			p.vp = viewport.New(w, h)
		} else {
			p.resize(w, h)
		}
	}
	m.ready = true
	m.refreshPanes()
	if m.detail != nil {
		m.detailVP.Width, m.detailVP.Height = m.width-4, m.height-4
		m.detailVP.SetContent(m.renderDetail())
	}
}

func (m *auditModel) refreshPanes() {
	for i, p := range m.panes {
		p.refresh(i == m.focus)
	}
}

func (m auditModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.detail != nil {
		hint := " o open URL  esc back  ↑/↓ scroll  q quit"
		if m.detail.posting.Description != "" {
			hint = " o open URL  r description  esc back  ↑/↓ scroll  q quit"
		}
		return titleStyle.Foreground(lipgloss.Color("15")).Render("Posting") + "\n" +
			focusStyle.Width(m.width-2).Render(m.detailVP.View()) + "\n" +
			barStyle.Width(m.width).Render(hint)
	}

	fetched, delivered := len(m.panes[0].entries), len(m.panes[1].entries)
	status := fmt.Sprintf(" %d fetched | %d delivered | %d unmatched    Tab switch  ↑/↓ move  Enter detail  Esc picker  q quit",
		fetched, delivered, fetched-delivered)
	return lipgloss.JoinHorizontal(lipgloss.Top, m.panes[0].view(m.focus == 0), " ", m.panes[1].view(m.focus == 1)) +
		"\n" + barStyle.Width(m.width).Render(status)
}

func (m auditModel) renderDetail() string {
	p := m.detail.posting
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}

	addField("Title", p.Title)
	addField("Source", p.Source.Label())
	addField("ID", p.ID)
	addField("Dedup key", p.DedupKey())
	if p.PublishedAt != nil {
		addField("Published", p.PublishedAt.Local().Format("2006-01-02 15:04 MST"))
	}
	addField("Budget", notifier.FormatBudget(p.Budget))
	addField("URL", p.URL)

	b.WriteByte('\n')
	if len(m.detail.recipients) == 0 {
		addField("Recipients", "none")
	} else {
		addField("Recipients", strings.Join(m.detail.recipients, ", "))
	}

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len([]rune(label)), 3))
		return dividerStyle.Render(label + fill)
	}

	b.WriteByte('\n')
	b.WriteString(divider("── Message preview ") + "\n\n")
	b.WriteString(plainMessage(notifier.Render(p)) + "\n")

	if p.Description != "" {
		b.WriteByte('\n')
		if m.expandDesc {
			b.WriteString(divider("── Full description ") + "\n\n")
			b.WriteString(wordWrap(p.Description, wrapWidth) + "\n")
		} else {
			b.WriteString(hintStyle.Render("  press r to read the full description") + "\n")
		}
	}
	return b.String()
}

// plainMessage turns the HTML message into terminal text.
func plainMessage(msg string) string {
	msg = strings.NewReplacer("<b>", "", "</b>", "").Replace(msg)
	return html.UnescapeString(msg)
}

// sortNewestFirst orders postings by publish time; undated ones go last.
func sortNewestFirst(postings []model.Posting) {
	sort.SliceStable(postings, func(i, j int) bool {
		a, b := postings[i].PublishedAt, postings[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len([]rune(line))+1+len([]rune(w)) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// RunAuditTUI launches the split-pane audit view over postings, showing
// which of recipients would receive each one.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed
// esc to return to the picker.
func RunAuditTUI(postings []model.Posting, recipients []model.Recipient) (bool, error) {
	sortNewestFirst(postings)
	all, matched := buildEntries(postings, recipients)

	p := tea.NewProgram(newAuditModel(all, matched), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	return result.(auditModel).wantQuit, nil
}

