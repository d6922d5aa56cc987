package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"ragchat/internal/domain"
	"ragchat/internal/usecase"
)

// Adaptive palette; NO_COLOR and non-TTY outputs are handled by lipgloss.
var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	colorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
	colorBorder  = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}
)

var (
	styleUser    = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleBot     = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleHeader  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleCell    = lipgloss.NewStyle().Padding(0, 1)
)

const (
	labelUser = "You"
	labelBot  = "Assistant"

	defaultWrapWidth = 100
)

// renderer writes everything the CLI shows the user.
type renderer struct {
	out      io.Writer
	markdown bool
	width    int
	md       *glamour.TermRenderer
}

func newRenderer(out io.Writer, markdown bool) *renderer {
	return &renderer{out: out, markdown: markdown, width: defaultWrapWidth}
}

func (r *renderer) prompt() {
	fmt.Fprint(r.out, styleUser.Render(labelUser+">")+" ")
}

func (r *renderer) replyStart() {
	fmt.Fprintln(r.out, styleBot.Render(labelBot+":"))
}

// chunk shows one streamed result. With markdown enabled the reply is
// rendered once complete instead.
func (r *renderer) chunk(text string) {
	if r.markdown {
		return
	}
	fmt.Fprint(r.out, text)
}

// replyEnd finishes a reply whose full text is content.
func (r *renderer) replyEnd(content string) {
	if r.markdown && content != "" {
		fmt.Fprint(r.out, r.renderMarkdown(content))
		return
	}
	fmt.Fprintln(r.out)
}

func (r *renderer) renderMarkdown(content string) string {
	if r.md == nil {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(r.width),
		)
		if err != nil {
			return content + "\n"
		}
		r.md = md
	}
	rendered, err := r.md.Render(content)
	if err != nil {
		return content + "\n"
	}
	return rendered
}

func (r *renderer) success(format string, args ...any) {
	fmt.Fprintln(r.out, styleSuccess.Render("✓")+" "+fmt.Sprintf(format, args...))
}

func (r *renderer) warn(format string, args ...any) {
	fmt.Fprintln(r.out, styleWarning.Render("!")+" "+fmt.Sprintf(format, args...))
}

func (r *renderer) failure(err error) {
	code := domain.ErrorCodeOf(err)
	fmt.Fprintln(r.out, styleError.Render("✗ "+string(code))+" "+err.Error())
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(r.out, styleMuted.Render("  hint: "+hint))
	}
}

var classifier = usecase.NewErrorClassifier()

// errorHint suggests what to do about err, if anything useful is known.
func errorHint(err error) string {
	c := classifier.Classify(err)
	if c.Hint == "" {
		return ""
	}
	if c.Category == usecase.ErrorCategoryRetryable {
		return c.Hint + " (retryable)"
	}
	return c.Hint
}

func (r *renderer) muted(format string, args ...any) {
	fmt.Fprintln(r.out, styleMuted.Render(fmt.Sprintf(format, args...)))
}

func (r *renderer) upload(resp *domain.UploadResponse) {
	if resp.TaskID == "" {
		r.success("upload accepted (status %s)", resp.Status)
		return
	}
	r.success("upload accepted: task %s (status %s)", resp.TaskID, resp.Status)
}

func (r *renderer) taskStatus(st domain.TaskStatus) {
	line := fmt.Sprintf("task %s: %s", st.ID, st.Status)
	if st.Progress != nil {
		line += fmt.Sprintf(" (%.0f%%)", *st.Progress*100)
	}
	switch st.Status {
	case domain.TaskSucceeded:
		r.success("%s", line)
	case domain.TaskFailed:
		if st.Error != "" {
			line += ": " + st.Error
		}
		fmt.Fprintln(r.out, styleError.Render("✗")+" "+line)
	default:
		r.muted("%s", line)
	}
}

func (r *renderer) documents(list *domain.DocumentListResponse) {
	if len(list.Documents) == 0 {
		r.muted("no documents")
		return
	}
	rows := make([][]string, 0, len(list.Documents))
	for _, d := range list.Documents {
		rows = append(rows, []string{d.ID, d.Title, d.Status, d.CreatedAt})
	}
	fmt.Fprintln(r.out, newTable([]string{"ID", "TITLE", "STATUS", "CREATED"}, rows))
}

func (r *renderer) sessions(list []domain.SessionSummary) {
	if len(list) == 0 {
		r.muted("no stored conversations")
		return
	}
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{
			s.SessionID,
			fmt.Sprint(s.MessageCount),
			s.UpdatedAt.Local().Format(time.DateTime),
			truncate(s.FirstMessage, 48),
		})
	}
	fmt.Fprintln(r.out, newTable([]string{"SESSION", "MESSAGES", "UPDATED", "FIRST MESSAGE"}, rows))
}

func (r *renderer) transcript(msgs []domain.Message) {
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(r.out)
		}
		label := styleUser.Render(labelUser + ":")
		if m.Role == domain.RoleAssistant {
			label = styleBot.Render(labelBot + ":")
		}
		fmt.Fprintln(r.out, label+" "+styleMuted.Render(m.Timestamp.Local().Format(time.DateTime)))
		if m.Role == domain.RoleAssistant && r.markdown {
			fmt.Fprint(r.out, r.renderMarkdown(m.Content))
			continue
		}
		fmt.Fprintln(r.out, m.Content)
	}
}

func newTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		}).
		Render()
}

// truncate shortens s to at most n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
