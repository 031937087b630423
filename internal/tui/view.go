package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/keepsake/internal/scene"
	"github.com/roach88/keepsake/internal/tap"
	"github.com/roach88/keepsake/internal/tear"
)

// View implements tea.Model.
func (m Model) View() string {
	f := m.frame
	s := m.styles

	header := fmt.Sprintf("%s  ·  %d/%d", f.Title, f.Index+1, f.Total)
	if f.ShowsDistance {
		header += fmt.Sprintf("  ·  %.0f km", f.Distance)
	}

	var body string
	switch f.Scene {
	case scene.Intro:
		body = m.viewIntro()
	case scene.Prologue:
		body = m.viewPrologue()
	case scene.Journeys:
		body = m.viewJourneys()
	case scene.Messages:
		body = m.viewMessages()
	case scene.Likes, scene.Links, scene.Media:
		body = m.viewCounter()
	case scene.Letter:
		body = m.viewLetter()
	case scene.Result:
		body = m.viewResult()
	}

	footer := m.help.View(m.keys)
	if m.hint != "" {
		footer = s.Hint.Render(m.hint) + "\n" + footer
	}

	return s.App.Render(lipgloss.JoinVertical(lipgloss.Left,
		s.Header.Render(header),
		s.Body.Render(body),
		s.Footer.Render(footer),
	))
}

func (m Model) viewIntro() string {
	f, s := m.frame, m.styles
	if f.Boot == scene.BootLoading {
		return s.Title.Render(f.Title) + "\n\n" +
			m.progress.ViewAs(f.Preload) + "\n" +
			s.Muted.Render("getting everything ready")
	}
	return s.Title.Render(f.Title) + "\n\n" + s.Accent.Render("press → to begin")
}

func (m Model) viewPrologue() string {
	var b strings.Builder
	for _, line := range m.frame.Prologue {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewJourneys() string {
	s := m.styles
	var b strings.Builder
	i := 0
	for _, j := range m.frame.Journeys {
		fmt.Fprintf(&b, "%s  %s\n", s.Title.Render(j.Title), s.Muted.Render(fmt.Sprintf("%.0f km", j.DistanceKm)))
		for _, st := range j.Steps {
			cursor := "  "
			if i == m.cursor {
				cursor = s.Accent.Render("› ")
			}
			fmt.Fprintf(&b, "%s%s\n", cursor, st.Prompt)
			switch {
			case st.Answered:
				fmt.Fprintf(&b, "    %s\n", m.graded(st.Answer, st.Correct))
			case len(st.Choices) > 0:
				fmt.Fprintf(&b, "    %s\n", s.Muted.Render(numbered(st.Choices)))
			default:
				fmt.Fprintf(&b, "    %s\n", s.Muted.Render("press a to answer"))
			}
			i++
		}
		b.WriteString("\n")
	}
	if m.typing {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewMessages() string {
	s := m.styles
	var b strings.Builder
	b.WriteString(s.Title.Render("Who said it?"))
	b.WriteString("\n\n")
	for i, mv := range m.frame.Messages {
		cursor := "  "
		if i == m.cursor {
			cursor = s.Accent.Render("› ")
		}
		fmt.Fprintf(&b, "%s“%s”\n", cursor, mv.Text)
		if mv.Answer != "" {
			fmt.Fprintf(&b, "    %s\n", s.Accent.Render(mv.Answer))
		} else {
			fmt.Fprintf(&b, "    %s\n", s.Muted.Render(numbered(mv.Choices)))
		}
	}
	return b.String()
}

func (m Model) viewCounter() string {
	c, s := m.frame.Counter, m.styles
	if c == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %d / %d\n\n", s.Title.Render(strings.ToUpper(c.Name)), c.Count, c.Target)
	b.WriteString(m.progress.ViewAs(c.Ratio))
	b.WriteString("\n\n")
	if c.Phase == tap.PhasePlay {
		b.WriteString(s.Muted.Render("tap space"))
		b.WriteString("\n")
	}
	for _, line := range c.Lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if c.CanAdvance {
		b.WriteString("\n")
		b.WriteString(s.Accent.Render("press → to continue"))
	}
	return b.String()
}

func (m Model) viewLetter() string {
	f, s := m.frame, m.styles
	if f.LetterOpened || (f.Tear != nil && f.Tear.Stage == tear.StageRevealed) {
		out, err := m.renderer.Render(f.Letter)
		if err != nil {
			return f.Letter
		}
		return out
	}
	if f.Tear == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(s.Title.Render("A letter for you"))
	b.WriteString("\n\n")
	b.WriteString(m.progress.ViewAs(f.Tear.Progress))
	b.WriteString("\n\n")
	switch f.Tear.Stage {
	case tear.StageIntro:
		b.WriteString(s.Muted.Render("…"))
	case tear.StageIdle:
		b.WriteString(s.Muted.Render("hold space to tear it open"))
	case tear.StageAligning:
		b.WriteString(s.Hint.Render("almost, keep going along the line"))
	case tear.StageTearing, tear.StagePrimed:
		b.WriteString(s.Accent.Render("tearing…"))
	case tear.StageBurst:
		b.WriteString(s.Accent.Render("✦"))
	}
	if !m.reduced && f.Tear.Particles > 0 {
		b.WriteString("\n")
		b.WriteString(s.Muted.Render(strings.Repeat("·", min(f.Tear.Particles, 48))))
	}
	return b.String()
}

func (m Model) viewResult() string {
	f, s := m.frame, m.styles
	var b strings.Builder
	b.WriteString(s.Title.Render(f.Headline))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "answered  %d\n", f.Stats.Answered)
	if f.Stats.Graded > 0 {
		fmt.Fprintf(&b, "correct   %d of %d (%.0f%%)\n", f.Stats.Correct, f.Stats.Graded, f.Stats.Score()*100)
	}
	return b.String()
}

func (m Model) graded(answer string, correct *bool) string {
	switch {
	case correct == nil:
		return m.styles.Accent.Render(answer)
	case *correct:
		return m.styles.Correct.Render(answer + " ✓")
	default:
		return m.styles.Wrong.Render(answer + " ✗")
	}
}

func numbered(choices []string) string {
	parts := make([]string, len(choices))
	for i, c := range choices {
		parts[i] = fmt.Sprintf("%d %s", i+1, c)
	}
	return strings.Join(parts, "   ")
}
