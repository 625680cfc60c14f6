// Package tui renders live progress while a batch collects completions.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/lyricgen/lyricgen/internal/fanout"
	"github.com/lyricgen/lyricgen/internal/model"
)

// resultMsg carries one result accepted into the batch.
type resultMsg struct {
	result model.CompletionResult
}

// doneMsg is sent once the coordinator returns.
type doneMsg struct {
	report fanout.Report
	err    error
}

var quitKey = key.NewBinding(
	key.WithKeys("ctrl+c", "q", "esc"),
	key.WithHelp("q", "stop batch"),
)

const previewWidth = 60

// Progress is the bubbletea model for a collecting batch.
type Progress struct {
	requested   int
	succeeded   int
	latest      []model.CompletionResult
	failure     *model.CompletionResult
	spinner     spinner.Model
	cancel      context.CancelFunc
	interrupted bool
	done        bool
	report      fanout.Report
	err         error
}

// NewProgress builds the model. cancel is invoked when the operator stops
// the batch early.
func NewProgress(requested int, cancel context.CancelFunc) Progress {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleWarn
	return Progress{requested: requested, spinner: sp, cancel: cancel}
}

func (m Progress) Init() bubbletea.Cmd {
	return m.spinner.Tick
}

func (m Progress) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.KeyMsg:
		if key.Matches(msg, quitKey) && !m.interrupted {
			m.interrupted = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case resultMsg:
		if msg.result.Succeeded() {
			m.succeeded++
			m.latest = append(m.latest, msg.result)
			if len(m.latest) > 3 {
				m.latest = m.latest[len(m.latest)-3:]
			}
		} else if m.failure == nil {
			failure := msg.result
			m.failure = &failure
		}
		return m, nil

	case doneMsg:
		m.done = true
		m.report = msg.report
		m.err = msg.err
		return m, bubbletea.Quit

	case spinner.TickMsg:
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Progress) View() string {
	var b strings.Builder

	switch {
	case m.done && m.failure != nil:
		b.WriteString(styleFail.Render("✗") + " ")
	case m.done:
		b.WriteString(stylePass.Render("✓") + " ")
	default:
		b.WriteString(m.spinner.View() + " ")
	}
	b.WriteString(styleTitle.Render(fmt.Sprintf("Collected %d/%d completions", m.succeeded, m.requested)))
	b.WriteString("\n")

	for _, res := range m.latest {
		b.WriteString(styleDim.Render(fmt.Sprintf("  t=%.1f  %s", res.Temperature, preview(res.Text))))
		b.WriteString("\n")
	}

	if m.failure != nil {
		b.WriteString(styleFail.Render(fmt.Sprintf("  unit %d failed: %s", m.failure.Index+1, m.failure.FailureReason)))
		b.WriteString("\n")
	}
	switch {
	case m.interrupted && !m.done:
		b.WriteString(styleWarn.Render("  stopping batch..."))
		b.WriteString("\n")
	case !m.done:
		b.WriteString(styleDim.Render("  " + quitKey.Help().Key + " " + quitKey.Help().Desc))
		b.WriteString("\n")
	}
	return b.String()
}

// Report returns the coordinator outcome once the batch has finished.
func (m Progress) Report() (fanout.Report, error) {
	return m.report, m.err
}

func preview(text string) string {
	line := strings.Join(strings.Fields(text), " ")
	runes := []rune(line)
	if len(runes) > previewWidth {
		return string(runes[:previewWidth-1]) + "…"
	}
	return line
}

// RunFunc runs a batch, reporting each accepted result to observe.
type RunFunc func(ctx context.Context, observe fanout.Observer) (fanout.Report, error)

// RunProgress drives run under a progress view. Stopping the view cancels
// the batch context; RunProgress always waits for run to return.
func RunProgress(ctx context.Context, requested int, run RunFunc, opts ...bubbletea.ProgramOption) (fanout.Report, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := bubbletea.NewProgram(NewProgress(requested, cancel), opts...)

	finished := make(chan doneMsg, 1)
	go func() {
		report, err := run(runCtx, func(res model.CompletionResult) {
			p.Send(resultMsg{result: res})
		})
		finished <- doneMsg{report: report, err: err}
		p.Send(doneMsg{report: report, err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		return fanout.Report{}, fmt.Errorf("progress view: %w", err)
	}
	done := <-finished
	return done.report, done.err
}
