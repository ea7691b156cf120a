package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const (
	startedBanner   = "!---- Search Started ----!"
	completedBanner = "!----Search Completed----!"
	matchRule       = "--------------"

	// MissingTargetMessage is printed when the command runs without a target.
	MissingTargetMessage = `Please Enter a target. I.e. "<thread>"`
)

// Printer writes console output. Every block is built in memory and handed
// to the writer in one Write while holding the shared lock, so blocks from
// different workers never interleave.
type Printer struct {
	w  io.Writer
	mu *sync.Mutex

	banner lipgloss.Style
	label  lipgloss.Style
	rule   lipgloss.Style
	plain  bool
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithPlain disables styling regardless of the writer.
func WithPlain() PrinterOption {
	return func(p *Printer) {
		p.plain = true
	}
}

// NewPrinter creates a Printer on w guarded by mu. Pass the mutex the
// completion tracker uses so output and task accounting serialize. Styling
// follows the writer: terminals get colors, pipes and buffers get plain text.
func NewPrinter(w io.Writer, mu *sync.Mutex, opts ...PrinterOption) *Printer {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	r := lipgloss.NewRenderer(w)
	p := &Printer{
		w:      w,
		mu:     mu,
		banner: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:  r.NewStyle().Foreground(lipgloss.Color("10")),
		rule:   r.NewStyle().Faint(true),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if p.plain {
		return text
	}
	return s.Render(text)
}

func (p *Printer) write(block string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.w, block)
	return err
}

// Started prints the banner shown before any file is submitted.
func (p *Printer) Started(root, target string, workers int) error {
	var b strings.Builder
	b.WriteString(p.style(p.banner, startedBanner))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%s %s\n", p.style(p.label, "Target Folder:"), root)
	fmt.Fprintf(&b, "%s %s\n", p.style(p.label, "Target Text:"), target)
	fmt.Fprintf(&b, "Using a Pool of %d threads to search\n", workers)
	return p.write(b.String())
}

// Match prints one match block. It implements Sink.
func (p *Printer) Match(_ context.Context, m Match) error {
	var b strings.Builder
	rule := p.style(p.rule, matchRule)
	b.WriteString(rule)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Thread %d found a match.\n", m.WorkerID)
	fmt.Fprintf(&b, "%s %s\n", p.style(p.label, "File:"), m.File)
	fmt.Fprintf(&b, "%s %s\n", p.style(p.label, fmt.Sprintf("Line %d:", m.Line)), m.Text)
	b.WriteString(rule)
	b.WriteByte('\n')
	return p.write(b.String())
}

// Completed prints the closing banner.
func (p *Printer) Completed() error {
	return p.write(p.style(p.banner, completedBanner) + "\n")
}

// MissingTarget prints the usage hint for a run without a target.
func (p *Printer) MissingTarget() error {
	return p.write(MissingTargetMessage + "\n")
}

var _ Sink = (*Printer)(nil)
