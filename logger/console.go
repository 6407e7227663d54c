package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Console struct {
	Logger    *slog.Logger
	Out       io.Writer
	Colorized bool
}

func NewConsole(opts *RichLoggerOptions) *Console {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Console{
		Logger:    NewRichLogger(opts),
		Out:       opts.Output,
		Colorized: opts.EnableColors && !opts.EnableJSON,
	}
}

// With returns a Console whose records carry the given slog attributes.
func (c *Console) With(args ...any) *Console {
	return &Console{
		Logger:    c.Logger.With(args...),
		Out:       c.Out,
		Colorized: c.Colorized,
	}
}

func (c *Console) StartTimer(name string) *Timer {
	return &Timer{
		Name:      name,
		StartTime: time.Now(),
		Console:   c,
	}
}

func (c *Console) decorate(icon, color, format string, args []any) string {
	msg := icon + fmt.Sprintf(format, args...)
	if c.Colorized {
		msg = color + msg + Reset
	}
	return msg
}

func (c *Console) Success(format string, args ...any) {
	c.Logger.Info(c.decorate("✓ ", Green+Bold, format, args))
}

func (c *Console) Info(format string, args ...any) {
	c.Logger.Info(c.decorate("ℹ ", Blue+Bold, format, args))
}

func (c *Console) Debug(format string, args ...any) {
	c.Logger.Debug(c.decorate("", Cyan, format, args))
}

func (c *Console) Warn(format string, args ...any) {
	c.Logger.Warn(c.decorate("⚠ ", Yellow+Bold, format, args))
}

func (c *Console) Error(format string, args ...any) {
	c.Logger.Error(c.decorate("✖ ", Red+Bold, format, args))
}

func (c *Console) NewProgressBar(total int64, label string) *ProgressBar {
	return NewProgressBar(total, label, c.Out)
}

func (c *Console) NewTable(headers []string) *Table {
	return NewTable(headers, c.Out)
}

func (c *Console) Box(title string, content string) {
	lines := strings.Split(content, "\n")
	maxWidth := len(title)

	for _, line := range lines {
		if len(line) > maxWidth {
			maxWidth = len(line)
		}
	}

	maxWidth += 4

	var sb strings.Builder
	sb.WriteString("┌─" + title + "─" + strings.Repeat("─", maxWidth-len(title)-2) + "┐\n")
	for _, line := range lines {
		sb.WriteString("│ " + line + strings.Repeat(" ", maxWidth-len(line)) + " │\n")
	}
	sb.WriteString("└" + strings.Repeat("─", maxWidth+2) + "┘\n")

	io.WriteString(c.Out, sb.String())
}
