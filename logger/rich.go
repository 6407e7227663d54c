package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
)

const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
)

type RichLoggerOptions struct {
	Output           io.Writer
	TimeFormat       string
	Level            slog.Level
	AddSource        bool
	EnableJSON       bool
	EnableColors     bool
	TimestampInJSON  bool
	EnableSeparators bool
}

func DefaultOptions() *RichLoggerOptions {
	return &RichLoggerOptions{
		Level:            slog.LevelInfo,
		AddSource:        false,
		EnableColors:     true,
		TimeFormat:       "2006-01-02 15:04:05.000",
		Output:           os.Stdout,
		TimestampInJSON:  true,
		EnableSeparators: false,
	}
}

// RichHandler renders records as coloured text lines or one JSON object
// per line. Handlers derived through WithAttrs/WithGroup share the parent's
// lock, so every record reaches Output in a single write.
type RichHandler struct {
	opts   *RichLoggerOptions
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

func NewRichHandler(opts *RichLoggerOptions) *RichHandler {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &RichHandler{
		opts: opts,
		mu:   &sync.Mutex{},
	}
}

func (h *RichHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

func (h *RichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, h.qualify(a))
	}
	return h2
}

func (h *RichHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.groups = append(h2.groups, name)
	return h2
}

func (h *RichHandler) clone() *RichHandler {
	h2 := &RichHandler{
		opts:   h.opts,
		mu:     h.mu,
		attrs:  make([]slog.Attr, len(h.attrs)),
		groups: make([]string, len(h.groups)),
	}
	copy(h2.attrs, h.attrs)
	copy(h2.groups, h.groups)
	return h2
}

func (h *RichHandler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}
	a.Key = strings.Join(h.groups, ".") + "." + a.Key
	return a
}

// collectAttrs returns handler attrs followed by record attrs.
func (h *RichHandler) collectAttrs(record slog.Record) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(h.attrs)+record.NumAttrs())
	attrs = append(attrs, h.attrs...)
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.qualify(a))
		return true
	})
	return attrs
}

func (h *RichHandler) Handle(ctx context.Context, record slog.Record) error {
	var line []byte
	var err error
	if h.opts.EnableJSON {
		line, err = h.formatJSON(record)
	} else {
		line = h.formatText(record)
	}
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.opts.Output.Write(line)
	return err
}

func (h *RichHandler) formatJSON(record slog.Record) ([]byte, error) {
	jsonMap := make(map[string]any)

	if h.opts.TimestampInJSON {
		jsonMap["time"] = record.Time.Format(h.opts.TimeFormat)
	}
	jsonMap["level"] = record.Level.String()

	if h.opts.AddSource && record.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{record.PC})
		f, _ := fs.Next()
		jsonMap["source"] = fmt.Sprintf("%s:%d", f.File, f.Line)
	}

	jsonMap["msg"] = record.Message

	for _, a := range h.collectAttrs(record) {
		v := a.Value.Resolve()
		if err, ok := v.Any().(error); ok {
			jsonMap[a.Key] = err.Error()
			continue
		}
		jsonMap[a.Key] = v.Any()
	}

	data, err := json.Marshal(jsonMap)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

var levelColors = map[slog.Level]string{
	slog.LevelDebug: Cyan,
	slog.LevelInfo:  Green,
	slog.LevelWarn:  Yellow,
	slog.LevelError: Red,
}

func (h *RichHandler) formatText(record slog.Record) []byte {
	var b strings.Builder
	colors := h.opts.EnableColors

	paint := func(color, s string) {
		if colors {
			b.WriteString(color)
			b.WriteString(s)
			b.WriteString(Reset)
			return
		}
		b.WriteString(s)
	}

	paint(Blue, record.Time.Format(h.opts.TimeFormat))
	b.WriteString(" ")
	paint(levelColors[record.Level]+Bold, fmt.Sprintf("%-5s", strings.ToUpper(record.Level.String())))
	b.WriteString(" ")

	if h.opts.AddSource && record.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{record.PC})
		f, _ := fs.Next()
		sourceFile := f.File
		if lastSlash := strings.LastIndex(sourceFile, "/"); lastSlash >= 0 {
			sourceFile = sourceFile[lastSlash+1:]
		}
		paint(Magenta, fmt.Sprintf("%s:%d", sourceFile, f.Line))
		b.WriteString(" ")
	}

	b.WriteString(record.Message)

	for _, a := range h.collectAttrs(record) {
		b.WriteString(" ")
		paint(Dim, a.Key+"=")
		b.WriteString(formatValue(a.Value.Resolve()))
	}

	if h.opts.EnableSeparators {
		b.WriteString("\n")
		paint(Blue, strings.Repeat("─", 80))
	}

	b.WriteString("\n")
	return []byte(b.String())
}

func formatValue(v slog.Value) string {
	s := v.String()
	if strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func NewRichLogger(opts *RichLoggerOptions) *slog.Logger {
	return slog.New(NewRichHandler(opts))
}
