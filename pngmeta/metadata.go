package pngmeta

import (
	"strings"
	"unicode"
)

// ParametersKey is the text chunk keyword written by the AUTOMATIC1111 web UI.
// Its value is already a complete "prompt\nNegative prompt: ...\nSteps: ..."
// block, so it is emitted without a key prefix.
const ParametersKey = "parameters"

type Entry struct {
	Key   string
	Value string
}

// Metadata is an insertion-ordered string map of PNG text chunks.
// A zero value is not usable; call New.
type Metadata struct {
	entries []Entry
	index   map[string]int
}

func New() *Metadata {
	return &Metadata{index: make(map[string]int)}
}

// Set adds key or replaces its value. A replaced key keeps the position it
// was first seen at.
func (m *Metadata) Set(key, value string) {
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

func (m *Metadata) Len() int {
	return len(m.entries)
}

func (m *Metadata) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Flatten joins the entries into one text blob, one line per entry:
// the "parameters" value verbatim, every other entry as "key: value".
// Trailing whitespace is trimmed.
func (m *Metadata) Flatten() string {
	var sb strings.Builder
	for _, e := range m.entries {
		if e.Key == ParametersKey {
			sb.WriteString(e.Value)
		} else {
			sb.WriteString(e.Key)
			sb.WriteString(": ")
			sb.WriteString(e.Value)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRightFunc(sb.String(), unicode.IsSpace)
}
