// Package filetime captures a file's timestamps and reapplies them to
// another file.
package filetime

import (
	"fmt"
	"os"
	"time"

	"github.com/djherbis/times"
)

// Times holds the timestamps captured from a source file. Created is only
// meaningful when HasCreated is set.
type Times struct {
	Accessed   time.Time
	Modified   time.Time
	Created    time.Time
	HasCreated bool
}

// Read captures the access, modification and, where the platform records
// one, creation time of path.
func Read(path string) (Times, error) {
	ts, err := times.Stat(path)
	if err != nil {
		return Times{}, fmt.Errorf("error reading file times: %w", err)
	}

	t := Times{
		Accessed: ts.AccessTime(),
		Modified: ts.ModTime(),
	}
	if ts.HasBirthTime() {
		t.Created = ts.BirthTime()
		t.HasCreated = true
	}
	return t, nil
}

// Writer reapplies captured timestamps to a file.
type Writer interface {
	Restore(path string, t Times) error
	// SetsCreationTime reports whether Restore also sets the creation time.
	SetsCreationTime() bool
}

// NewWriter returns the most capable Writer for the running platform.
func NewWriter() Writer {
	return newPlatformWriter()
}

// Portable returns a Writer that only sets access and modification times.
func Portable() Writer {
	return portableWriter{}
}

type portableWriter struct{}

func (portableWriter) Restore(path string, t Times) error {
	if err := os.Chtimes(path, t.Accessed, t.Modified); err != nil {
		return fmt.Errorf("error setting file times: %w", err)
	}
	return nil
}

func (portableWriter) SetsCreationTime() bool { return false }
