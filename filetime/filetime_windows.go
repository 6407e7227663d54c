//go:build windows

package filetime

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func newPlatformWriter() Writer {
	return windowsWriter{}
}

// windowsWriter sets creation, access and write times in one SetFileTime
// call on a handle opened for attribute writes.
type windowsWriter struct{}

func (windowsWriter) SetsCreationTime() bool { return true }

func (windowsWriter) Restore(path string, t Times) error {
	if !t.HasCreated {
		return portableWriter{}.Restore(path, t)
	}

	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}

	handle, err := windows.CreateFile(
		name,
		windows.FILE_WRITE_ATTRIBUTES,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return fmt.Errorf("error opening file handle: %w", err)
	}
	defer windows.CloseHandle(handle)

	ctime := windows.NsecToFiletime(t.Created.UnixNano())
	atime := windows.NsecToFiletime(t.Accessed.UnixNano())
	mtime := windows.NsecToFiletime(t.Modified.UnixNano())

	if err := windows.SetFileTime(handle, &ctime, &atime, &mtime); err != nil {
		return fmt.Errorf("error setting file times: %w", err)
	}
	return nil
}
