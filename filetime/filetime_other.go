//go:build !windows

package filetime

func newPlatformWriter() Writer {
	return portableWriter{}
}
