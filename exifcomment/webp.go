package exifcomment

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
)

const exifFormat = "EXIF"

var ErrNotWebP = errors.New("not a WEBP file")

// Embed writes exifData into the EXIF chunk of the WEBP file at path,
// replacing any existing one. The file is rewritten through a temporary
// file in the same directory so a failure leaves the original intact.
func Embed(path string, exifData []byte) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", filepath.Base(path), err)
	}
	if !isWebP(data) {
		return ErrNotWebP
	}

	patched, err := webp.SetMetadata(data, exifData, exifFormat)
	if err != nil {
		return fmt.Errorf("error muxing EXIF chunk: %w", err)
	}

	return replaceFile(path, patched)
}

// Read returns the user comment embedded in the WEBP file at path.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Decode(data)
}

// Decode returns the user comment embedded in an encoded WEBP image.
// ErrNoComment is returned when the image has no EXIF chunk or the chunk
// carries no UserComment.
func Decode(data []byte) (string, error) {
	if !isWebP(data) {
		return "", ErrNotWebP
	}

	raw, err := webp.GetMetadata(data, exifFormat)
	if err != nil || len(raw) == 0 {
		return "", ErrNoComment
	}
	return Parse(raw)
}

func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WEBP"))
}

func replaceFile(path string, data []byte) (err error) {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), ".exif-*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if err != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err = tempFile.Write(data); err != nil {
		return fmt.Errorf("error writing temporary file: %w", err)
	}
	if err = tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err = os.Chmod(tempPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("error setting permissions: %w", err)
	}
	if err = os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("error replacing file: %w", err)
	}
	return nil
}
