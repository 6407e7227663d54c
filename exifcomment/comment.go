// Package exifcomment stores a free-text blob in the EXIF UserComment tag
// of WEBP files and reads it back.
package exifcomment

import (
	"bytes"
	"errors"
	"fmt"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	goexif "github.com/rwcarlsen/goexif/exif"
	"golang.org/x/text/encoding/unicode"
)

const (
	userCommentTagID = 0x9286
	// UserComment values start with an 8-byte character code.
	prefixSize = 8
)

var (
	unicodePrefix = []byte("UNICODE\x00")
	asciiPrefix   = []byte("ASCII\x00\x00\x00")
)

var ErrNoComment = errors.New("no EXIF user comment")

// Build returns a big-endian TIFF/EXIF block whose Exif sub-IFD holds a
// single UserComment tag with text declared as UNICODE (UTF-16BE).
func Build(text string) ([]byte, error) {
	encoded, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().String(text)
	if err != nil {
		return nil, fmt.Errorf("error encoding comment as UTF-16: %w", err)
	}

	im := exifcommon.NewIfdMapping()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return nil, fmt.Errorf("error loading IFD mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	order := exifcommon.EncodeDefaultByteOrder

	rootIb := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, order)
	exifIb := exif.NewIfdBuilder(im, ti, exifcommon.IfdExifStandardIfdIdentity, order)

	// The value is added as raw bytes: go-exif's own UserComment encoder
	// writes the character code as "Unicode\0", which readers matching the
	// EXIF "UNICODE\0" code reject.
	value := append(append([]byte{}, unicodePrefix...), encoded...)
	bt := exif.NewBuilderTag(
		exifIb.IfdIdentity().UnindexedString(),
		userCommentTagID,
		exifcommon.TypeUndefined,
		exif.NewIfdBuilderTagValueFromBytes(value),
		order,
	)
	if err := exifIb.Add(bt); err != nil {
		return nil, fmt.Errorf("error adding UserComment: %w", err)
	}
	if err := rootIb.AddChildIb(exifIb); err != nil {
		return nil, fmt.Errorf("error linking Exif IFD: %w", err)
	}

	data, err := exif.NewIfdByteEncoder().EncodeToExif(rootIb)
	if err != nil {
		return nil, fmt.Errorf("error encoding EXIF: %w", err)
	}
	return data, nil
}

// Parse extracts the UserComment text from a raw EXIF block (TIFF header,
// optionally preceded by "Exif\0\0").
func Parse(raw []byte) (string, error) {
	x, err := goexif.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("error decoding EXIF: %w", err)
	}

	tag, err := x.Get(goexif.UserComment)
	if err != nil {
		if goexif.IsTagNotPresentError(err) {
			return "", ErrNoComment
		}
		return "", err
	}
	return decodeValue(tag.Val)
}

func decodeValue(val []byte) (string, error) {
	if len(val) < prefixSize {
		return string(bytes.TrimRight(val, "\x00")), nil
	}

	code, body := val[:prefixSize], val[prefixSize:]
	// go-exif writes "Unicode\0", so character codes are matched without case.
	switch {
	case bytes.EqualFold(code, unicodePrefix):
		// Big-endian unless the writer left a byte order mark.
		s, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(body)
		if err != nil {
			return "", fmt.Errorf("error decoding UTF-16 comment: %w", err)
		}
		return string(s), nil
	case bytes.EqualFold(code, asciiPrefix):
		return string(bytes.TrimRight(body, "\x00")), nil
	default:
		// JIS and undefined character codes are passed through as raw bytes.
		return string(bytes.TrimRight(body, "\x00")), nil
	}
}
