package exifcomment

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	xwebp "golang.org/x/image/webp"
)

func TestBuildParse(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain", "a cute cat"},
		{"multi line", "Steps: 20\nSampler: Euler"},
		{"non latin", "猫耳の少女, masterpiece 🐱"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Build(tt.text)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if !bytes.HasPrefix(raw, []byte("MM\x00\x2a")) {
				t.Errorf("Build output starts with %q, want big-endian TIFF header", raw[:4])
			}

			got, err := Parse(raw)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got != tt.text {
				t.Errorf("Parse() = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestBuild_DeclaresUnicode(t *testing.T) {
	raw, err := Build("hi")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := append([]byte("UNICODE\x00"), 0x00, 'h', 0x00, 'i')
	if !bytes.Contains(raw, want) {
		t.Errorf("EXIF block does not contain UNICODE-prefixed UTF-16BE value % x", want)
	}
	if bytes.Contains(raw, []byte("Unicode\x00")) {
		t.Error("EXIF block declares the mixed-case Unicode character code")
	}
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name string
		val  []byte
		want string
	}{
		{"ascii", []byte("ASCII\x00\x00\x00hello\x00"), "hello"},
		{"unicode big endian", []byte("UNICODE\x00\x00o\x00k"), "ok"},
		{"unicode with little endian bom", []byte("UNICODE\x00\xff\xfeo\x00k\x00"), "ok"},
		{"unicode mixed case code", []byte("Unicode\x00\x00o\x00k"), "ok"},
		{"ascii lower case code", []byte("ascii\x00\x00\x00hello"), "hello"},
		{"undefined code", []byte("\x00\x00\x00\x00\x00\x00\x00\x00raw"), "raw"},
		{"short value", []byte("abc\x00"), "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeValue(tt.val)
			if err != nil {
				t.Fatalf("decodeValue: %v", err)
			}
			if got != tt.want {
				t.Errorf("decodeValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmbedRead(t *testing.T) {
	path := writeWebP(t)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Decode(before); !errors.Is(err, ErrNoComment) {
		t.Fatalf("Decode before embed: err = %v, want ErrNoComment", err)
	}

	raw, err := Build("Steps: 20\nSampler: Euler")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := Embed(path, raw); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "Steps: 20\nSampler: Euler" {
		t.Errorf("Read() = %q", got)
	}

	// The patched container must still be a decodable image.
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := xwebp.DecodeConfig(f)
	if err != nil {
		t.Fatalf("DecodeConfig after embed: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 6 {
		t.Errorf("dimensions = %dx%d, want 8x6", cfg.Width, cfg.Height)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries after embed, want only the image", len(entries))
	}
}

func TestEmbed_ReplacesExisting(t *testing.T) {
	path := writeWebP(t)
	for _, text := range []string{"first", "second"} {
		raw, err := Build(text)
		if err != nil {
			t.Fatal(err)
		}
		if err := Embed(path, raw); err != nil {
			t.Fatalf("Embed(%q): %v", text, err)
		}
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "second" {
		t.Errorf("Read() = %q, want %q", got, "second")
	}
}

func TestEmbed_NotWebP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.webp")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nnot webp"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Embed(path, []byte("MM\x00\x2a")); !errors.Is(err, ErrNotWebP) {
		t.Errorf("Embed error = %v, want ErrNotWebP", err)
	}
	if _, err := Read(path); !errors.Is(err, ErrNotWebP) {
		t.Errorf("Read error = %v, want ErrNotWebP", err)
	}
}

func writeWebP(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 40), B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: 100}); err != nil {
		t.Fatalf("webp.Encode: %v", err)
	}

	path := filepath.Join(t.TempDir(), "image.webp")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
