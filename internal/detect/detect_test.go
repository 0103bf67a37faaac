package detect_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mvx/internal/detect"
	"mvx/internal/format"
	"mvx/internal/services"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	pdfHeader  = []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
	wavHeader  = append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
)

// oggPage returns a single-segment first Ogg page carrying packet.
func oggPage(packet []byte) []byte {
	page := []byte("OggS\x00\x02")
	page = append(page, make([]byte, 20)...)
	page = append(page, 1, byte(len(packet)))
	return append(page, packet...)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDetectIgnoresExtension(t *testing.T) {
	cases := []struct {
		name string
		file string
		data []byte
		mime string
		kind format.Kind
	}{
		{"png named jpg", "photo.jpg", pngHeader, "image/png", format.KindImage},
		{"jpeg named txt", "notes.txt", jpegHeader, "image/jpeg", format.KindImage},
		{"gif", "anim.bin", gifHeader, "image/gif", format.KindImage},
		{"pdf", "paper", pdfHeader, format.MIMEPDF, format.KindDocument},
		{"wav", "sound.mp3", wavHeader, "audio/wav", format.KindAudio},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := detect.Detect(writeFile(t, tc.file, tc.data))
			if err != nil {
				t.Fatalf("Detect returned error: %v", err)
			}
			if got.MIME != tc.mime || got.Kind != tc.kind {
				t.Fatalf("Detect = %+v, want %s/%s", got, tc.mime, tc.kind)
			}
			if !got.Known() {
				t.Fatal("expected known type")
			}
		})
	}
}

func TestDetectUnknownBinaryIsNotAnError(t *testing.T) {
	data := bytes.Repeat([]byte{0x00, 0x13, 0x37, 0xfe}, 64)
	got, err := detect.Detect(writeFile(t, "blob.bin", data))
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if got.Known() || got.Kind != format.KindUnknown {
		t.Fatalf("expected unknown classification, got %+v", got)
	}
}

func TestDetectEmptyFileIsUnknown(t *testing.T) {
	got, err := detect.Detect(writeFile(t, "empty.png", nil))
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if got != detect.Unknown {
		t.Fatalf("expected Unknown, got %+v", got)
	}
}

func TestDetectPlainText(t *testing.T) {
	got, err := detect.Detect(writeFile(t, "readme", []byte("hello world\nsecond line\n")))
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if got.MIME != "text/plain" || got.Kind != format.KindDocument {
		t.Fatalf("expected text/plain document, got %+v", got)
	}
}

func TestDetectFailsOnlyOnIOErrors(t *testing.T) {
	_, err := detect.Detect(filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, services.ErrDetection) {
		t.Fatalf("expected ErrDetection for missing file, got %v", err)
	}
	_, err = detect.Detect(t.TempDir())
	if !errors.Is(err, services.ErrDetection) {
		t.Fatalf("expected ErrDetection for directory, got %v", err)
	}
}

func TestDetectSeparatesOggCodecs(t *testing.T) {
	opus := oggPage([]byte("OpusHead\x01\x02\x38\x01\x80\xbb\x00\x00\x00\x00\x00"))
	vorbis := oggPage([]byte("\x01vorbis\x00\x00\x00\x00\x02\x44\xac\x00\x00\x00\x00\x00\x00\x00\xee\x02\x00\x00\x00\x00\x00\xb8\x01"))

	got, err := detect.FromReader(bytes.NewReader(opus))
	if err != nil {
		t.Fatalf("FromReader returned error: %v", err)
	}
	if got.MIME != format.MIMEOpus || got.Kind != format.KindAudio || got.Ext != "opus" {
		t.Fatalf("opus stream detected as %+v", got)
	}

	got, err = detect.FromReader(bytes.NewReader(vorbis))
	if err != nil {
		t.Fatalf("FromReader returned error: %v", err)
	}
	if got.MIME != format.MIMEOgg || got.Kind != format.KindAudio {
		t.Fatalf("vorbis stream detected as %+v", got)
	}
}
