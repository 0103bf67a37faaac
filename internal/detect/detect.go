// Package detect classifies a file by its leading bytes. The extension is
// never consulted, so a mislabelled file is planned as what it really is.
package detect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"mvx/internal/format"
	"mvx/internal/services"
)

// PrefixLimit bounds how many bytes are read from the source. Office
// containers need more than the engine default to reach their manifest.
const PrefixLimit = 64 * 1024

var limitOnce sync.Once

// Type is the canonical content classification of a source file.
type Type struct {
	MIME string
	Kind format.Kind
	// Ext is the conventional extension for MIME, without a dot. Empty for
	// unknown content.
	Ext string
}

// Known reports whether a signature matched.
func (t Type) Known() bool {
	return t.MIME != "" && t.MIME != format.UnknownType
}

func (t Type) String() string {
	if t.MIME == "" {
		return format.UnknownType
	}
	return t.MIME
}

// Unknown is returned when no signature matches.
var Unknown = Type{MIME: format.UnknownType, Kind: format.KindUnknown}

// Detect reads a bounded prefix of path and returns its content type. It
// only fails when the file cannot be read.
func Detect(path string) (Type, error) {
	limitOnce.Do(func() { mimetype.SetLimit(PrefixLimit) })

	file, err := os.Open(path)
	if err != nil {
		return Type{}, services.Wrap(services.ErrDetection, "detect", "open", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Type{}, services.Wrap(services.ErrDetection, "detect", "stat", path, err)
	}
	if info.IsDir() {
		return Type{}, services.Wrap(services.ErrDetection, "detect", "open", fmt.Sprintf("%s is a directory", path), nil)
	}
	if info.Size() == 0 {
		return Unknown, nil
	}

	return FromReader(io.LimitReader(file, PrefixLimit))
}

// FromReader classifies the bytes in r.
func FromReader(r io.Reader) (Type, error) {
	limitOnce.Do(func() { mimetype.SetLimit(PrefixLimit) })

	prefix, err := io.ReadAll(io.LimitReader(r, PrefixLimit))
	if err != nil && !errors.Is(err, io.EOF) {
		return Type{}, services.Wrap(services.ErrDetection, "detect", "read", "", err)
	}
	if len(prefix) == 0 {
		return Unknown, nil
	}
	detected := mimetype.Detect(prefix)
	if isOggOpus(detected.String(), prefix) {
		return fromMIME(format.MIMEOpus, ".opus"), nil
	}
	return fromMIME(detected.String(), detected.Extension()), nil
}

// oggCodecOffset is where the first packet of the first Ogg page begins for
// a single-segment page, which every Opus and Vorbis header page is.
const oggCodecOffset = 28

// isOggOpus separates Opus from the other codecs the engine files under one
// Ogg audio type.
func isOggOpus(mime string, prefix []byte) bool {
	if format.NormalizeMIME(mime) != format.MIMEOgg {
		return false
	}
	return bytes.HasPrefix(prefix, []byte("OggS")) &&
		len(prefix) >= oggCodecOffset+8 &&
		bytes.Equal(prefix[oggCodecOffset:oggCodecOffset+8], []byte("OpusHead"))
}

func fromMIME(raw, ext string) Type {
	mime := format.NormalizeMIME(raw)
	kind := format.KindOfMIME(mime)
	if kind == format.KindUnknown && !format.IsDocumentInput(mime) && mime != format.MIMEPDF {
		return Unknown
	}
	return Type{MIME: mime, Kind: kind, Ext: format.NormalizeExt(ext)}
}
