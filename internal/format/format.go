// Package format holds the static knowledge about file extensions: their
// canonical content types, media family, and which ones the conversion
// backends can read or write.
package format

import (
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the broad media family of a content type.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindAudio
	KindVideo
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

// IsMedia reports whether the kind is an audio/video container family.
func (k Kind) IsMedia() bool {
	return k == KindAudio || k == KindVideo
}

// UnknownType is the canonical type for content no signature matched.
const UnknownType = "application/octet-stream"

const (
	MIMEPDF  = "application/pdf"
	MIMEOgg  = "audio/ogg"
	MIMEOpus = "audio/opus"
	mimeText = "text/plain"
)

var aliases = map[string]string{
	"jpeg": "jpg",
	"tif":  "tiff",
	"htm":  "html",
}

type entry struct {
	mime string
	kind Kind
}

var byExt = map[string]entry{
	"jpg":  {"image/jpeg", KindImage},
	"png":  {"image/png", KindImage},
	"gif":  {"image/gif", KindImage},
	"webp": {"image/webp", KindImage},
	"bmp":  {"image/bmp", KindImage},
	"tiff": {"image/tiff", KindImage},
	"heic": {"image/heic", KindImage},
	"avif": {"image/avif", KindImage},

	"mp3":  {"audio/mpeg", KindAudio},
	"wav":  {"audio/wav", KindAudio},
	"flac": {"audio/flac", KindAudio},
	"aac":  {"audio/aac", KindAudio},
	"ogg":  {MIMEOgg, KindAudio},
	"m4a":  {"audio/x-m4a", KindAudio},
	"opus": {MIMEOpus, KindAudio},

	"mp4":  {"video/mp4", KindVideo},
	"mov":  {"video/quicktime", KindVideo},
	"mkv":  {"video/x-matroska", KindVideo},
	"webm": {"video/webm", KindVideo},
	"avi":  {"video/x-msvideo", KindVideo},

	"pdf":  {MIMEPDF, KindDocument},
	"doc":  {"application/msword", KindDocument},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", KindDocument},
	"ppt":  {"application/vnd.ms-powerpoint", KindDocument},
	"pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation", KindDocument},
	"xls":  {"application/vnd.ms-excel", KindDocument},
	"xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", KindDocument},
	"odt":  {"application/vnd.oasis.opendocument.text", KindDocument},
	"odp":  {"application/vnd.oasis.opendocument.presentation", KindDocument},
	"ods":  {"application/vnd.oasis.opendocument.spreadsheet", KindDocument},
	"rtf":  {"text/rtf", KindDocument},
	"txt":  {mimeText, KindDocument},
	"html": {"text/html", KindDocument},
}

var byMIME = func() map[string]Kind {
	out := make(map[string]Kind, len(byExt))
	for _, e := range byExt {
		out[e.mime] = e.kind
	}
	return out
}()

// Alternate spellings emitted by signature engines and older tooling.
var mimeAliases = map[string]string{
	"audio/x-wav":     "audio/wav",
	"audio/wave":      "audio/wav",
	"audio/vnd.wave":  "audio/wav",
	"audio/x-flac":    "audio/flac",
	"audio/mp3":       "audio/mpeg",
	"audio/x-mpeg":    "audio/mpeg",
	"audio/mp4":       "audio/x-m4a",
	"audio/x-aac":     "audio/aac",
	"image/jpg":       "image/jpeg",
	"image/x-ms-bmp":  "image/bmp",
	"video/avi":       "video/x-msvideo",
	"video/msvideo":   "video/x-msvideo",
	"application/rtf": "text/rtf",
	"application/ogg": MIMEOgg,
	"image/heif":      "image/heic",
}

// Documents LibreOffice can read.
var documentInputs = map[string]bool{
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/vnd.ms-excel":                                                  true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.oasis.opendocument.text":                                   true,
	"application/vnd.oasis.opendocument.presentation":                           true,
	"application/vnd.oasis.opendocument.spreadsheet":                            true,

	"text/rtf":   true,
	"text/plain": true,
	"text/html":  true,
}

// Formats that can carry several frames; single-frame destinations take the first.
var multiFrame = map[string]bool{
	"image/gif":  true,
	"image/tiff": true,
	"image/webp": true,
	MIMEPDF:      true,
}

// NormalizeExt lower-cases ext, strips a leading dot, and applies aliases.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if canonical, ok := aliases[ext]; ok {
		return canonical
	}
	return ext
}

// ExtOf returns the normalized extension of path.
func ExtOf(path string) string {
	return NormalizeExt(filepath.Ext(path))
}

// NormalizeMIME strips parameters and folds alternate spellings.
func NormalizeMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if base, _, ok := strings.Cut(mime, ";"); ok {
		mime = strings.TrimSpace(base)
	}
	if canonical, ok := mimeAliases[mime]; ok {
		return canonical
	}
	if mime == "" {
		return UnknownType
	}
	return mime
}

// MIMEForExt returns the canonical content type written under ext.
func MIMEForExt(ext string) (string, bool) {
	e, ok := byExt[NormalizeExt(ext)]
	if !ok {
		return "", false
	}
	return e.mime, true
}

// KindOfExt classifies a destination extension.
func KindOfExt(ext string) Kind {
	return byExt[NormalizeExt(ext)].kind
}

// KindOfMIME classifies a canonical content type.
func KindOfMIME(mime string) Kind {
	mime = NormalizeMIME(mime)
	if kind, ok := byMIME[mime]; ok {
		return kind
	}
	family, _, _ := strings.Cut(mime, "/")
	switch family {
	case "image":
		return KindImage
	case "audio":
		return KindAudio
	case "video":
		return KindVideo
	}
	if documentInputs[mime] {
		return KindDocument
	}
	return KindUnknown
}

// SameContainer reports whether content of type detected can be stored
// unchanged under an extension whose canonical type is want. An Opus stream
// is a valid Ogg file, but Vorbis or FLAC in Ogg is not a valid .opus file.
func SameContainer(detected, want string) bool {
	detected, want = NormalizeMIME(detected), NormalizeMIME(want)
	if detected == want {
		return true
	}
	return detected == MIMEOpus && want == MIMEOgg
}

// IsAudioOnly reports whether ext names an audio-only container.
func IsAudioOnly(ext string) bool {
	return KindOfExt(ext) == KindAudio
}

// IsDocumentInput reports whether the document backend can read mime.
func IsDocumentInput(mime string) bool {
	return documentInputs[NormalizeMIME(mime)]
}

// IsDocumentOutput reports whether the document backend can write ext.
func IsDocumentOutput(ext string) bool {
	return NormalizeExt(ext) == "pdf"
}

// IsPageBearing reports whether mime is a paged document an image tool can rasterize.
func IsPageBearing(mime string) bool {
	return NormalizeMIME(mime) == MIMEPDF
}

// IsMultiFrame reports whether mime may hold more than one frame or page.
func IsMultiFrame(mime string) bool {
	return multiFrame[NormalizeMIME(mime)]
}

// Extensions lists every recognized extension of the given kind, sorted.
func Extensions(kind Kind) []string {
	out := make([]string, 0, len(byExt))
	for ext, e := range byExt {
		if e.kind == kind {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}
