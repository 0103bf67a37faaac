package plan

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mvx/internal/deps"
	"mvx/internal/detect"
	"mvx/internal/format"
	"mvx/internal/media"
)

// Strategy is the kind of work a plan performs.
type Strategy string

const (
	StrategyRename    Strategy = "rename"
	StrategyRemux     Strategy = "remux"
	StrategyTranscode Strategy = "transcode"
	StrategyConvert   Strategy = "convert"
)

var titler = cases.Title(language.English)

// Label is the display form of the strategy.
func (s Strategy) Label() string {
	return titler.String(string(s))
}

// BackendKind names the family of external tool.
type BackendKind string

const (
	BackendNone     BackendKind = "none"
	BackendMedia    BackendKind = "media"
	BackendImage    BackendKind = "image"
	BackendDocument BackendKind = "document"
)

// Backend is the external tool chosen for a plan.
type Backend struct {
	Kind BackendKind `json:"kind"`
	Tool deps.Tool   `json:"tool,omitempty"`
}

// Label is the display form, e.g. "Media (ffmpeg)".
func (b Backend) Label() string {
	if b.Kind == BackendNone || b.Kind == "" {
		return "None (filesystem only)"
	}
	return titler.String(string(b.Kind)) + " (" + string(b.Tool) + ")"
}

// Params are the resolved conversion parameters. Only the fields relevant to
// the chosen backend are populated.
type Params struct {
	VideoCodec   string `json:"video_codec,omitempty"`
	VideoBitrate string `json:"video_bitrate,omitempty"`
	Preset       string `json:"preset,omitempty"`
	AudioCodec   string `json:"audio_codec,omitempty"`
	AudioBitrate string `json:"audio_bitrate,omitempty"`
	AudioOnly    bool   `json:"audio_only,omitempty"`
	ImageQuality int    `json:"image_quality,omitempty"`
	FirstFrame   bool   `json:"first_frame,omitempty"`
}

// Plan is the immutable decision record for one conversion.
type Plan struct {
	Source      string
	Destination string
	Detected    detect.Type
	DestExt     string
	DestKind    format.Kind
	Strategy    Strategy
	Backend     Backend
	Params      Params
	Overwrite   bool
	Backup      bool
	MoveSource  bool
	Media       *media.Info
	// Notes explains options that had no effect and other non-fatal facts.
	Notes []string
}

// SpawnsProcess reports whether executing the plan runs an external tool.
func (p Plan) SpawnsProcess() bool {
	return p.Strategy != StrategyRename
}
