package plan

import (
	"fmt"
	"path/filepath"

	"mvx/internal/deps"
	"mvx/internal/detect"
	"mvx/internal/format"
	"mvx/internal/media"
	"mvx/internal/options"
	"mvx/internal/services"
)

// Input is everything Build needs. Media is nil when the source is not
// audio/video or probing was unavailable.
type Input struct {
	Source      string
	Destination string
	Detected    detect.Type
	Media       *media.Info
	Flags       options.Flags
}

// Builder produces plans. It is safe for concurrent use.
type Builder struct {
	caps   deps.Capabilities
	compat CompatTable
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithCompat replaces the container compatibility table.
func WithCompat(table CompatTable) BuilderOption {
	return func(b *Builder) {
		if table != nil {
			b.compat = table
		}
	}
}

// NewBuilder constructs a Builder. caps picks between ImageMagick entry
// points so the preview names the binary that will actually run.
func NewBuilder(caps deps.Capabilities, opts ...BuilderOption) *Builder {
	if caps == nil {
		caps = deps.Static{}
	}
	b := &Builder{caps: caps, compat: DefaultCompat()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NeedsProbe reports whether planning source into destination depends on
// the source's stream layout.
func NeedsProbe(detected detect.Type, destination string) bool {
	destExt := format.ExtOf(destination)
	if sameType(detected, destExt) {
		return false
	}
	return detected.Kind.IsMedia() && format.KindOfExt(destExt).IsMedia()
}

// Build validates the request and returns the plan for it. It performs no
// I/O.
func (b *Builder) Build(in Input) (Plan, error) {
	if err := in.Flags.Validate(); err != nil {
		return Plan{}, err
	}
	if err := validatePaths(in.Source, in.Destination); err != nil {
		return Plan{}, err
	}

	destExt := format.ExtOf(in.Destination)
	p := Plan{
		Source:      in.Source,
		Destination: in.Destination,
		Detected:    in.Detected,
		DestExt:     destExt,
		DestKind:    format.KindOfExt(destExt),
		Overwrite:   in.Flags.Overwrite,
		Backup:      in.Flags.Backup,
		MoveSource:  in.Flags.MoveSource,
		Media:       in.Media,
	}

	switch {
	case sameType(in.Detected, destExt):
		p.Strategy = StrategyRename
		p.Backend = Backend{Kind: BackendNone}
		p.Notes = ignoredNotes("the source already has the destination type", in.Flags, allKnobs)

	case in.Detected.Kind.IsMedia() && p.DestKind.IsMedia():
		b.planMedia(&p, in)

	case format.IsDocumentOutput(destExt) && format.IsDocumentInput(in.Detected.MIME):
		p.Strategy = StrategyConvert
		p.Backend = Backend{Kind: BackendDocument, Tool: deps.ToolLibreOffice}
		p.Notes = ignoredNotes("document conversion", in.Flags, allKnobs)

	case p.DestKind == format.KindImage && (in.Detected.Kind == format.KindImage || format.IsPageBearing(in.Detected.MIME)),
		format.IsDocumentOutput(destExt) && in.Detected.Kind == format.KindImage:
		b.planImage(&p, in)

	default:
		return Plan{}, unsupported(in.Detected, destExt)
	}
	return p, nil
}

func (b *Builder) planMedia(p *Plan, in Input) {
	p.Backend = Backend{Kind: BackendMedia, Tool: deps.ToolFFmpeg}
	audioOnly := format.IsAudioOnly(p.DestExt)
	compatible := b.compat.Accepts(p.DestExt, in.Media)

	switch in.Flags.EffectivePreference() {
	case options.PreferenceTranscode:
		p.Strategy = StrategyTranscode
	case options.PreferenceStreamCopy:
		p.Strategy = StrategyRemux
		if !compatible {
			p.Notes = append(p.Notes, "stream copy forced: ffmpeg may reject streams this container cannot hold")
		}
	default:
		if compatible {
			p.Strategy = StrategyRemux
		} else {
			p.Strategy = StrategyTranscode
			if in.Media == nil {
				p.Notes = append(p.Notes, "stream information unavailable: transcoding instead of copying")
			}
		}
	}

	if p.Strategy == StrategyRemux {
		p.Params = Params{AudioOnly: audioOnly}
		p.Notes = append(p.Notes, ignoredNotes("stream copy", in.Flags, encodeKnobs|knobImageQuality)...)
		return
	}

	defaults := DefaultsFor(p.DestExt)
	params := Params{AudioOnly: audioOnly}
	params.AudioCodec = firstSet(in.Flags.AudioCodec, defaults.AudioCodec)
	params.AudioBitrate = in.Flags.AudioBitrate
	if params.AudioBitrate == "" && params.AudioCodec == defaults.AudioCodec {
		params.AudioBitrate = defaults.AudioBitrate
	}

	ignored := knobImageQuality
	if audioOnly {
		ignored |= knobVideoCodec | knobVideoBitrate | knobPreset
	} else {
		params.VideoCodec = firstSet(in.Flags.VideoCodec, defaults.VideoCodec)
		params.VideoBitrate = in.Flags.VideoBitrate
		if presetEncoders[params.VideoCodec] {
			params.Preset = in.Flags.Preset
			if params.Preset == "" && params.VideoCodec == defaults.VideoCodec {
				params.Preset = defaults.Preset
			}
		} else if in.Flags.Preset != "" {
			p.Notes = append(p.Notes, fmt.Sprintf("ignored: preset (%s has no x264-style presets)", displayCodec(params.VideoCodec)))
		}
	}
	p.Params = params
	reason := "audio-only destination"
	if !audioOnly {
		reason = "audio/video transcode"
	}
	p.Notes = append(p.Notes, ignoredNotes(reason, in.Flags, ignored)...)
}

func (b *Builder) planImage(p *Plan, in Input) {
	tool, _, _ := deps.ResolveImageTool(b.caps)
	p.Strategy = StrategyConvert
	p.Backend = Backend{Kind: BackendImage, Tool: tool}

	destMIME, _ := format.MIMEForExt(p.DestExt)
	p.Params = Params{
		ImageQuality: in.Flags.ImageQuality,
		FirstFrame:   firstFrameOnly(in.Detected.MIME, destMIME, p.DestExt),
	}
	if p.Params.ImageQuality == 0 {
		p.Params.ImageQuality = DefaultsFor(p.DestExt).ImageQuality
	}
	p.Notes = ignoredNotes("image conversion", in.Flags, encodeKnobs)
}

// firstFrameOnly selects page one of a paged document for any image
// destination, and frame one of an animation for single-frame destinations.
func firstFrameOnly(srcMIME, destMIME, destExt string) bool {
	if format.IsPageBearing(srcMIME) {
		return !format.IsDocumentOutput(destExt)
	}
	return format.IsMultiFrame(srcMIME) && !format.IsMultiFrame(destMIME)
}

// sameType implements the rename rule. Extensions outside the format table
// match by the sniffed type's conventional extension, and unknown content
// may move to any unrecognized extension.
func sameType(detected detect.Type, destExt string) bool {
	if mime, ok := format.MIMEForExt(destExt); ok {
		return format.SameContainer(detected.MIME, mime)
	}
	if !detected.Known() {
		return true
	}
	return detected.Ext != "" && detected.Ext == destExt
}

func validatePaths(source, destination string) error {
	if source == "" || destination == "" {
		return services.Wrap(services.ErrInvalidOption, "plan", "paths", "source and destination are required", nil)
	}
	src, err := filepath.Abs(source)
	if err != nil {
		return services.Wrap(services.ErrInvalidOption, "plan", "paths", "resolve source", err)
	}
	dst, err := filepath.Abs(destination)
	if err != nil {
		return services.Wrap(services.ErrInvalidOption, "plan", "paths", "resolve destination", err)
	}
	if src == dst {
		return services.Wrap(services.ErrInvalidOption, "plan", "paths", "source and destination must differ", nil)
	}
	return nil
}

func unsupported(detected detect.Type, destExt string) error {
	target := "." + destExt
	if destExt == "" {
		target = "a destination without an extension"
	}
	return services.Wrap(services.ErrUnsupportedConversion, "plan", "select strategy",
		fmt.Sprintf("no backend converts %s (%s) to %s", detected.String(), detected.Kind, target), nil)
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func displayCodec(codec string) string {
	if codec == "" {
		return "the encoder"
	}
	return codec
}
