package plan

import (
	"mvx/internal/deps"
	"mvx/internal/services/ffmpeg"
	"mvx/internal/services/imagemagick"
	"mvx/internal/services/libreoffice"
)

// Invocation is a fully resolved external command.
type Invocation struct {
	Tool deps.Tool `json:"tool"`
	Args []string  `json:"args"`
}

// Invocation returns the command that realises the plan, writing to output.
// For the document backend output is the private working directory soffice
// writes into; for the others it is the temporary file. Rename plans return
// false.
func (p Plan) Invocation(output string) (Invocation, bool) {
	switch p.Backend.Kind {
	case BackendMedia:
		req := ffmpeg.Request{
			Input:     p.Source,
			Output:    output,
			Copy:      p.Strategy == StrategyRemux,
			AudioOnly: p.Params.AudioOnly,
		}
		if !req.Copy {
			req.VideoCodec = p.Params.VideoCodec
			req.VideoBitrate = p.Params.VideoBitrate
			req.Preset = p.Params.Preset
			req.AudioCodec = p.Params.AudioCodec
			req.AudioBitrate = p.Params.AudioBitrate
		}
		return Invocation{Tool: deps.ToolFFmpeg, Args: ffmpeg.Args(req)}, true
	case BackendImage:
		tool := p.Backend.Tool
		if tool == "" {
			tool = deps.ToolImageMagick
		}
		return Invocation{Tool: tool, Args: imagemagick.Args(imagemagick.Request{
			Input:      p.Source,
			Output:     output,
			Quality:    p.Params.ImageQuality,
			FirstFrame: p.Params.FirstFrame,
		})}, true
	case BackendDocument:
		return Invocation{Tool: deps.ToolLibreOffice, Args: libreoffice.Args(p.Source, output)}, true
	default:
		return Invocation{}, false
	}
}

// ReportsProgress reports whether the backend emits machine-readable
// progress. Only ffmpeg does, and only when a duration is known.
func (p Plan) ReportsProgress() bool {
	return p.Backend.Kind == BackendMedia && p.Media != nil && p.Media.HasDuration()
}
