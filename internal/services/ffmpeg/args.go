// Package ffmpeg builds ffmpeg command lines for remux and transcode runs.
package ffmpeg

// ProgressTarget is where ffmpeg writes key=value progress blocks.
const ProgressTarget = "pipe:1"

// Request describes one ffmpeg invocation.
type Request struct {
	Input  string
	Output string
	// Copy selects stream copy (remux); codec fields are ignored.
	Copy bool
	// AudioOnly drops video streams for audio containers.
	AudioOnly    bool
	VideoCodec   string
	VideoBitrate string
	Preset       string
	AudioCodec   string
	AudioBitrate string
}

// Args returns the argument vector for req. Equal requests always produce
// equal vectors.
func Args(req Request) []string {
	args := []string{
		"-nostdin", "-y", "-hide_banner", "-nostats",
		"-loglevel", "error",
		"-i", req.Input,
	}
	if req.Copy {
		if req.AudioOnly {
			args = append(args, "-map", "0:a")
		} else {
			args = append(args, "-map", "0:v?", "-map", "0:a?")
		}
		args = append(args, "-c", "copy")
	} else {
		if req.AudioOnly {
			args = append(args, "-vn")
		} else {
			args = appendOpt(args, "-c:v", req.VideoCodec)
			args = appendOpt(args, "-b:v", req.VideoBitrate)
			args = appendOpt(args, "-preset", req.Preset)
		}
		args = appendOpt(args, "-c:a", req.AudioCodec)
		args = appendOpt(args, "-b:a", req.AudioBitrate)
	}
	args = append(args, "-progress", ProgressTarget, req.Output)
	return args
}

func appendOpt(args []string, flag, value string) []string {
	if value == "" {
		return args
	}
	return append(args, flag, value)
}
