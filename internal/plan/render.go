package plan

import (
	"fmt"
	"strings"
)

// Placeholders stand in for paths only known at execution time.
const (
	TempPlaceholder    = "<temp>"
	WorkDirPlaceholder = "<workdir>"
)

// Preview is the structured, side-effect free rendering of a plan.
type Preview struct {
	Source          string      `json:"source"`
	Destination     string      `json:"destination"`
	Detected        string      `json:"detected_type"`
	DetectedKind    string      `json:"detected_kind"`
	DestinationKind string      `json:"destination_kind"`
	Strategy        Strategy    `json:"strategy"`
	Backend         Backend     `json:"backend"`
	Params          Params      `json:"params"`
	Command         *Invocation `json:"command,omitempty"`
	Streams         string      `json:"streams,omitempty"`
	Overwrite       bool        `json:"overwrite"`
	Backup          bool        `json:"backup"`
	MoveSource      bool        `json:"move_source"`
	Notes           []string    `json:"notes,omitempty"`
}

// Preview renders p. The command uses the same builder execution uses,
// with placeholders for the temporary output.
func (p Plan) Preview() Preview {
	out := Preview{
		Source:          p.Source,
		Destination:     p.Destination,
		Detected:        p.Detected.String(),
		DetectedKind:    p.Detected.Kind.String(),
		DestinationKind: p.DestKind.String(),
		Strategy:        p.Strategy,
		Backend:         p.Backend,
		Params:          p.Params,
		Overwrite:       p.Overwrite,
		Backup:          p.Backup,
		MoveSource:      p.MoveSource,
		Notes:           append([]string(nil), p.Notes...),
	}
	placeholder := TempPlaceholder
	if p.Backend.Kind == BackendDocument {
		placeholder = WorkDirPlaceholder
	}
	if inv, ok := p.Invocation(placeholder); ok {
		out.Command = &inv
	}
	if p.Media != nil {
		out.Streams = p.Media.Codecs()
	}
	return out
}

// Row is one label/value pair of the text preview.
type Row struct {
	Label string
	Value string
}

// Rows returns the preview as ordered label/value pairs.
func (v Preview) Rows() []Row {
	rows := []Row{
		{"Source", v.Source},
		{"Destination", v.Destination},
		{"Detected", fmt.Sprintf("%s (%s)", v.Detected, v.DetectedKind)},
		{"Destination kind", v.DestinationKind},
		{"Strategy", v.Strategy.Label()},
		{"Backend", v.Backend.Label()},
	}
	if v.Streams != "" {
		rows = append(rows, Row{"Streams", v.Streams})
	}
	if params := v.Params.summary(); params != "" {
		rows = append(rows, Row{"Parameters", params})
	}
	command := "(none: filesystem move)"
	if v.Command != nil {
		command = v.Command.String()
	}
	rows = append(rows,
		Row{"Command", command},
		Row{"Existing destination", existingPolicy(v.Overwrite, v.Backup)},
		Row{"Move source", yesNo(v.MoveSource)},
	)
	for _, note := range v.Notes {
		rows = append(rows, Row{"Note", note})
	}
	return rows
}

// Lines renders the preview as aligned "Label: value" text.
func (v Preview) Lines() []string {
	rows := v.Rows()
	width := 0
	for _, r := range rows {
		if len(r.Label) > width {
			width = len(r.Label)
		}
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%-*s  %s", width+1, r.Label+":", r.Value))
	}
	return lines
}

// String renders the invocation as a shell-like command line.
func (i Invocation) String() string {
	parts := make([]string, 0, len(i.Args)+1)
	parts = append(parts, string(i.Tool))
	for _, arg := range i.Args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func (p Params) summary() string {
	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+"="+value)
		}
	}
	add("video_codec", p.VideoCodec)
	add("video_bitrate", p.VideoBitrate)
	add("preset", p.Preset)
	add("audio_codec", p.AudioCodec)
	add("audio_bitrate", p.AudioBitrate)
	if p.AudioOnly {
		parts = append(parts, "audio_only")
	}
	if p.ImageQuality > 0 {
		parts = append(parts, fmt.Sprintf("quality=%d", p.ImageQuality))
	}
	if p.FirstFrame {
		parts = append(parts, "first_frame")
	}
	return strings.Join(parts, " ")
}

func existingPolicy(overwrite, backup bool) string {
	switch {
	case overwrite:
		return "overwrite"
	case backup:
		return "back up to .bak"
	default:
		return "fail if present"
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$`*?[]{}()<>|&;#~") || arg == TempPlaceholder || arg == WorkDirPlaceholder {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
