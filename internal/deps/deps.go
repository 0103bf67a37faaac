// Package deps answers which external tools are installed. The answer is
// process-wide state, so it is computed once per run and handed to the
// planner and executor as a Capabilities value that tests can replace.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"mvx/internal/services"
)

// Tool identifies an external program mvx may drive.
type Tool string

const (
	ToolFFmpeg            Tool = "ffmpeg"
	ToolFFprobe           Tool = "ffprobe"
	ToolImageMagick       Tool = "magick"
	ToolImageMagickLegacy Tool = "convert"
	ToolLibreOffice       Tool = "soffice"
)

// Capabilities reports whether a tool is available and where.
type Capabilities interface {
	Lookup(tool Tool) (path string, ok bool)
}

// Requirement defines an external dependency mvx relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

type lookupResult struct {
	path string
	ok   bool
}

// System resolves tools through PATH using the configured command names.
// Each tool is looked up at most once.
type System struct {
	commands map[Tool]string
	lookPath func(string) (string, error)

	mu    sync.Mutex
	cache map[Tool]lookupResult
}

// NewSystem builds a PATH-backed lookup. Missing entries in commands fall
// back to the tool's default binary name.
func NewSystem(commands map[Tool]string) *System {
	cp := make(map[Tool]string, len(commands))
	for tool, cmd := range commands {
		if cmd = strings.TrimSpace(cmd); cmd != "" {
			cp[tool] = cmd
		}
	}
	return &System{commands: cp, lookPath: exec.LookPath, cache: make(map[Tool]lookupResult)}
}

// Command returns the configured command name for tool.
func (s *System) Command(tool Tool) string {
	if cmd, ok := s.commands[tool]; ok {
		return cmd
	}
	return string(tool)
}

// Lookup implements Capabilities.
func (s *System) Lookup(tool Tool) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.cache[tool]; ok {
		return res.path, res.ok
	}
	path, err := s.lookPath(s.Command(tool))
	res := lookupResult{path: path, ok: err == nil}
	s.cache[tool] = res
	return res.path, res.ok
}

// Static is a fixed presence table. Tools without an entry are absent.
type Static map[Tool]string

// Lookup implements Capabilities.
func (s Static) Lookup(tool Tool) (string, bool) {
	path, ok := s[tool]
	return path, ok
}

// DisplayName returns a human-readable tool label.
func DisplayName(tool Tool) string {
	switch tool {
	case ToolFFmpeg:
		return "FFmpeg"
	case ToolFFprobe:
		return "FFprobe"
	case ToolImageMagick:
		return "ImageMagick"
	case ToolImageMagickLegacy:
		return "ImageMagick (legacy convert)"
	case ToolLibreOffice:
		return "LibreOffice"
	default:
		return string(tool)
	}
}

// InstallHint suggests how to obtain tool.
func InstallHint(tool Tool) string {
	switch tool {
	case ToolFFmpeg, ToolFFprobe:
		return "install FFmpeg (e.g. apt install ffmpeg, brew install ffmpeg)"
	case ToolImageMagick, ToolImageMagickLegacy:
		return "install ImageMagick (e.g. apt install imagemagick, brew install imagemagick)"
	case ToolLibreOffice:
		return "install LibreOffice (e.g. apt install libreoffice, brew install --cask libreoffice)"
	default:
		return ""
	}
}

// MissingTool builds the error reported when tool cannot be located.
func MissingTool(tool Tool) error {
	return &services.MissingToolError{Tool: string(tool), Hint: InstallHint(tool)}
}

// ResolveImageTool prefers ImageMagick 7's magick and falls back to the
// legacy convert entry point. When neither exists it reports magick.
func ResolveImageTool(caps Capabilities) (Tool, string, bool) {
	if path, ok := caps.Lookup(ToolImageMagick); ok {
		return ToolImageMagick, path, true
	}
	if path, ok := caps.Lookup(ToolImageMagickLegacy); ok {
		return ToolImageMagickLegacy, path, true
	}
	return ToolImageMagick, "", false
}

// Requirements lists every tool mvx can use together with its purpose.
func Requirements(sys *System) []Requirement {
	return []Requirement{
		{Name: DisplayName(ToolFFmpeg), Command: sys.Command(ToolFFmpeg), Description: "Remux and transcode audio/video"},
		{Name: DisplayName(ToolFFprobe), Command: sys.Command(ToolFFprobe), Description: "Stream inspection for remux eligibility", Optional: true},
		{Name: DisplayName(ToolImageMagick), Command: sys.Command(ToolImageMagick), Description: "Image conversion and PDF rasterizing"},
		{Name: DisplayName(ToolImageMagickLegacy), Command: sys.Command(ToolImageMagickLegacy), Description: "Fallback when magick is absent", Optional: true},
		{Name: DisplayName(ToolLibreOffice), Command: sys.Command(ToolLibreOffice), Description: "Office documents to PDF"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}
