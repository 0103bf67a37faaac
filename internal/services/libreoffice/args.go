// Package libreoffice drives headless LibreOffice document conversion.
//
// soffice picks its own output name (<stem>.<format> inside --outdir), so the
// caller gives it a private working directory and relocates the result.
package libreoffice

import (
	"net/url"
	"path/filepath"
	"strings"
)

// TargetFormat is the only conversion target mvx requests.
const TargetFormat = "pdf"

// Args returns the argument vector converting source into workDir. A
// per-run profile directory keeps concurrent conversions from contending
// for the user's LibreOffice profile lock.
func Args(source, workDir string) []string {
	profile := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(workDir, "profile"))}
	return []string{
		"--headless",
		"--norestore",
		"-env:UserInstallation=" + profile.String(),
		"--convert-to", TargetFormat,
		"--outdir", workDir,
		source,
	}
}

// ExpectedOutput is the file soffice writes for source inside workDir.
func ExpectedOutput(source, workDir string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(workDir, stem+"."+TargetFormat)
}
