package libreoffice

import (
	"strings"
	"testing"
)

func TestArgs(t *testing.T) {
	got := strings.Join(Args("/docs/Q3 report.docx", "/out/.mvx-work"), " ")
	want := "--headless --norestore -env:UserInstallation=file:///out/.mvx-work/profile --convert-to pdf --outdir /out/.mvx-work /docs/Q3 report.docx"
	if got != want {
		t.Fatalf("Args() =\n %q\nwant\n %q", got, want)
	}
}

func TestArgsEscapesProfileURL(t *testing.T) {
	got := Args("a.odt", "/tmp/my dir")
	if got[2] != "-env:UserInstallation=file:///tmp/my%20dir/profile" {
		t.Fatalf("unexpected profile arg %q", got[2])
	}
}

func TestExpectedOutput(t *testing.T) {
	if got := ExpectedOutput("/docs/slides.final.pptx", "/w"); got != "/w/slides.final.pdf" {
		t.Fatalf("unexpected output %q", got)
	}
}
