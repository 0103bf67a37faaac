package ffmpeg

import (
	"reflect"
	"strings"
	"testing"
)

func TestArgsRemux(t *testing.T) {
	got := Args(Request{Input: "clip.mov", Output: ".clip.tmp.mp4", Copy: true, VideoCodec: "ignored"})
	want := []string{
		"-nostdin", "-y", "-hide_banner", "-nostats", "-loglevel", "error",
		"-i", "clip.mov",
		"-map", "0:v?", "-map", "0:a?", "-c", "copy",
		"-progress", "pipe:1", ".clip.tmp.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", got, want)
	}
}

func TestArgsTranscodeVideo(t *testing.T) {
	got := strings.Join(Args(Request{
		Input: "in.avi", Output: "out.mp4",
		VideoCodec: "libx264", VideoBitrate: "2M", Preset: "fast",
		AudioCodec: "aac", AudioBitrate: "192k",
	}), " ")
	for _, frag := range []string{"-c:v libx264", "-b:v 2M", "-preset fast", "-c:a aac", "-b:a 192k"} {
		if !strings.Contains(got, frag) {
			t.Fatalf("expected %q in %q", frag, got)
		}
	}
	if strings.Contains(got, "-c copy") || strings.Contains(got, "-vn") {
		t.Fatalf("unexpected copy/vn flags in %q", got)
	}
	if !strings.HasSuffix(got, "-progress pipe:1 out.mp4") {
		t.Fatalf("output must be last: %q", got)
	}
}

func TestArgsAudioOnly(t *testing.T) {
	transcode := strings.Join(Args(Request{Input: "in.wav", Output: "out.mp3", AudioOnly: true, VideoCodec: "libx264", AudioCodec: "libmp3lame"}), " ")
	if !strings.Contains(transcode, "-vn -c:a libmp3lame") || strings.Contains(transcode, "libx264") {
		t.Fatalf("unexpected audio-only transcode args %q", transcode)
	}
	remux := strings.Join(Args(Request{Input: "in.m4a", Output: "out.aac", AudioOnly: true, Copy: true}), " ")
	if !strings.Contains(remux, "-map 0:a -c copy") {
		t.Fatalf("unexpected audio-only remux args %q", remux)
	}
}
