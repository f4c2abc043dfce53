package ffmpeg

import (
	"encoding/json"
	"fmt"
	"os/exec"
)

type FFProbeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

// AspectSpec is a target rendition: a named aspect ratio at a fixed
// output size the platform accepts.
type AspectSpec struct {
	Name   string // e.g. "4:5", "9:16"
	Width  int
	Height int
}

var (
	// Feed is the portrait crop Instagram accepts for feed photos.
	Feed = AspectSpec{Name: "4:5", Width: 1080, Height: 1350}
	// Story fills a full-screen story frame.
	Story = AspectSpec{Name: "9:16", Width: 1080, Height: 1920}
	// Landscape is a link-preview friendly crop used for feed posts.
	Landscape = AspectSpec{Name: "1.91:1", Width: 1200, Height: 628}
)

// Probe returns the pixel dimensions of the first video/image stream.
func Probe(path string) (width int, height int, err error) {
	cmd := exec.Command("ffprobe",
		"-loglevel", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe error: %v, output: %s", err, string(out))
	}

	var result FFProbeOutput
	if err := json.Unmarshal(out, &result); err != nil {
		return 0, 0, err
	}

	if len(result.Streams) == 0 {
		return 0, 0, fmt.Errorf("no video stream found")
	}

	return result.Streams[0].Width, result.Streams[0].Height, nil
}

// CropToAspect center-crops the input to the spec's aspect ratio and
// scales it to the spec's output size.
func CropToAspect(inputPath, outputPath string, spec AspectSpec) error {
	filter := fmt.Sprintf(
		"crop='min(iw,ih*%d/%d)':'min(ih,iw*%d/%d)',scale=%d:%d",
		spec.Width, spec.Height,
		spec.Height, spec.Width,
		spec.Width, spec.Height,
	)

	cmd := exec.Command("ffmpeg",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vf", filter,
		outputPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg crop %s failed: %v, output: %s", spec.Name, err, string(out))
	}
	return nil
}
