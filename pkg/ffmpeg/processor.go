package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// FrameExtractor pulls a still image out of a local video file.
type FrameExtractor interface {
	// ExtractFrame writes a single JPEG frame taken offsetSeconds into
	// the video to outPath.
	ExtractFrame(ctx context.Context, videoPath string, offsetSeconds float64, outPath string) error
}

// VideoProcessor handles video analysis and frame extraction using ffmpeg.
type VideoProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewVideoProcessor creates a new video processor.
// It will attempt to find ffmpeg and ffprobe in PATH.
func NewVideoProcessor() (*VideoProcessor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &VideoProcessor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

// VideoInfo contains metadata about a video file.
type VideoInfo struct {
	Duration   float64 // Duration in seconds
	Width      int
	Height     int
	HasAudio   bool
	VideoCodec string
	FileSize   int64
}

// GetVideoInfo extracts metadata from a video file via ffprobe.
func (p *VideoProcessor) GetVideoInfo(ctx context.Context, videoPath string) (*VideoInfo, error) {
	stat, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("stat video: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	type ffprobeFormat struct {
		Duration string `json:"duration"`
	}
	type ffprobeStream struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	}
	type ffprobeOutput struct {
		Format  ffprobeFormat   `json:"format"`
		Streams []ffprobeStream `json:"streams"`
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &VideoInfo{
		FileSize: stat.Size(),
	}

	if parsed.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.Duration = dur
		}
	}

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
			}
			if info.Width == 0 && s.Width > 0 {
				info.Width = s.Width
			}
			if info.Height == 0 && s.Height > 0 {
				info.Height = s.Height
			}
		}
	}

	return info, nil
}

// ExtractFrame extracts a single JPEG frame at the given offset. If the
// video is shorter than the offset, the first frame is taken instead.
func (p *VideoProcessor) ExtractFrame(ctx context.Context, videoPath string, offsetSeconds float64, outPath string) error {
	info, err := p.GetVideoInfo(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("get video info: %w", err)
	}

	if info.Duration > 0 && offsetSeconds >= info.Duration {
		offsetSeconds = 0
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-i", videoPath,
		// Seek after opening input for better compatibility with some
		// container/codec combinations.
		"-ss", fmt.Sprintf("%.2f", offsetSeconds),
		"-vframes", "1",
		"-vf", "scale='min(1280,iw)':-1",
		"-q:v", "5",
		"-y",
		outPath,
	)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("extract frame: %w", err)
	}

	// ffmpeg can exit zero without producing output on some inputs.
	if stat, err := os.Stat(outPath); err != nil || stat.Size() == 0 {
		return fmt.Errorf("no frame produced at offset %.2fs", offsetSeconds)
	}

	return nil
}
