package render

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"vidpipe/internal/config"
)

var baseArgs = []string{"-y", "-hide_banner", "-loglevel", "error", "-nostdin"}

// buildSlideshowArgs encodes a still-image concat list and the narration
// track in one pass, clamped to the narration duration.
func buildSlideshowArgs(cfg config.Render, listPath, audioPath string, audioDuration float64, outputPath string) []string {
	args := append([]string{}, baseArgs...)
	args = append(args,
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-i", audioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-t", formatSeconds(audioDuration),
		"-vf", videoFilter(cfg),
	)
	args = append(args, profileArgs(cfg)...)
	args = append(args, audioArgs(cfg)...)
	args = append(args, "-movflags", "+faststart", outputPath)
	return args
}

// buildSceneClipArgs pre-renders one still into a silent clip at the
// output profile, with fade transitions at the clip edges.
func buildSceneClipArgs(cfg config.Render, imagePath string, duration float64, outputPath string) []string {
	args := append([]string{}, baseArgs...)
	args = append(args,
		"-loop", "1", "-i", imagePath,
		"-t", formatSeconds(duration),
		"-vf", clipFilter(cfg, duration),
	)
	args = append(args, profileArgs(cfg)...)
	args = append(args, "-an", outputPath)
	return args
}

// buildAssembleArgs splices pre-rendered clips with the narration track,
// clamped to the narration duration.
func buildAssembleArgs(cfg config.Render, listPath, audioPath string, audioDuration float64, outputPath string) []string {
	args := append([]string{}, baseArgs...)
	args = append(args,
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-i", audioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-t", formatSeconds(audioDuration),
	)
	args = append(args, profileArgs(cfg)...)
	args = append(args, audioArgs(cfg)...)
	args = append(args, "-movflags", "+faststart", outputPath)
	return args
}

// buildSubtitleBurnArgs re-encodes the synced intermediate with burned
// subtitles. The profile flags are asserted again; stream copy after a
// filter pass has produced players that refuse the result.
func buildSubtitleBurnArgs(cfg config.Render, inputPath, subtitlePath, outputPath string) []string {
	vf := "subtitles=" + escapeFilterPath(subtitlePath)
	if style := strings.TrimSpace(cfg.SubtitleStyle); style != "" {
		vf += ":force_style='" + style + "'"
	}
	args := append([]string{}, baseArgs...)
	args = append(args,
		"-i", inputPath,
		"-vf", vf,
	)
	args = append(args, profileArgs(cfg)...)
	args = append(args, audioArgs(cfg)...)
	args = append(args, "-movflags", "+faststart", outputPath)
	return args
}

// buildDecodeProbeArgs decodes the leading seconds of a file to the null
// sink. Validation uses it to prove the container actually decodes.
func buildDecodeProbeArgs(inputPath string, seconds int) []string {
	args := append([]string{}, baseArgs...)
	if seconds > 0 {
		args = append(args, "-t", strconv.Itoa(seconds))
	}
	args = append(args, "-i", inputPath, "-f", "null", "-")
	return args
}

func profileArgs(cfg config.Render) []string {
	preset := cfg.Preset
	if preset == "" {
		preset = "medium"
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	return []string{
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(cfg.CRF),
		"-r", strconv.Itoa(fps),
		"-pix_fmt", "yuv420p",
	}
}

func audioArgs(cfg config.Render) []string {
	bitrate := cfg.AudioBitrate
	if bitrate == "" {
		bitrate = "192k"
	}
	return []string{"-c:a", "aac", "-b:a", bitrate}
}

func videoFilter(cfg config.Render) string {
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1", w, h, w, h)
}

func clipFilter(cfg config.Render, duration float64) string {
	filter := videoFilter(cfg)
	fade := cfg.TransitionDuration
	if fade > 0 && duration > 2*fade {
		filter += fmt.Sprintf(",fade=t=in:st=0:d=%.3f,fade=t=out:st=%.3f:d=%.3f", fade, duration-fade, fade)
	}
	return filter
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

// writeSlideshowList writes a concat-demuxer list pairing each still with
// its display duration. The final entry is repeated because the demuxer
// ignores the trailing duration directive.
func writeSlideshowList(path string, scenes []Scene, durations []float64) error {
	var b strings.Builder
	for i, scene := range scenes {
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(scene.Image))
		fmt.Fprintf(&b, "duration %s\n", formatSeconds(durations[i]))
	}
	fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(scenes[len(scenes)-1].Image))
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// writeClipList writes a concat-demuxer list of pre-rendered clips in
// original scene order.
func writeClipList(path string, clips []string) error {
	var b strings.Builder
	for _, clip := range clips {
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(clip))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

// escapeFilterPath escapes a path for use inside an ffmpeg filter graph,
// where colons and quotes are structural.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(path)
}
