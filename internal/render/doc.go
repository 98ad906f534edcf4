// Package render composes narration audio and scene stills into the
// published video profile by driving ffmpeg. The output duration is
// always clamped to the probed narration length with an explicit -t;
// relying on shortest-stream termination desynchronizes cumulatively on
// long slideshows. Subtitle burn-in re-encodes with the same profile
// flags instead of stream-copying.
package render
