package media

import (
	"context"
	"math"

	"veriscope/internal/jobs"
	"veriscope/internal/media/ffprobe"
	"veriscope/internal/services"
)

// inspectMedia allows tests to stub the ffprobe invocation.
var inspectMedia = ffprobe.Inspect

// Probe inspects the container at path and condenses the stream layout into
// the metadata recorded by the validation stage. Probe failures are tagged as
// external tool errors so the orchestrator treats them as retryable.
func Probe(ctx context.Context, binary, path string) (*jobs.MediaMetadata, error) {
	result, err := inspectMedia(ctx, binary, path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "", "probe media", "", err)
	}

	meta := &jobs.MediaMetadata{
		Container: result.Format.FormatName,
		HasVideo:  result.HasVideo(),
		HasAudio:  result.HasAudio(),
	}

	durationSec := result.DurationSeconds()
	if video, ok := result.FirstVideoStream(); ok {
		meta.VideoCodec = video.CodecName
		meta.Width = video.Width
		meta.Height = video.Height
		meta.FrameRate = video.FrameRate()
		if !(durationSec > 0) {
			durationSec = video.DurationSeconds()
		}
	}
	if audio, ok := result.FirstAudioStream(); ok {
		meta.AudioCodec = audio.CodecName
		meta.SampleRate = audio.SampleRateHz()
		meta.Channels = audio.Channels
		if !(durationSec > 0) {
			durationSec = audio.DurationSeconds()
		}
	}
	if math.IsNaN(durationSec) || durationSec < 0 {
		durationSec = 0
	}
	meta.DurationMs = int64(math.Round(durationSec * 1000))

	return meta, nil
}
