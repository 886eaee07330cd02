package jobs

import (
	"encoding/json"
	"fmt"

	"veriscope/internal/scoring"
)

// ResultKey identifies one slot in the job results document. Each stage that
// produces output owns exactly one key and may write it exactly once.
type ResultKey string

const (
	ResultMetadata   ResultKey = "metadata"
	ResultExtraction ResultKey = "extraction"
	ResultTranscript ResultKey = "transcript"
	ResultVideo      ResultKey = "video"
	ResultAudio      ResultKey = "audio"
	ResultLipsync    ResultKey = "lipsync"
	ResultFusion     ResultKey = "fusion"
)

var resultKeyOrder = []ResultKey{
	ResultMetadata,
	ResultExtraction,
	ResultTranscript,
	ResultVideo,
	ResultAudio,
	ResultLipsync,
	ResultFusion,
}

// MediaMetadata is what validation learned about the submitted file.
type MediaMetadata struct {
	DurationMs int64   `json:"durationMs"`
	Container  string  `json:"container,omitempty"`
	VideoCodec string  `json:"videoCodec,omitempty"`
	AudioCodec string  `json:"audioCodec,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FrameRate  float64 `json:"frameRate,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
	HasVideo   bool    `json:"hasVideo"`
	HasAudio   bool    `json:"hasAudio"`
}

// ExtractionSummary records what the extraction stage staged for inference.
type ExtractionSummary struct {
	FrameCount int     `json:"frameCount"`
	FPS        float64 `json:"fps"`
	FramesDir  string  `json:"framesDir,omitempty"`
	AudioPath  string  `json:"audioPath,omitempty"`
}

// TranscriptSummary captures the transcription outcome. Skipped is set when
// the stage ran but had nothing to transcribe or transcription is disabled.
type TranscriptSummary struct {
	Language  string           `json:"language,omitempty"`
	WordCount int              `json:"wordCount"`
	Text      string           `json:"text,omitempty"`
	Words     []TranscriptWord `json:"words,omitempty"`
	Skipped   bool             `json:"skipped,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// TranscriptWord is a single word with its spoken interval, used by lipsync
// analysis to build word-aligned comparison windows.
type TranscriptWord struct {
	Word       string  `json:"word"`
	StartMs    int64   `json:"startMs"`
	EndMs      int64   `json:"endMs"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ModalityOutcome is the per-modality inference verdict.
type ModalityOutcome struct {
	Modality        scoring.Modality `json:"modality"`
	Score           float64          `json:"score"`
	Confidence      float64          `json:"confidence"`
	Label           scoring.Label    `json:"label"`
	UnitCount       int              `json:"unitCount"`
	FlaggedCount    int              `json:"flaggedCount"`
	ModelName       string           `json:"modelName"`
	ModelVersion    string           `json:"modelVersion"`
	InferenceTimeMs int64            `json:"inferenceTimeMs"`
	Skipped         bool             `json:"skipped,omitempty"`
	SkipReason      string           `json:"skipReason,omitempty"`
}

// FusionOutcome is the combined cross-modality verdict.
type FusionOutcome struct {
	Score       float64            `json:"score"`
	Label       scoring.Label      `json:"label"`
	Confidence  float64            `json:"confidence"`
	Agreement   float64            `json:"agreement"`
	Description string             `json:"description"`
	Concerns    []string           `json:"concerns,omitempty"`
	Weights     map[string]float64 `json:"weights,omitempty"`
}

// Results is the accumulated output of a job, one optional slot per stage.
// Slots fill as stages complete and are never rewritten, so a resumed job can
// tell which stages already finished.
type Results struct {
	Metadata   *MediaMetadata     `json:"metadata,omitempty"`
	Extraction *ExtractionSummary `json:"extraction,omitempty"`
	Transcript *TranscriptSummary `json:"transcript,omitempty"`
	Video      *ModalityOutcome   `json:"video,omitempty"`
	Audio      *ModalityOutcome   `json:"audio,omitempty"`
	Lipsync    *ModalityOutcome   `json:"lipsync,omitempty"`
	Fusion     *FusionOutcome     `json:"fusion,omitempty"`
}

// DecodeResults parses a stored results document. Empty input yields empty
// results rather than an error.
func DecodeResults(raw string) (Results, error) {
	var results Results
	if raw == "" {
		return results, nil
	}
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return Results{}, fmt.Errorf("decode results: %w", err)
	}
	return results, nil
}

// Encode serializes the results document for storage.
func (r Results) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	return string(data), nil
}

// Has reports whether the slot for key is already filled.
func (r Results) Has(key ResultKey) bool {
	switch key {
	case ResultMetadata:
		return r.Metadata != nil
	case ResultExtraction:
		return r.Extraction != nil
	case ResultTranscript:
		return r.Transcript != nil
	case ResultVideo:
		return r.Video != nil
	case ResultAudio:
		return r.Audio != nil
	case ResultLipsync:
		return r.Lipsync != nil
	case ResultFusion:
		return r.Fusion != nil
	default:
		return false
	}
}

// Keys returns the filled slots in stage order.
func (r Results) Keys() []ResultKey {
	var keys []ResultKey
	for _, key := range resultKeyOrder {
		if r.Has(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Modality returns the outcome slot for a modality, or nil when absent.
func (r Results) Modality(m scoring.Modality) *ModalityOutcome {
	switch m {
	case scoring.ModalityVideo:
		return r.Video
	case scoring.ModalityAudio:
		return r.Audio
	case scoring.ModalityLipsync:
		return r.Lipsync
	default:
		return nil
	}
}

func (r *Results) attach(key ResultKey, payload any) error {
	if r.Has(key) {
		return fmt.Errorf("result %s already recorded", key)
	}
	mismatch := func() error {
		return fmt.Errorf("result %s does not accept %T", key, payload)
	}
	switch key {
	case ResultMetadata:
		v, ok := payload.(*MediaMetadata)
		if !ok || v == nil {
			return mismatch()
		}
		r.Metadata = v
	case ResultExtraction:
		v, ok := payload.(*ExtractionSummary)
		if !ok || v == nil {
			return mismatch()
		}
		r.Extraction = v
	case ResultTranscript:
		v, ok := payload.(*TranscriptSummary)
		if !ok || v == nil {
			return mismatch()
		}
		r.Transcript = v
	case ResultVideo, ResultAudio, ResultLipsync:
		v, ok := payload.(*ModalityOutcome)
		if !ok || v == nil {
			return mismatch()
		}
		switch key {
		case ResultVideo:
			r.Video = v
		case ResultAudio:
			r.Audio = v
		default:
			r.Lipsync = v
		}
	case ResultFusion:
		v, ok := payload.(*FusionOutcome)
		if !ok || v == nil {
			return mismatch()
		}
		r.Fusion = v
	default:
		return fmt.Errorf("unknown result key %q", key)
	}
	return nil
}

// Results decodes the job's stored results document.
func (j *Job) Results() (Results, error) {
	return DecodeResults(j.ResultsJSON)
}

// Options decodes the job's stored submission options.
func (j *Job) Options() (Options, error) {
	return ParseOptions(j.OptionsJSON)
}

// ParseOptions parses a stored options document. Empty input yields the
// defaults.
func ParseOptions(raw string) (Options, error) {
	if raw == "" {
		return DefaultOptions(), nil
	}
	var opts Options
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return Options{}, fmt.Errorf("decode options: %w", err)
	}
	return opts, nil
}

// Encode serializes options for storage.
func (o Options) Encode() (string, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(data), nil
}
