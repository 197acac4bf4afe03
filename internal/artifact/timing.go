package artifact

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// TimingEnv overrides the timing path and enables recording when set.
const TimingEnv = "ODOGEN_TIMING_JSONL"

// TimingEvent is the shape of one line of the timing log.
type TimingEvent struct {
	Phase      string  `json:"phase"`
	Kind       string  `json:"kind"`
	Throughput int     `json:"throughput,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// MarshalZerologObject writes the event with the same keys as its JSON tags.
func (e TimingEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("phase", e.Phase).Str("kind", e.Kind)
	if e.Throughput != 0 {
		ev.Int("throughput", e.Throughput)
	}
	if e.Status != "" {
		ev.Str("status", e.Status)
	}
	ev.Float64("start_ms", e.StartMS).
		Float64("duration_ms", e.DurationMS).
		Float64("end_ms", e.EndMS)
}

// Recorder appends stage timings to a JSONL file, one zerolog event per
// line. A nil or disabled Recorder drops events, so callers never need to
// check. Batch workers share one Recorder.
type Recorder struct {
	start time.Time
	file  *os.File
	log   zerolog.Logger
	err   error
}

// NewRecorder opens path for appending. An empty path yields a disabled
// recorder; an open failure is kept in Err and disables recording.
func NewRecorder(start time.Time, path string) *Recorder {
	tr := &Recorder{start: start}
	if path == "" {
		return tr
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		tr.err = err
		return tr
	}
	tr.file = f
	tr.log = zerolog.New(zerolog.SyncWriter(f))
	return tr
}

// ResolveTimingPath picks the timing log: the environment override first,
// then path when enabled, else none.
func ResolveTimingPath(enabled bool, path string) string {
	if envPath := os.Getenv(TimingEnv); envPath != "" {
		return envPath
	}
	if !enabled {
		return ""
	}
	if path == "" {
		return "odogen_timing.jsonl"
	}
	return path
}

func (tr *Recorder) Enabled() bool {
	return tr != nil && tr.file != nil
}

func (tr *Recorder) Err() error {
	if tr == nil {
		return nil
	}
	return tr.err
}

// Close releases the file; later events are dropped.
func (tr *Recorder) Close() {
	if !tr.Enabled() {
		return
	}
	_ = tr.file.Close()
	tr.file = nil
}

// RecordStage logs one pipeline stage (derive, schedule, resolve, emit,
// commit, total).
func (tr *Recorder) RecordStage(phase string, throughput int, start time.Time, duration time.Duration, status string) {
	if !tr.Enabled() {
		return
	}
	startMS := durationToMS(start.Sub(tr.start))
	durationMS := durationToMS(duration)
	tr.log.Log().EmbedObject(TimingEvent{
		Phase:      phase,
		Kind:       "stage",
		Throughput: throughput,
		Status:     status,
		StartMS:    startMS,
		DurationMS: durationMS,
		EndMS:      startMS + durationMS,
	}).Send()
}

// Since records a stage that started at start and ends now.
func (tr *Recorder) Since(phase string, throughput int, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	tr.RecordStage(phase, throughput, start, time.Since(start), status)
}

func durationToMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000_000.0
}
