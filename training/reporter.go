package training

import (
	"encoding/json"
	"io"
)

// EpochRecord is emitted after every training epoch.
type EpochRecord struct {
	Epoch     int     `json:"epoch"`
	Elapsed   float64 `json:"time"`
	TrainLoss float64 `json:"train_loss"`
}

// EvalRecord is emitted after every evaluation round. Improved reports
// whether this round replaced the best snapshot.
type EvalRecord struct {
	Epoch       int     `json:"epoch"`
	ValLoss     float64 `json:"val_loss"`
	ValMetrics  Metrics `json:"val_metric"`
	TestMetrics Metrics `json:"test_metric"`
	Tolerance   int     `json:"tolerance"`
	Improved    bool    `json:"improved"`
}

// Reporter receives the observable records of a run. Implementations must
// not mutate run state; they exist for monitoring, persistence, and
// checkpointing side channels.
type Reporter interface {
	EpochDone(rec EpochRecord)
	EvalDone(rec EvalRecord)
	RunDone(res RunResult)
}

// JSONReporter writes one JSON object per record, mirroring the line-oriented
// progress stream external monitors consume.
type JSONReporter struct {
	enc *json.Encoder
}

// NewJSONReporter creates a reporter writing JSON lines to w.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w)}
}

func (r *JSONReporter) EpochDone(rec EpochRecord) { r.enc.Encode(rec) }

func (r *JSONReporter) EvalDone(rec EvalRecord) { r.enc.Encode(rec) }

func (r *JSONReporter) RunDone(res RunResult) { r.enc.Encode(res) }

// MultiReporter fans records out to several reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) EpochDone(rec EpochRecord) {
	for _, r := range m {
		r.EpochDone(rec)
	}
}

func (m MultiReporter) EvalDone(rec EvalRecord) {
	for _, r := range m {
		r.EvalDone(rec)
	}
}

func (m MultiReporter) RunDone(res RunResult) {
	for _, r := range m {
		r.RunDone(res)
	}
}

type nopReporter struct{}

func (nopReporter) EpochDone(EpochRecord) {}
func (nopReporter) EvalDone(EvalRecord)   {}
func (nopReporter) RunDone(RunResult)     {}
