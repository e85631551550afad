// Package history persists training runs to a local SQLite database:
// one row per run plus per-epoch and per-evaluation metric rows, so past
// experiments stay queryable after the process exits.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hingraph/hingraph/training"
)

// RunStatus mirrors the lifecycle of a training run.
type RunStatus string

const (
	StatusRunning      RunStatus = "RUNNING"
	StatusFinished     RunStatus = "FINISHED"
	StatusStoppedEarly RunStatus = "STOPPED_EARLY"
	StatusFailed       RunStatus = "FAILED"
)

// Run is the top-level record of one training run.
type Run struct {
	ID          string    `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Status      RunStatus `gorm:"type:varchar(20);index" json:"status"`
	ConfigJSON  string    `gorm:"type:text" json:"config_json"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	EpochsRun   int      `json:"epochs_run"`
	BestEpoch   *int     `json:"best_epoch,omitempty"`
	BestValAcc  *float64 `gorm:"index" json:"best_val_acc,omitempty"`
	BestValLoss *float64 `json:"best_val_loss,omitempty"`
}

// EpochMetric is one per-epoch training record.
type EpochMetric struct {
	ID        uint    `gorm:"primarykey" json:"id"`
	RunID     string  `gorm:"index" json:"run_id"`
	Epoch     int     `json:"epoch"`
	TrainLoss float64 `json:"train_loss"`
	Elapsed   float64 `json:"elapsed"`
}

// EvalMetric is one per-evaluation-round record.
type EvalMetric struct {
	ID           uint    `gorm:"primarykey" json:"id"`
	RunID        string  `gorm:"index" json:"run_id"`
	Epoch        int     `json:"epoch"`
	ValLoss      float64 `json:"val_loss"`
	ValAccuracy  float64 `json:"val_accuracy"`
	ValMacroF1   float64 `json:"val_macro_f1"`
	TestAccuracy float64 `json:"test_accuracy"`
	Tolerance    int     `json:"tolerance"`
	Improved     bool    `json:"improved"`
}

// Store wraps the SQLite-backed experiment database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %v", err)
	}
	if err := db.AutoMigrate(&Run{}, &EpochMetric{}, &EvalMetric{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %v", err)
	}
	return &Store{db: db}, nil
}

// BeginRun registers a new run in RUNNING state and returns a recorder that
// streams the run's records into the store.
func (s *Store) BeginRun(cfg training.Config) (*Recorder, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run config: %v", err)
	}

	run := Run{
		ID:         uuid.NewString(),
		Status:     StatusRunning,
		ConfigJSON: string(cfgJSON),
		StartedAt:  time.Now(),
	}
	if err := s.db.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to create run record: %v", err)
	}
	return &Recorder{store: s, runID: run.ID}, nil
}

// GetRun fetches one run by id.
func (s *Store) GetRun(id string) (*Run, error) {
	var run Run
	if err := s.db.First(&run, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to load run %s: %v", id, err)
	}
	return &run, nil
}

// BestRuns returns finished runs ordered by best validation accuracy.
func (s *Store) BestRuns(limit int) ([]Run, error) {
	var runs []Run
	err := s.db.
		Where("status IN ?", []RunStatus{StatusFinished, StatusStoppedEarly}).
		Where("best_val_acc IS NOT NULL").
		Order("best_val_acc DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query best runs: %v", err)
	}
	return runs, nil
}

// Evals returns the evaluation rows of a run in epoch order.
func (s *Store) Evals(runID string) ([]EvalMetric, error) {
	var evals []EvalMetric
	err := s.db.Where("run_id = ?", runID).Order("epoch ASC").Find(&evals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query evals for run %s: %v", runID, err)
	}
	return evals, nil
}

// Recorder implements training.Reporter, persisting each record as it is
// emitted. Database errors are retained rather than interrupting the run.
type Recorder struct {
	store *Store
	runID string
	err   error
}

// RunID returns the identifier of the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// Err reports the first persistence failure, if any.
func (r *Recorder) Err() error {
	return r.err
}

func (r *Recorder) keep(err error) {
	if err != nil && r.err == nil {
		r.err = err
	}
}

func (r *Recorder) EpochDone(rec training.EpochRecord) {
	r.keep(r.store.db.Create(&EpochMetric{
		RunID:     r.runID,
		Epoch:     rec.Epoch,
		TrainLoss: rec.TrainLoss,
		Elapsed:   rec.Elapsed,
	}).Error)
}

func (r *Recorder) EvalDone(rec training.EvalRecord) {
	r.keep(r.store.db.Create(&EvalMetric{
		RunID:        r.runID,
		Epoch:        rec.Epoch,
		ValLoss:      rec.ValLoss,
		ValAccuracy:  rec.ValMetrics.Accuracy,
		ValMacroF1:   rec.ValMetrics.MacroF1,
		TestAccuracy: rec.TestMetrics.Accuracy,
		Tolerance:    rec.Tolerance,
		Improved:     rec.Improved,
	}).Error)

	if rec.Improved {
		epoch := rec.Epoch
		acc := rec.ValMetrics.Accuracy
		loss := rec.ValLoss
		r.keep(r.store.db.Model(&Run{}).Where("id = ?", r.runID).Updates(map[string]interface{}{
			"best_epoch":    &epoch,
			"best_val_acc":  &acc,
			"best_val_loss": &loss,
		}).Error)
	}
}

func (r *Recorder) RunDone(res training.RunResult) {
	status := StatusFinished
	switch res.Status {
	case training.RunStoppedEarly:
		status = StatusStoppedEarly
	case training.RunFailed:
		status = StatusFailed
	}
	now := time.Now()
	r.keep(r.store.db.Model(&Run{}).Where("id = ?", r.runID).Updates(map[string]interface{}{
		"status":       status,
		"completed_at": &now,
		"epochs_run":   res.Epochs,
	}).Error)
}
