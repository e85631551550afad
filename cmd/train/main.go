// Command train runs a node-classification training loop over a prepared
// problem file, with JSON progress lines on stdout and optional run history
// and checkpointing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hingraph/hingraph/checkpoints"
	"github.com/hingraph/hingraph/history"
	"github.com/hingraph/hingraph/model"
	"github.com/hingraph/hingraph/optimizer"
	"github.com/hingraph/hingraph/problem"
	"github.com/hingraph/hingraph/training"
)

func main() {
	var (
		problemPath   = flag.String("problem-path", "", "path to a prepared problem JSON file (synthetic data when empty)")
		batchSize     = flag.Int("batch-size", 16, "training batch size (must be > 1)")
		epochs        = flag.Int("epochs", 200, "maximum number of epochs")
		lrInit        = flag.Float64("lr-init", 0.0001, "initial learning rate")
		lrSchedule    = flag.String("lr-schedule", "constant", "learning rate schedule: constant or cosine")
		weightDecay   = flag.Float64("weight-decay", 5e-4, "L2 weight decay")
		dropout       = flag.Float64("dropout", 0.5, "dropout probability on the fused representation")
		tolerance     = flag.Int("tolerance", 100, "consecutive non-improving evaluation rounds tolerated")
		logInterval   = flag.Int("log-interval", 1, "evaluate every N epochs")
		periodMult    = flag.Int("period-mult", 2, "warm-restart period growth factor (cosine schedule)")
		seed          = flag.Int64("seed", 0, "random seed")
		historyDB     = flag.String("history-db", "", "path to a run-history SQLite database (disabled when empty)")
		checkpointDir = flag.String("checkpoint-dir", "", "directory for best-model checkpoints (disabled when empty)")
		stateFile     = flag.String("state-file", "", "run-state file to save, and to resume from with -resume")
		resume        = flag.Bool("resume", false, "resume from the state file")
	)
	flag.Parse()

	if err := run(*problemPath, *batchSize, *epochs, *lrInit, *lrSchedule, *weightDecay,
		*dropout, *tolerance, *logInterval, *periodMult, *seed,
		*historyDB, *checkpointDir, *stateFile, *resume); err != nil {
		fmt.Fprintf(os.Stderr, "train: %v\n", err)
		os.Exit(1)
	}
}

func run(problemPath string, batchSize, epochs int, lrInit float64, lrSchedule string,
	weightDecay, dropout float64, tolerance, logInterval, periodMult int, seed int64,
	historyDB, checkpointDir, stateFile string, resume bool) error {

	cfg := training.Config{
		MaxEpochs:      epochs,
		BatchSize:      batchSize,
		LRInit:         lrInit,
		Schedule:       training.ScheduleKind(lrSchedule),
		ToleranceLimit: tolerance,
		LogInterval:    logInterval,
		PeriodMult:     periodMult,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var prob *problem.NodeProblem
	var err error
	if problemPath != "" {
		prob, err = problem.Load(problemPath, seed)
	} else {
		prob, err = problem.Synthetic(600, 32, 3, 3, seed)
	}
	if err != nil {
		return err
	}

	mdl, err := model.NewMetapath(prob.Features, prob.Metapaths, prob.NumClasses, dropout, seed)
	if err != nil {
		return err
	}

	// Cosine runs pair with plain momentum SGD; everything else uses Adam.
	var opt optimizer.Optimizer
	if cfg.Schedule == training.ScheduleCosine {
		opt = optimizer.NewSGD(mdl.Parameters(), lrInit, 0.9, weightDecay)
	} else {
		opt = optimizer.NewAdam(mdl.Parameters(), lrInit, 0.9, 0.999, 1e-8, weightDecay)
	}

	reporters := training.MultiReporter{training.NewJSONReporter(os.Stdout)}

	var recorder *history.Recorder
	if historyDB != "" {
		store, err := history.Open(historyDB)
		if err != nil {
			return err
		}
		recorder, err = store.BeginRun(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "run id: %s\n", recorder.RunID())
		reporters = append(reporters, recorder)
	}

	var keeper *checkpoints.BestKeeper
	if checkpointDir != "" {
		keeper, err = checkpoints.NewBestKeeper(checkpointDir, mdl.Parameters())
		if err != nil {
			return err
		}
		reporters = append(reporters, keeper)
	}

	opts := []training.Option{training.WithReporter(reporters)}
	if resume {
		if stateFile == "" {
			return fmt.Errorf("-resume requires -state-file")
		}
		state, err := checkpoints.LoadRunState(stateFile)
		if err != nil {
			return err
		}
		opts = append(opts, training.WithInitialState(state))
	}

	trainer, err := training.NewTrainer(prob, mdl, opt, cfg, opts...)
	if err != nil {
		return err
	}

	res, runErr := trainer.Run()

	if stateFile != "" {
		if err := checkpoints.SaveRunState(stateFile, trainer.State()); err != nil {
			fmt.Fprintf(os.Stderr, "train: %v\n", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if recorder != nil && recorder.Err() != nil {
		fmt.Fprintf(os.Stderr, "train: history: %v\n", recorder.Err())
	}
	if keeper != nil && keeper.Err() != nil {
		fmt.Fprintf(os.Stderr, "train: checkpoint: %v\n", keeper.Err())
	}

	fmt.Fprintln(os.Stderr, "-- done --")
	if res.Best == nil {
		fmt.Fprintln(os.Stderr, "no improving result found")
	}
	return nil
}
