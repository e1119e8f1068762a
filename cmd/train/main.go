// Command train fits the local food classifier on Food-101 and the
// collected custom samples, keeping the best checkpoint by validation
// accuracy.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"diettracker/ml/training"
)

func main() {
	def := training.DefaultConfig()
	cfg := def
	var (
		dataDir       string
		includeCustom bool
		customOnly    bool
	)
	flag.IntVar(&cfg.Epochs, "epochs", def.Epochs, "number of training epochs")
	flag.IntVar(&cfg.BatchSize, "batch-size", def.BatchSize, "mini-batch size")
	flag.Float64Var(&cfg.LearningRate, "lr", def.LearningRate, "initial learning rate")
	flag.Float64Var(&cfg.WeightDecay, "weight-decay", def.WeightDecay, "L2 weight decay")
	flag.IntVar(&cfg.Workers, "workers", def.Workers, "parallel workers")
	flag.Int64Var(&cfg.Seed, "seed", def.Seed, "random seed")
	flag.StringVar(&cfg.OutputPath, "output", def.OutputPath, "checkpoint path")
	flag.StringVar(&dataDir, "data-dir", "datasets", "dataset root containing food101/ and custom/")
	flag.BoolVar(&includeCustom, "include-custom", false, "also train on <data-dir>/custom")
	flag.BoolVar(&customOnly, "custom-only", false, "train only on <data-dir>/custom")
	flag.Parse()

	src := training.Sources{
		DataDir: dataDir,
		Food101: !customOnly,
		Custom:  includeCustom || customOnly,
		Seed:    cfg.Seed,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("train: data=%s food101=%v custom=%v epochs=%d batch=%d lr=%g workers=%d",
		dataDir, src.Food101, src.Custom, cfg.Epochs, cfg.BatchSize, cfg.LearningRate, cfg.Workers)
	report, err := training.Run(ctx, cfg, src)
	if err != nil {
		log.Fatalf("train: %v", err)
	}
	log.Printf("train: done; best val acc %.2f%% over %d epochs (%d checkpoint writes) -> %s",
		report.BestAccuracy, report.TotalEpochs, report.CheckpointWrites, report.CheckpointPath)
	log.Printf("train: report at %s", training.ReportPath(cfg.OutputPath))
}
