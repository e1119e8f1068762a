// Command dataset manages the training corpus.
//
//	dataset export   [-out dir] [-all]   download collected samples into class folders
//	dataset stats    [-data-dir dir]     count images per class
//	dataset validate [-dir dir] [-fix]   find (and optionally delete) undecodable images
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"diettracker/config"
	"diettracker/ml/dataset"
	"diettracker/ml/training"
	"diettracker/services"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		result any
		err    error
	)
	switch os.Args[1] {
	case "export":
		result, err = export(ctx, os.Args[2:])
	case "stats":
		fs := flag.NewFlagSet("stats", flag.ExitOnError)
		dataDir := fs.String("data-dir", "datasets", "dataset root")
		fs.Parse(os.Args[2:])
		result, err = dataset.CollectStats(*dataDir)
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ExitOnError)
		dir := fs.String("dir", training.CustomDir("datasets"), "directory to check")
		fix := fs.Bool("fix", false, "delete corrupt images")
		fs.Parse(os.Args[2:])
		result, err = dataset.Validate(*dir, *fix)
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("dataset %s: %v", os.Args[1], err)
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func export(ctx context.Context, args []string) (*dataset.ExportReport, error) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", training.CustomDir("datasets"), "output directory")
	all := fs.Bool("all", false, "include unverified samples")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := config.OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	return dataset.NewExporter().ExportFrom(ctx, services.NewTrainingSampleStore(db), *all, *out)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dataset <export|stats|validate> [flags]")
	os.Exit(2)
}
