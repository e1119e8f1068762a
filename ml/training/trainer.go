package training

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"math"
	"math/rand"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"diettracker/ml/nn"
	"diettracker/ml/preprocess"
	"diettracker/utils"
)

type Config struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	WeightDecay  float64
	StepSize     int
	Gamma        float64
	Workers      int
	Seed         int64
	OutputPath   string
}

func DefaultConfig() Config {
	return Config{
		Epochs:       15,
		BatchSize:    32,
		LearningRate: 1e-3,
		WeightDecay:  1e-4,
		StepSize:     5,
		Gamma:        0.1,
		Workers:      runtime.NumCPU(),
		Seed:         42,
		OutputPath:   "models/food_classifier.ckpt",
	}
}

func (c Config) validate() error {
	switch {
	case c.Epochs <= 0:
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.LearningRate <= 0:
		return fmt.Errorf("learning rate must be positive, got %g", c.LearningRate)
	case c.OutputPath == "":
		return fmt.Errorf("output path is required")
	}
	return nil
}

// Report is the audit record written next to the checkpoint.
type Report struct {
	CompletedAt      time.Time         `json:"completed_at"`
	BestAccuracy     float64           `json:"best_accuracy"`
	TotalEpochs      int               `json:"total_epochs"`
	CheckpointWrites int               `json:"checkpoint_writes"`
	CheckpointPath   string            `json:"checkpoint_path"`
	NumClasses       int               `json:"num_classes"`
	TrainSamples     int               `json:"train_samples"`
	ValSamples       int               `json:"val_samples"`
	Device           string            `json:"device"`
	History          []nn.HistoryEntry `json:"history"`
}

// ReportPath returns <stem>_report.json for a checkpoint path.
func ReportPath(checkpointPath string) string {
	return strings.TrimSuffix(checkpointPath, filepath.Ext(checkpointPath)) + "_report.json"
}

// bestTracker keeps the best validation accuracy seen so far. It starts below
// any real accuracy so the first epoch always produces a checkpoint.
type bestTracker struct {
	best float64
}

func newBestTracker() *bestTracker { return &bestTracker{best: math.Inf(-1)} }

// improve records acc and reports whether it strictly beats the previous best.
func (b *bestTracker) improve(acc float64) bool {
	if acc > b.best {
		b.best = acc
		return true
	}
	return false
}

type loopResult struct {
	History []nn.HistoryEntry
	Best    float64
	Writes  int
}

// loop drives epochs through step and calls save whenever validation
// accuracy strictly improves.
func loop(ctx context.Context, epochs int, step func(epoch int) (nn.HistoryEntry, error), save func(entry nn.HistoryEntry, history []nn.HistoryEntry) error) (loopResult, error) {
	res := loopResult{}
	tracker := newBestTracker()
	for epoch := 1; epoch <= epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		entry, err := step(epoch)
		if err != nil {
			return res, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		res.History = append(res.History, entry)
		if tracker.improve(entry.ValAcc) {
			if err := save(entry, res.History); err != nil {
				return res, err
			}
			res.Writes++
			log.Printf("train: new best model saved (%.2f%%)", entry.ValAcc)
		}
	}
	if res.Writes > 0 {
		res.Best = tracker.best
	}
	return res, nil
}

// Trainer owns the network and optimizer state of one run.
type Trainer struct {
	cfg   Config
	ds    *Dataset
	net   *nn.Network
	opt   *nn.Adam
	sched *nn.StepLR
	rng   *rand.Rand

	augmenters []*preprocess.Augmenter
	grads      []*nn.Gradients
	bad        sync.Map // path → struct{}; images that failed to decode
}

func NewTrainer(cfg Config, ds *Dataset) (*Trainer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ds == nil || len(ds.Train) == 0 {
		return nil, fmt.Errorf("%w: no training samples", ErrDataUnavailable)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	net := nn.NewNetwork(len(ds.Classes), rng)
	opt := nn.NewAdam(cfg.LearningRate, cfg.WeightDecay)
	t := &Trainer{
		cfg:   cfg,
		ds:    ds,
		net:   net,
		opt:   opt,
		sched: nn.NewStepLR(opt, cfg.StepSize, cfg.Gamma),
		rng:   rng,
	}
	for w := 0; w < cfg.Workers; w++ {
		t.augmenters = append(t.augmenters, preprocess.NewAugmenter(cfg.Seed+int64(w)+1))
		t.grads = append(t.grads, net.NewGradients())
	}
	return t, nil
}

// Run trains for the configured epochs, keeping only the best checkpoint,
// and writes the report.
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	log.Printf("train: %d classes, %d train / %d val samples, %d workers",
		len(t.ds.Classes), len(t.ds.Train), len(t.ds.Val), t.cfg.Workers)
	if len(t.ds.Val) == 0 {
		log.Printf("train: validation split is empty; accuracy will read 0")
	}

	res, err := loop(ctx, t.cfg.Epochs, func(epoch int) (nn.HistoryEntry, error) {
		return t.epoch(ctx, epoch)
	}, t.save)
	if err != nil {
		return nil, err
	}

	report := &Report{
		CompletedAt:      time.Now().UTC(),
		BestAccuracy:     res.Best,
		TotalEpochs:      t.cfg.Epochs,
		CheckpointWrites: res.Writes,
		CheckpointPath:   t.cfg.OutputPath,
		NumClasses:       len(t.ds.Classes),
		TrainSamples:     len(t.ds.Train),
		ValSamples:       len(t.ds.Val),
		Device:           "cpu",
		History:          res.History,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := utils.WriteFileAtomic(ReportPath(t.cfg.OutputPath), data, 0o644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	log.Printf("train: complete, best accuracy %.2f%%", report.BestAccuracy)
	return report, nil
}

func (t *Trainer) save(entry nn.HistoryEntry, history []nn.HistoryEntry) error {
	ck := nn.NewCheckpoint(t.net, t.ds.Classes)
	ck.Accuracy = entry.ValAcc
	ck.Epoch = entry.Epoch
	ck.History = append([]nn.HistoryEntry(nil), history...)
	return nn.SaveCheckpoint(t.cfg.OutputPath, ck)
}

func (t *Trainer) epoch(ctx context.Context, epoch int) (nn.HistoryEntry, error) {
	start := time.Now()
	entry := nn.HistoryEntry{Epoch: epoch}

	trainLoss, trainAcc, err := t.trainEpoch(ctx)
	if err != nil {
		return entry, err
	}
	valLoss, valAcc, err := t.evaluate(ctx)
	if err != nil {
		return entry, err
	}
	t.sched.Step()

	entry.TrainLoss, entry.TrainAcc = trainLoss, trainAcc
	entry.ValLoss, entry.ValAcc = valLoss, valAcc
	entry.Seconds = time.Since(start).Seconds()
	log.Printf("train: epoch %d/%d (%.1fs) train loss %.4f acc %.2f%% | val loss %.4f acc %.2f%%",
		epoch, t.cfg.Epochs, entry.Seconds, trainLoss, trainAcc, valLoss, valAcc)
	return entry, nil
}

type partial struct {
	loss    float64
	correct int
	count   int
}

func (p *partial) add(o partial) {
	p.loss += o.loss
	p.correct += o.correct
	p.count += o.count
}

// decode returns the decoded image, or nil when the file is unusable. Each bad
// file is logged once.
func (t *Trainer) decode(path string) image.Image {
	if _, bad := t.bad.Load(path); bad {
		return nil
	}
	img, err := loadImage(path)
	if err != nil {
		if _, loaded := t.bad.LoadOrStore(path, struct{}{}); !loaded {
			log.Printf("train: skipping %s: %v", path, err)
		}
		return nil
	}
	return img
}

// parallel splits items across the workers. Worker w handles every item
// whose position is congruent to w.
func (t *Trainer) parallel(ctx context.Context, n int, fn func(worker, item int) partial) (partial, error) {
	workers := t.cfg.Workers
	if workers > n {
		workers = n
	}
	parts := make([]partial, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < n; i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				parts[w].add(fn(w, i))
			}
			return nil
		})
	}
	var total partial
	if err := g.Wait(); err != nil {
		return total, err
	}
	for _, p := range parts {
		total.add(p)
	}
	return total, nil
}

func (t *Trainer) trainEpoch(ctx context.Context) (float64, float64, error) {
	order := t.rng.Perm(len(t.ds.Train))
	var (
		lossSum float64
		batches int
		correct int
		total   int
	)
	for start := 0; start < len(order); start += t.cfg.BatchSize {
		end := start + t.cfg.BatchSize
		if end > len(order) {
			end = len(order)
		}
		batch := order[start:end]
		for _, g := range t.grads {
			g.Zero()
		}

		res, err := t.parallel(ctx, len(batch), func(w, i int) partial {
			s := t.ds.Train[batch[i]]
			img := t.decode(s.Path)
			if img == nil {
				return partial{}
			}
			act, err := t.net.Forward(t.augmenters[w].Apply(img))
			if err != nil {
				return partial{}
			}
			loss, dLogits := nn.CrossEntropy(act.Logits, s.Label)
			t.net.Backward(act, dLogits, t.grads[w])
			p := partial{loss: loss, count: 1}
			if nn.Argmax(act.Logits) == s.Label {
				p.correct = 1
			}
			return p
		})
		if err != nil {
			return 0, 0, err
		}
		if res.count == 0 {
			continue
		}

		merged := t.grads[0]
		for _, g := range t.grads[1:] {
			merged.Add(g)
		}
		merged.Scale(1 / float64(res.count))
		t.opt.Step(t.net.Params(), merged.List())

		lossSum += res.loss / float64(res.count)
		batches++
		correct += res.correct
		total += res.count
	}
	if total == 0 {
		return 0, 0, fmt.Errorf("%w: every training image failed to load", ErrDataUnavailable)
	}
	return lossSum / float64(batches), 100 * float64(correct) / float64(total), nil
}

func (t *Trainer) evaluate(ctx context.Context) (float64, float64, error) {
	if len(t.ds.Val) == 0 {
		return 0, 0, nil
	}
	res, err := t.parallel(ctx, len(t.ds.Val), func(_, i int) partial {
		s := t.ds.Val[i]
		img := t.decode(s.Path)
		if img == nil {
			return partial{}
		}
		act, err := t.net.Forward(preprocess.Inference(img))
		if err != nil {
			return partial{}
		}
		loss, _ := nn.CrossEntropy(act.Logits, s.Label)
		p := partial{loss: loss, count: 1}
		if nn.Argmax(act.Logits) == s.Label {
			p.correct = 1
		}
		return p
	})
	if err != nil {
		return 0, 0, err
	}
	if res.count == 0 {
		return 0, 0, nil
	}
	return res.loss / float64(res.count), 100 * float64(res.correct) / float64(res.count), nil
}

// Run assembles the datasets named by src and trains a model with cfg.
func Run(ctx context.Context, cfg Config, src Sources) (*Report, error) {
	ds, err := Assemble(src)
	if err != nil {
		return nil, err
	}
	t, err := NewTrainer(cfg, ds)
	if err != nil {
		return nil, err
	}
	return t.Run(ctx)
}
