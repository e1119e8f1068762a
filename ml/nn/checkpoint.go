package nn

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"diettracker/utils"
)

// CheckpointFormat tags the on-disk layout. Files with any other tag are rejected.
const CheckpointFormat = "foodnet/v1"

// HistoryEntry records the metrics of one training epoch.
type HistoryEntry struct {
	Epoch     int     `json:"epoch"`
	TrainLoss float64 `json:"train_loss"`
	TrainAcc  float64 `json:"train_acc"`
	ValLoss   float64 `json:"val_loss"`
	ValAcc    float64 `json:"val_acc"`
	Seconds   float64 `json:"seconds"`
}

type LayerWeights struct {
	Weight []float64 `json:"weight"`
	Bias   []float64 `json:"bias"`
}

// Checkpoint is everything inference needs: the weights, the ordered class
// names and the metrics of the run that produced it.
type Checkpoint struct {
	Format     string         `json:"format"`
	NumClasses int            `json:"num_classes"`
	ClassNames []string       `json:"class_names"`
	Accuracy   float64        `json:"accuracy"`
	Epoch      int            `json:"epoch"`
	History    []HistoryEntry `json:"history"`
	TrainedAt  time.Time      `json:"trained_at"`

	Conv1 LayerWeights `json:"conv1"`
	Conv2 LayerWeights `json:"conv2"`
	Conv3 LayerWeights `json:"conv3"`
	FC    LayerWeights `json:"fc"`
}

func cloneFloats(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

// NewCheckpoint snapshots the current weights of n.
func NewCheckpoint(n *Network, classNames []string) *Checkpoint {
	return &Checkpoint{
		Format:     CheckpointFormat,
		NumClasses: n.NumClasses,
		ClassNames: append([]string(nil), classNames...),
		TrainedAt:  time.Now().UTC(),
		Conv1:      LayerWeights{cloneFloats(n.Conv1.Weight), cloneFloats(n.Conv1.Bias)},
		Conv2:      LayerWeights{cloneFloats(n.Conv2.Weight), cloneFloats(n.Conv2.Bias)},
		Conv3:      LayerWeights{cloneFloats(n.Conv3.Weight), cloneFloats(n.Conv3.Bias)},
		FC:         LayerWeights{cloneFloats(n.FC.Weight), cloneFloats(n.FC.Bias)},
	}
}

func (c *Checkpoint) Validate() error {
	if c.Format != CheckpointFormat {
		return fmt.Errorf("checkpoint: unsupported format %q", c.Format)
	}
	if c.NumClasses <= 0 {
		return errors.New("checkpoint: num_classes must be positive")
	}
	if len(c.ClassNames) != c.NumClasses {
		return fmt.Errorf("checkpoint: %d class names for %d classes", len(c.ClassNames), c.NumClasses)
	}
	return nil
}

// Network rebuilds an inference-ready network from the checkpoint.
func (c *Checkpoint) Network() (*Network, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	n := newNetwork(c.NumClasses)
	layers := []struct {
		name string
		src  LayerWeights
		w, b []float64
	}{
		{"conv1", c.Conv1, n.Conv1.Weight, n.Conv1.Bias},
		{"conv2", c.Conv2, n.Conv2.Weight, n.Conv2.Bias},
		{"conv3", c.Conv3, n.Conv3.Weight, n.Conv3.Bias},
		{"fc", c.FC, n.FC.Weight, n.FC.Bias},
	}
	for _, l := range layers {
		if len(l.src.Weight) != len(l.w) || len(l.src.Bias) != len(l.b) {
			return nil, fmt.Errorf("checkpoint: layer %s has %d/%d values, want %d/%d",
				l.name, len(l.src.Weight), len(l.src.Bias), len(l.w), len(l.b))
		}
		copy(l.w, l.src.Weight)
		copy(l.b, l.src.Bias)
	}
	return n, nil
}

// SaveCheckpoint writes c atomically.
func SaveCheckpoint(path string, c *Checkpoint) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint reads and validates a checkpoint. A missing file surfaces
// as an error matching fs.ErrNotExist.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
