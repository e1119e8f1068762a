package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sync"

	"diettracker/ml/labels"
	"diettracker/ml/nn"
	"diettracker/ml/preprocess"
	"diettracker/models"
)

// FoodClassifier is the fast, optional local recognition stage.
type FoodClassifier interface {
	Predict(ctx context.Context, image []byte) (*models.ClassifierPrediction, error)
	Name() string
}

// LocalClassifier serves the trained checkpoint. The checkpoint is loaded on
// first use, at most once per process; a missing file leaves the classifier
// permanently unavailable until restart.
type LocalClassifier struct {
	path string

	once    sync.Once
	net     *nn.Network
	classes []string
	loadErr error
}

func NewLocalClassifier(checkpointPath string) *LocalClassifier {
	return &LocalClassifier{path: checkpointPath}
}

func (c *LocalClassifier) Name() string { return "local" }

func (c *LocalClassifier) load() {
	ck, err := nn.LoadCheckpoint(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("classifier: no checkpoint at %s; local stage disabled", c.path)
			c.loadErr = ErrModelUnavailable
			return
		}
		log.Printf("classifier: failed to load %s: %v", c.path, err)
		c.loadErr = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		return
	}
	net, err := ck.Network()
	if err != nil {
		log.Printf("classifier: invalid checkpoint %s: %v", c.path, err)
		c.loadErr = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		return
	}
	c.net, c.classes = net, ck.ClassNames
	log.Printf("classifier: loaded %s (%d classes, accuracy %.2f%%, epoch %d)", c.path, ck.NumClasses, ck.Accuracy, ck.Epoch)
}

// Available loads the checkpoint if needed and reports whether it is usable.
func (c *LocalClassifier) Available() bool {
	c.once.Do(c.load)
	return c.loadErr == nil
}

// Predict returns the most likely class. Errors are ErrModelUnavailable or a
// preprocess.ErrDecode.
func (c *LocalClassifier) Predict(ctx context.Context, image []byte) (*models.ClassifierPrediction, error) {
	c.once.Do(c.load)
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in, err := preprocess.Preprocess(image)
	if err != nil {
		return nil, err
	}
	probs, err := c.net.Probabilities(in)
	if err != nil {
		return nil, err
	}
	idx := nn.Argmax(probs)
	key := c.classes[idx]
	pred := &models.ClassifierPrediction{
		Label:      labels.DisplayName(key),
		ClassKey:   key,
		Confidence: probs[idx],
	}
	if id, ok := labels.Food101ID(key); ok {
		pred.ClassID = &id
	}
	return pred, nil
}
