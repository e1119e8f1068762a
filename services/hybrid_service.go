package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"diettracker/models"
)

type HybridConfig struct {
	// UseLocal enables the local classifier stage.
	UseLocal bool
	// Threshold is the local confidence (0..1) at which a result is tagged
	// classifier-assisted.
	Threshold float64
	// LocalOnlyThreshold, when positive, lets a local prediction at or above
	// it skip the estimator if the nutrition lookup knows the label.
	LocalOnlyThreshold float64
	// LocalTimeout bounds the local stage; zero means DefaultLocalTimeout.
	LocalTimeout time.Duration
}

// DefaultLocalTimeout is how long a request waits for the local stage.
const DefaultLocalTimeout = 5 * time.Second

// LocalSignal is the outcome of the local stage. Err is set when the stage
// ran but produced nothing; the hybrid policy never propagates it.
type LocalSignal struct {
	Ran        bool
	Prediction *models.ClassifierPrediction
	Err        error
}

func (s LocalSignal) confidentAt(threshold float64) bool {
	return s.Prediction != nil && s.Prediction.Confidence >= threshold
}

type HybridOutcome struct {
	Result     *models.RecognitionResult
	Local      LocalSignal
	Provenance models.Provenance
}

// HybridRecognizer combines the optional local classifier with the
// authoritative estimator. Nutrition numbers always come from the estimator
// unless the local-only shortcut is configured and taken.
type HybridRecognizer struct {
	estimator  NutritionEstimator
	classifier FoodClassifier
	lookup     NutritionLookup
	cfg        HybridConfig
}

// NewHybridRecognizer wires the stages. classifier and lookup may be nil.
func NewHybridRecognizer(estimator NutritionEstimator, classifier FoodClassifier, lookup NutritionLookup, cfg HybridConfig) *HybridRecognizer {
	return &HybridRecognizer{estimator: estimator, classifier: classifier, lookup: lookup, cfg: cfg}
}

func (h *HybridRecognizer) LocalEnabled() bool { return h.cfg.UseLocal && h.classifier != nil }

// EstimateImage runs the estimator alone.
func (h *HybridRecognizer) EstimateImage(ctx context.Context, image []byte, mimeType string) (*models.RecognitionResult, error) {
	res, err := h.estimator.EstimateImage(ctx, image, mimeType)
	if err != nil {
		return nil, h.estimationError("image", err)
	}
	res.Provenance = models.ProvenanceEstimatorOnly
	return res, nil
}

// EstimateText runs the estimator on a meal description.
func (h *HybridRecognizer) EstimateText(ctx context.Context, description string) (*models.RecognitionResult, error) {
	res, err := h.estimator.EstimateText(ctx, description)
	if err != nil {
		return nil, h.estimationError("text", err)
	}
	res.Provenance = models.ProvenanceEstimatorOnly
	return res, nil
}

// Recognize runs the hybrid policy on one image. Only an estimator failure
// is returned, always as *EstimationError.
func (h *HybridRecognizer) Recognize(ctx context.Context, image []byte, mimeType string) (*HybridOutcome, error) {
	if !h.LocalEnabled() {
		res, err := h.EstimateImage(ctx, image, mimeType)
		if err != nil {
			return nil, err
		}
		return &HybridOutcome{Result: res, Provenance: res.Provenance}, nil
	}

	if h.cfg.LocalOnlyThreshold > 0 {
		local := h.runLocal(ctx, image)
		if out, ok := h.localOnly(ctx, local); ok {
			return out, nil
		}
		res, err := h.estimator.EstimateImage(ctx, image, mimeType)
		if err != nil {
			return nil, h.estimationError("image", err)
		}
		return h.combine(res, local), nil
	}

	// The stages are independent; run them side by side.
	var (
		local LocalSignal
		res   *models.RecognitionResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		local = h.runLocal(gctx, image)
		return nil
	})
	g.Go(func() error {
		r, err := h.estimator.EstimateImage(gctx, image, mimeType)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, h.estimationError("image", err)
	}
	return h.combine(res, local), nil
}

// runLocal gives up after LocalTimeout even when the classifier ignores
// its context; a late answer is discarded.
func (h *HybridRecognizer) runLocal(ctx context.Context, image []byte) LocalSignal {
	timeout := h.cfg.LocalTimeout
	if timeout <= 0 {
		timeout = DefaultLocalTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		pred *models.ClassifierPrediction
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		p, err := h.classifier.Predict(ctx, image)
		done <- answer{p, err}
	}()
	var (
		pred *models.ClassifierPrediction
		err  error
	)
	select {
	case a := <-done:
		pred, err = a.pred, a.err
	case <-ctx.Done():
		err = fmt.Errorf("local stage: %w", ctx.Err())
	}
	if err != nil {
		if !errors.Is(err, ErrModelUnavailable) {
			log.Printf("hybrid: %s classifier failed: %v", h.classifier.Name(), err)
		}
		return LocalSignal{Ran: true, Err: err}
	}
	return LocalSignal{Ran: true, Prediction: pred}
}

func (h *HybridRecognizer) combine(res *models.RecognitionResult, local LocalSignal) *HybridOutcome {
	prov := models.ProvenanceEstimatorOnly
	if local.confidentAt(h.cfg.Threshold) {
		prov = models.ProvenanceClassifierAssisted
		log.Printf("hybrid: %s detected %s (confidence=%.2f)", h.classifier.Name(), local.Prediction.Label, local.Prediction.Confidence)
	}
	res.Provenance = prov
	return &HybridOutcome{Result: res, Local: local, Provenance: prov}
}

// localOnly builds a result from the local label and the nutrition lookup.
func (h *HybridRecognizer) localOnly(ctx context.Context, local LocalSignal) (*HybridOutcome, bool) {
	if h.lookup == nil || !local.confidentAt(h.cfg.LocalOnlyThreshold) {
		return nil, false
	}
	found, err := h.lookup.Search(ctx, local.Prediction.Label, 1)
	if err != nil {
		log.Printf("hybrid: nutrition lookup for %q failed: %v", local.Prediction.Label, err)
		return nil, false
	}
	if len(found) == 0 {
		return nil, false
	}
	n := found[0]
	conf := clampConfidence(local.Prediction.Confidence * 100)
	res := &models.RecognitionResult{
		Items: []models.FoodItem{{
			FoodName:    local.Prediction.Label,
			ServingSize: n.ServingSize,
			Calories:    n.Calories,
			Protein:     n.Protein,
			Carbs:       n.Carbs,
			Fat:         n.Fat,
			Confidence:  conf,
		}},
		Confidence: conf,
		Provenance: models.ProvenanceLocalOnly,
	}
	return &HybridOutcome{Result: res, Local: local, Provenance: models.ProvenanceLocalOnly}, true
}

func (h *HybridRecognizer) estimationError(op string, err error) error {
	var ee *EstimationError
	if errors.As(err, &ee) {
		return ee
	}
	return &EstimationError{Engine: h.estimator.Name(), Op: op, Err: err}
}
