// Package dataset holds the offline tooling around the training corpus:
// exporting collected samples to class folders, counting images per class
// and finding undecodable files.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"diettracker/ml/labels"
	"diettracker/models"
	"diettracker/utils"
)

// SampleSource lists training samples. *services.TrainingSampleStore
// implements it.
type SampleSource interface {
	List(ctx context.Context, verified *bool, limit int) ([]models.TrainingSample, error)
}

// MetadataEntry describes one exported image in metadata.json.
type MetadataEntry struct {
	File       string            `json:"file"`
	Label      string            `json:"label"`
	FoodName   string            `json:"food_name"`
	ImageURL   string            `json:"image_url"`
	Calories   *float64          `json:"calories,omitempty"`
	Protein    *float64          `json:"protein,omitempty"`
	Carbs      *float64          `json:"carbs,omitempty"`
	Fat        *float64          `json:"fat,omitempty"`
	Verified   bool              `json:"verified"`
	Source     string            `json:"source"`
	Provenance models.Provenance `json:"provenance"`
}

type ExportReport struct {
	Exported int             `json:"exported"`
	Failed   int             `json:"failed"`
	Classes  map[string]int  `json:"classes"`
	Entries  []MetadataEntry `json:"samples"`
}

type Exporter struct {
	Client      *http.Client
	Retry       utils.RetryConfig
	Concurrency int
}

func NewExporter() *Exporter {
	return &Exporter{
		Client:      &http.Client{Timeout: 30 * time.Second},
		Retry:       utils.DefaultRetryConfig(),
		Concurrency: 4,
	}
}

// Export downloads every sample into <outDir>/<label>/img_00001.<ext> and
// writes <outDir>/metadata.json. A sample whose image cannot be fetched is
// logged and skipped.
func (e *Exporter) Export(ctx context.Context, samples []models.TrainingSample, outDir string) (*ExportReport, error) {
	type job struct {
		sample models.TrainingSample
		label  string
		stem   string
	}
	counters := map[string]int{}
	jobs := make([]job, 0, len(samples))
	for _, s := range samples {
		// Stored labels are re-normalized; rows written before key rules
		// tightened may still carry separators.
		label := labels.Normalize(s.Label)
		if label == "" {
			label = labels.Normalize(s.FoodName)
		}
		if label == "" || s.ImageURL == "" {
			log.Printf("dataset: skipping sample %s without label or image", s.ID)
			continue
		}
		counters[label]++
		jobs = append(jobs, job{sample: s, label: label, stem: fmt.Sprintf("img_%05d", counters[label])})
	}

	entries := make([]*MetadataEntry, len(jobs))
	var (
		mu     sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.Concurrency))
	for i, j := range jobs {
		g.Go(func() error {
			data, err := e.fetch(gctx, j.sample.ImageURL)
			if err == nil {
				rel := filepath.Join(j.label, j.stem+utils.ImageExt(utils.SniffImageMIME(data)))
				var target string
				if target, err = containedPath(outDir, rel); err == nil {
					err = utils.WriteFileAtomic(target, data, 0o644)
				}
				if err == nil {
					s := j.sample
					entries[i] = &MetadataEntry{
						File: filepath.ToSlash(rel), Label: j.label, FoodName: s.FoodName, ImageURL: s.ImageURL,
						Calories: s.Calories, Protein: s.Protein, Carbs: s.Carbs, Fat: s.Fat,
						Verified: s.Verified, Source: s.Source, Provenance: s.Provenance,
					}
					return nil
				}
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			log.Printf("dataset: failed to export %s: %v", j.sample.ImageURL, err)
			mu.Lock()
			failed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &ExportReport{Failed: failed, Classes: map[string]int{}, Entries: []MetadataEntry{}}
	for _, en := range entries {
		if en == nil {
			continue
		}
		rep.Exported++
		rep.Classes[en.Label]++
		rep.Entries = append(rep.Entries, *en)
	}
	meta, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(filepath.Join(outDir, "metadata.json"), meta, 0o644); err != nil {
		return nil, err
	}
	return rep, nil
}

// containedPath joins rel onto root and fails unless the result is a file
// strictly inside root.
func containedPath(root, rel string) (string, error) {
	target := filepath.Join(root, rel)
	r, err := filepath.Rel(root, target)
	if err != nil {
		return "", err
	}
	if r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || filepath.IsAbs(r) {
		return "", fmt.Errorf("path %q escapes export directory", rel)
	}
	return target, nil
}

// ExportFrom lists samples from src (verified only unless all) and exports them.
func (e *Exporter) ExportFrom(ctx context.Context, src SampleSource, all bool, outDir string) (*ExportReport, error) {
	var verified *bool
	if !all {
		v := true
		verified = &v
	}
	samples, err := src.List(ctx, verified, 0)
	if err != nil {
		return nil, fmt.Errorf("list training samples: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	return e.Export(ctx, samples, outDir)
}

func (e *Exporter) fetch(ctx context.Context, url string) ([]byte, error) {
	var (
		status int
		body   []byte
	)
	err := utils.Retry(ctx, e.Retry, "image download", func(int) (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, nil, err
		}
		resp, err := e.Client.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, nil, err
		}
		status, body = resp.StatusCode, b
		return status, b, nil
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("download status %d", status)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	return body, nil
}
