// Package training runs the offline fine-tuning loop that produces classifier
// checkpoints from the Food-101 benchmark and the curated custom dataset.
package training

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"diettracker/ml/labels"
	"diettracker/ml/preprocess"
)

// ErrDataUnavailable aborts a run whose requested datasets are missing or empty.
var ErrDataUnavailable = errors.New("training: dataset unavailable")

// Sample is one labeled image on disk.
type Sample struct {
	Path  string
	Label int
}

// Dataset is the assembled label set with its train and validation splits.
type Dataset struct {
	Classes []string
	Train   []Sample
	Val     []Sample
}

// Sources selects which datasets to read under DataDir.
type Sources struct {
	DataDir string
	Food101 bool
	Custom  bool
	Seed    int64
}

// CustomTrainFraction is the share of custom samples used for training.
const CustomTrainFraction = 0.8

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

func Food101Dir(dataDir string) string { return filepath.Join(dataDir, "food101", "food-101") }

func CustomDir(dataDir string) string { return filepath.Join(dataDir, "custom") }

// Assemble builds the label set and both splits. The label set always starts
// with the Food-101 classes so their indices stay stable; custom classes
// outside Food-101 are appended in sorted order.
func Assemble(src Sources) (*Dataset, error) {
	if !src.Food101 && !src.Custom {
		return nil, fmt.Errorf("%w: no source selected", ErrDataUnavailable)
	}

	var custom map[string][]string
	if src.Custom {
		var err error
		custom, err = ScanCustom(CustomDir(src.DataDir))
		if err != nil {
			return nil, err
		}
	}

	extra := make([]string, 0, len(custom))
	for class := range custom {
		if _, ok := labels.Food101ID(class); !ok {
			extra = append(extra, class)
		}
	}
	sort.Strings(extra)
	ds := &Dataset{Classes: labels.Merge(labels.Food101, extra)}
	index := make(map[string]int, len(ds.Classes))
	for i, c := range ds.Classes {
		index[c] = i
	}

	if src.Food101 {
		dir := Food101Dir(src.DataDir)
		train, err := readFood101Split(dir, "train", index)
		if err != nil {
			return nil, err
		}
		val, err := readFood101Split(dir, "test", index)
		if err != nil {
			return nil, err
		}
		ds.Train = append(ds.Train, train...)
		ds.Val = append(ds.Val, val...)
		log.Printf("train: food-101 %d train, %d test samples", len(train), len(val))
	}

	if src.Custom {
		var all []Sample
		classes := make([]string, 0, len(custom))
		for c := range custom {
			classes = append(classes, c)
		}
		sort.Strings(classes)
		for _, c := range classes {
			for _, p := range custom[c] {
				all = append(all, Sample{Path: p, Label: index[c]})
			}
		}
		rng := rand.New(rand.NewSource(src.Seed))
		rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
		cut := int(CustomTrainFraction * float64(len(all)))
		ds.Train = append(ds.Train, all[:cut]...)
		ds.Val = append(ds.Val, all[cut:]...)
		log.Printf("train: custom %d samples across %d classes (%d train, %d val)",
			len(all), len(classes), cut, len(all)-cut)
	}

	if len(ds.Train) == 0 {
		return nil, fmt.Errorf("%w: no training samples", ErrDataUnavailable)
	}
	return ds, nil
}

// ScanCustom lists <dir>/<class>/<image> files by class. Files with other
// extensions are ignored.
func ScanCustom(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: custom dataset not found at %s", ErrDataUnavailable, dir)
		}
		return nil, fmt.Errorf("read custom dataset: %w", err)
	}
	out := make(map[string][]string)
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		classDir := filepath.Join(dir, e.Name())
		files, err := os.ReadDir(classDir)
		if err != nil {
			log.Printf("train: skipping %s: %v", classDir, err)
			continue
		}
		for _, f := range files {
			if f.IsDir() || !imageExts[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			out[e.Name()] = append(out[e.Name()], filepath.Join(classDir, f.Name()))
		}
		sort.Strings(out[e.Name()])
	}
	return out, nil
}

// readFood101Split reads meta/<split>.txt, whose lines look like
// "apple_pie/1005649" and name images/apple_pie/1005649.jpg.
func readFood101Split(dir, split string, index map[string]int) ([]Sample, error) {
	meta := filepath.Join(dir, "meta", split+".txt")
	f, err := os.Open(meta)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: food-101 %s split not found at %s", ErrDataUnavailable, split, meta)
		}
		return nil, fmt.Errorf("open %s: %w", meta, err)
	}
	defer f.Close()

	var out []Sample
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		class, _, ok := strings.Cut(line, "/")
		id, known := index[class]
		if !ok || !known {
			log.Printf("train: ignoring food-101 entry %q", line)
			continue
		}
		out = append(out, Sample{
			Path:  filepath.Join(dir, "images", filepath.FromSlash(line)+".jpg"),
			Label: id,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", meta, err)
	}
	return out, nil
}

func loadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return preprocess.Decode(data)
}
