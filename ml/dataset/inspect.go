package dataset

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"diettracker/ml/preprocess"
	"diettracker/ml/training"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// ClassCount is the number of images of one class.
type ClassCount struct {
	Class  string `json:"class"`
	Images int    `json:"images"`
}

type SourceStats struct {
	Present bool         `json:"present"`
	Classes []ClassCount `json:"classes"`
	Total   int          `json:"total"`
}

type Stats struct {
	Food101 SourceStats `json:"food101"`
	Custom  SourceStats `json:"custom"`
}

// CollectStats counts images per class in the food101 and custom datasets
// under dataDir. A missing dataset is reported as not present.
func CollectStats(dataDir string) (*Stats, error) {
	s := &Stats{}
	var err error
	if s.Food101, err = countClasses(filepath.Join(training.Food101Dir(dataDir), "images")); err != nil {
		return nil, err
	}
	if s.Custom, err = countClasses(training.CustomDir(dataDir)); err != nil {
		return nil, err
	}
	return s, nil
}

func countClasses(dir string) (SourceStats, error) {
	var st SourceStats
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	st.Present = true
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			return st, err
		}
		n := 0
		for _, f := range files {
			if !f.IsDir() && imageExts[strings.ToLower(filepath.Ext(f.Name()))] {
				n++
			}
		}
		st.Classes = append(st.Classes, ClassCount{Class: e.Name(), Images: n})
		st.Total += n
	}
	sort.Slice(st.Classes, func(i, j int) bool { return st.Classes[i].Class < st.Classes[j].Class })
	return st, nil
}

type ValidateReport struct {
	Checked int      `json:"checked"`
	Corrupt []string `json:"corrupt"`
	Removed int      `json:"removed"`
}

// Validate decodes every image under dir. With fix set, undecodable files
// are deleted.
func Validate(dir string, fix bool) (*ValidateReport, error) {
	rep := &ValidateReport{Corrupt: []string{}}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !imageExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rep.Checked++
		data, err := os.ReadFile(path)
		if err == nil {
			_, err = preprocess.Decode(data)
		}
		if err == nil {
			return nil
		}
		rep.Corrupt = append(rep.Corrupt, path)
		if fix {
			if rmErr := os.Remove(path); rmErr != nil {
				log.Printf("dataset: could not remove %s: %v", path, rmErr)
				return nil
			}
			rep.Removed++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}
