package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Catalog is the fixed, ordered list of base product photos the user can pick
// from. The hosting application supplies it; the composer only resolves IDs
// to encoded image bytes.
type Catalog interface {
	IDs() []string
	Resolve(id string) ([]byte, error)
}

// DirCatalog serves base photos from a directory. The ID of each photo is its
// file name; ordering is lexicographic and stable for the process lifetime.
type DirCatalog struct {
	dir string
	ids []string
}

// NewDirCatalog scans dir for PNG/JPEG files.
func NewDirCatalog(dir string) (*DirCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)

	logrus.WithFields(logrus.Fields{
		"dir":   dir,
		"count": len(ids),
	}).Info("Base image catalog loaded")
	return &DirCatalog{dir: dir, ids: ids}, nil
}

func (c *DirCatalog) IDs() []string {
	return append([]string(nil), c.ids...)
}

func (c *DirCatalog) Resolve(id string) ([]byte, error) {
	if filepath.Base(id) != id || id == "" || id == "." || id == ".." {
		return nil, fmt.Errorf("invalid base image id %q", id)
	}
	data, err := os.ReadFile(filepath.Join(c.dir, id))
	if err != nil {
		return nil, fmt.Errorf("base image %s not found: %w", id, err)
	}
	return data, nil
}
