package util

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file, nil unless requested.
	Data []byte
}

// DirFiles is one directory visited by WalkFiles.
type DirFiles struct {
	// Dir is the directory path.
	Dir string
	// Files are the regular file names in Dir, sorted.
	Files []string
}

// isImage reports whether name has an image extension.
func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".gif":
		return true
	}
	return false
}

// LoadDirectoryImageFiles lists the image files of a directory, sorted by
// name.
//
// Arguments:
// - dir: Directory path containing image files.
// - withData: Whether to read the raw bytes of every file.
//
// Returns:
// - []ImageFile: One entry per image file.
// - error: Error if listing or reading fails.
func LoadDirectoryImageFiles(dir string, withData bool) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list %s", dir)
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() || !isImage(file.Name()) {
			continue
		}

		image := ImageFile{Path: filepath.Join(dir, file.Name())}
		if withData {
			image.Data, err = os.ReadFile(image.Path)
			if err != nil {
				return nil, errors.Wrapf(err, "unable to read %s", image.Path)
			}
		}
		images = append(images, image)
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Path < images[j].Path
	})

	return images, nil
}

// WalkFiles visits root and every directory below it, in lexical order.
//
// Arguments:
// - root: Directory to walk.
//
// Returns:
// - []DirFiles: The visited directories with their file names.
// - error: Error if root cannot be walked.
func WalkFiles(root string) ([]DirFiles, error) {
	var walk []DirFiles
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		dir := DirFiles{Dir: path}
		for _, e := range entries {
			if e.Type().IsRegular() {
				dir.Files = append(dir.Files, e.Name())
			}
		}
		walk = append(walk, dir)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to walk %s", root)
	}
	return walk, nil
}
