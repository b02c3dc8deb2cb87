package images

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ToImage converts a label map into an 8-bit gray image when every id fits
// in a byte and a 16-bit gray image otherwise.
//
// Arguments:
//   - m: The label map.
//
// Returns:
//   - image.Image: *image.Gray or *image.Gray16.
//   - error: An error when an id is negative or exceeds 65535.
func ToImage(m *LabelMap) (image.Image, error) {
	var maxID int32
	for _, v := range m.Pix {
		if v < 0 || v > 0xffff {
			return nil, errors.Errorf("label id %d cannot be stored in a gray image", v)
		}
		if v > maxID {
			maxID = v
		}
	}

	if maxID <= 0xff {
		img := image.NewGray(m.Bounds())
		for i, v := range m.Pix {
			img.Pix[i] = uint8(v)
		}
		return img, nil
	}

	img := image.NewGray16(m.Bounds())
	for i, v := range m.Pix {
		img.Pix[2*i] = uint8(v >> 8)
		img.Pix[2*i+1] = uint8(v)
	}
	return img, nil
}

// EncodePNG writes the label map as a gray PNG.
func EncodePNG(w io.Writer, m *LabelMap) error {
	img, err := ToImage(m)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// WritePNG writes the label map to path, creating parent directories.
func WritePNG(path string, m *LabelMap) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}

	if err := EncodePNG(f, m); err != nil {
		f.Close()
		return errors.Wrapf(err, "encoding %s", path)
	}
	return f.Close()
}
