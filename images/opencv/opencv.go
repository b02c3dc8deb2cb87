// Package opencv - OpenCV backed label image decoding and resizing.
package opencv

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-segeval/errs"
	"github.com/nvr-ai/go-segeval/images"
)

// Decoder reads label images with OpenCV, keeping their bit depth.
type Decoder struct{}

// Decode implements images.Decoder.
//
// Arguments:
//   - path: The image file.
//
// Returns:
//   - *images.LabelMap: The decoded ids.
//   - error: An error if the file cannot be read, has several channels or an
//     unsupported depth.
func (Decoder) Decode(path string) (*images.LabelMap, error) {
	// IMRead returns an empty Mat instead of an error for missing files.
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "unable to load %s", path)
	}

	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer mat.Close()

	if mat.Empty() {
		return nil, errors.Errorf("unable to load %s", path)
	}

	m, err := FromMat(mat)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load %s", path)
	}
	return m, nil
}

// FromMat converts a single channel 8 or 16-bit Mat into a label map.
func FromMat(mat gocv.Mat) (*images.LabelMap, error) {
	if mat.Channels() != 1 {
		return nil, errs.InputMismatch("image has multiple channels (%d)", mat.Channels())
	}

	m := images.NewLabelMap(mat.Cols(), mat.Rows())

	switch mat.Type() {
	case gocv.MatTypeCV8UC1:
		data, err := mat.DataPtrUint8()
		if err != nil {
			return nil, errors.Wrap(err, "reading 8-bit pixels")
		}
		for i := range m.Pix {
			m.Pix[i] = int32(data[i])
		}
	case gocv.MatTypeCV16UC1:
		data, err := mat.DataPtrUint16()
		if err != nil {
			return nil, errors.Wrap(err, "reading 16-bit pixels")
		}
		for i := range m.Pix {
			m.Pix[i] = int32(data[i])
		}
	default:
		return nil, errors.Errorf("unsupported pixel type %v", mat.Type())
	}

	return m, nil
}

// ToMat converts a label map into a 16-bit single channel Mat. The caller
// owns the returned Mat.
func ToMat(m *images.LabelMap) (gocv.Mat, error) {
	buf := make([]byte, 2*len(m.Pix))
	for i, v := range m.Pix {
		if v < 0 || v > 0xffff {
			return gocv.NewMat(), errors.Errorf("label id %d does not fit a 16-bit image", v)
		}
		// OpenCV stores pixels in host byte order, little endian on every
		// platform gocv supports.
		buf[2*i] = uint8(v)
		buf[2*i+1] = uint8(v >> 8)
	}
	return gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV16UC1, buf)
}

// ResizeNearest resizes a label map with OpenCV nearest-neighbor
// interpolation. It produces the same ids as images.ResizeNearest.
func ResizeNearest(m *images.LabelMap, width, height int) (*images.LabelMap, error) {
	if m.Len() == 0 || width == 0 || height == 0 {
		return images.NewLabelMap(width, height), nil
	}

	src, err := ToMat(m)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	gocv.Resize(src, &dst, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationNearestNeighbor)
	return FromMat(dst)
}
