package images

import (
	"bytes"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/nvr-ai/go-segeval/errs"
)

// Decoder turns an image file into a label map.
type Decoder interface {
	// Decode reads the file at path. Read and format failures are returned
	// wrapped with the path; multi-channel images fail with
	// errs.ErrInputMismatch.
	Decode(path string) (*LabelMap, error)
}

// StdDecoder decodes single channel PNG, GIF, BMP, TIFF and JPEG images with
// the Go image decoders.
type StdDecoder struct{}

// Decode implements Decoder.
func (StdDecoder) Decode(path string) (*LabelMap, error) {
	// The image decoder swallows i/o errors, so the whole file is read first
	// and a byte reader is handed to the decoder.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load %s", path)
	}

	m, err := DecodeBytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load %s", path)
	}
	return m, nil
}

// DecodeBytes decodes an encoded single channel image.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - *LabelMap: The decoded ids.
//   - error: An error if decoding fails or the image has several channels.
func DecodeBytes(data []byte) (*LabelMap, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	m, err := FromImage(img)
	if err != nil {
		return nil, errors.Wrapf(err, "%s image", format)
	}
	return m, nil
}

// FromImage converts a single channel image into a label map. Paletted
// images yield their palette indexes.
//
// Arguments:
//   - img: The decoded image.
//
// Returns:
//   - *LabelMap: The ids, one per pixel.
//   - error: errs.ErrInputMismatch for multi-channel images.
func FromImage(img image.Image) (*LabelMap, error) {
	b := img.Bounds()
	m := NewLabelMap(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < m.Height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+m.Width]
			out := m.Pix[y*m.Width : (y+1)*m.Width]
			for x, v := range row {
				out[x] = int32(v)
			}
		}
	case *image.Gray16:
		for y := 0; y < m.Height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+2*m.Width]
			out := m.Pix[y*m.Width : (y+1)*m.Width]
			for x := range out {
				out[x] = int32(row[2*x])<<8 | int32(row[2*x+1])
			}
		}
	case *image.Paletted:
		for y := 0; y < m.Height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+m.Width]
			out := m.Pix[y*m.Width : (y+1)*m.Width]
			for x, v := range row {
				out[x] = int32(v)
			}
		}
	default:
		return nil, errs.InputMismatch("image has multiple channels (%T)", img)
	}

	return m, nil
}
