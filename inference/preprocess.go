package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ImageNet channel statistics, used by most Cityscapes checkpoints.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// PrepareInput resizes img and writes it into dst as normalized CHW floats.
//
// Arguments:
//   - img: The image to prepare.
//   - dst: The destination buffer, at least 3*width*height floats.
//   - width: Model input width.
//   - height: Model input height.
//   - mean: Per-channel mean subtracted after scaling to [0, 1].
//   - std: Per-channel divisor. Zero entries leave the channel unscaled.
//
// Returns:
//   - error: An error if dst is too small.
func PrepareInput(img image.Image, dst []float32, width, height int, mean, std [3]float32) error {
	channelSize := width * height
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d", len(dst), channelSize*3)
	}

	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
		b = img.Bounds()
	}

	planes := [3][]float32{
		dst[0:channelSize],
		dst[channelSize : channelSize*2],
		dst[channelSize*2 : channelSize*3],
	}

	var scale [3]float32
	for c := range scale {
		scale[c] = 1
		if std[c] != 0 {
			scale[c] = 1 / std[c]
		}
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			rgb := [3]uint32{r, g, bl}
			for c := range planes {
				planes[c][i] = (float32(rgb[c]>>8)/255 - mean[c]) * scale[c]
			}
			i++
		}
	}
	return nil
}
