package images

// ResizeNearest performs nearest-neighbor resizing of a label map.
//
// Label ids are copied, never blended, so the output only contains ids that
// occur in the source.
//
// Arguments:
// - src: The source label map.
// - width: Target width.
// - height: Target height.
//
// Returns:
// - The resized label map.
//
// @example
// full := ResizeNearest(pred, 2048, 1024)
func ResizeNearest(src *LabelMap, width, height int) *LabelMap {
	dst := NewLabelMap(width, height)
	if src.Width == 0 || src.Height == 0 || width == 0 || height == 0 {
		return dst
	}
	if src.Width == width && src.Height == height {
		copy(dst.Pix, src.Pix)
		return dst
	}

	xRatio := float64(src.Width) / float64(width)
	yRatio := float64(src.Height) / float64(height)

	Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			srcY := int(float64(y) * yRatio)
			if srcY >= src.Height {
				srcY = src.Height - 1
			}
			srcRow := src.Pix[srcY*src.Width : (srcY+1)*src.Width]
			dstRow := dst.Pix[y*width : (y+1)*width]

			for x := range dstRow {
				srcX := int(float64(x) * xRatio)
				if srcX >= src.Width {
					srcX = src.Width - 1
				}
				dstRow[x] = srcRow[srcX]
			}
		}
	})

	return dst
}
