// Package images - Label images and their decoding.
package images

import (
	"image"

	"github.com/pkg/errors"
)

// LabelMap is a 2-D array of integer label ids stored in row-major order.
//
// Ground truth and prediction images hold label ids; instance images hold
// labelID*1000 + instanceIndex.
type LabelMap struct {
	// Width is the number of columns.
	Width int
	// Height is the number of rows.
	Height int
	// Pix holds Width*Height ids, row by row.
	Pix []int32
}

// NewLabelMap allocates a zero-filled label map.
//
// Arguments:
//   - width: The number of columns.
//   - height: The number of rows.
//
// Returns:
//   - *LabelMap: The label map.
func NewLabelMap(width, height int) *LabelMap {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &LabelMap{
		Width:  width,
		Height: height,
		Pix:    make([]int32, width*height),
	}
}

// FromRows builds a label map from a slice of equally long rows.
//
// Arguments:
//   - rows: The label rows, top to bottom.
//
// Returns:
//   - *LabelMap: The label map.
//   - error: An error if the rows are ragged.
//
// @example
// gt, _ := FromRows([][]int32{{0, 0}, {1, 2}})
func FromRows(rows [][]int32) (*LabelMap, error) {
	if len(rows) == 0 {
		return NewLabelMap(0, 0), nil
	}
	m := NewLabelMap(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != m.Width {
			return nil, errors.Errorf("row %d has %d columns, expected %d", y, len(row), m.Width)
		}
		copy(m.Pix[y*m.Width:(y+1)*m.Width], row)
	}
	return m, nil
}

// MustFromRows is FromRows for literals known to be rectangular.
func MustFromRows(rows [][]int32) *LabelMap {
	m, err := FromRows(rows)
	if err != nil {
		panic(err)
	}
	return m
}

// Len returns the number of pixels.
func (m *LabelMap) Len() int {
	return len(m.Pix)
}

// At returns the id at column x, row y.
func (m *LabelMap) At(x, y int) int32 {
	return m.Pix[y*m.Width+x]
}

// Set stores the id at column x, row y.
func (m *LabelMap) Set(x, y int, id int32) {
	m.Pix[y*m.Width+x] = id
}

// Bounds returns the label map extent as an image rectangle.
func (m *LabelMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// SameSize reports whether both maps have the same width and height.
func (m *LabelMap) SameSize(other *LabelMap) bool {
	return other != nil && m.Width == other.Width && m.Height == other.Height
}

// Clone returns a deep copy.
func (m *LabelMap) Clone() *LabelMap {
	out := &LabelMap{Width: m.Width, Height: m.Height, Pix: make([]int32, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Max returns the largest id, or -1 for an empty map.
func (m *LabelMap) Max() int32 {
	maxID := int32(-1)
	for _, v := range m.Pix {
		if v > maxID {
			maxID = v
		}
	}
	return maxID
}
