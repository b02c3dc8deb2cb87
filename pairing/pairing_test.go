package pairing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-segeval/errs"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestParseFileInfo(t *testing.T) {
	tests := []struct {
		path    string
		want    FileInfo
		wantErr bool
	}{
		{
			path: "/data/gtFine/val/aachen/aachen_000000_000019_gtFine_labelIds.png",
			want: FileInfo{City: "aachen", Sequence: "000000", Frame: "000019", Type: "gtFine", Type2: "labelIds", Ext: "png"},
		},
		{
			path: "aachen_000000_000019_leftImg8bit.png",
			want: FileInfo{City: "aachen", Sequence: "000000", Frame: "000019", Type: "leftImg8bit", Ext: "png"},
		},
		{path: "aachen_000019.png", wantErr: true},
		{path: "a_b_c_d_e_f_g.png", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ParseFileInfo(tt.path)
			if tt.wantErr {
				assert.True(t, errors.Is(err, errs.ErrPairing))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstancePath(t *testing.T) {
	assert.Equal(t,
		"val/aachen/aachen_000000_000019_gtFine_instanceIds.png",
		InstancePath("val/aachen/aachen_000000_000019_gtFine_labelIds.png"))
}

func TestFindGroundTruth(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "bremen", "bremen_000001_000019_gtFine_labelIds.png"))
	touch(t, filepath.Join(dir, "aachen", "aachen_000000_000019_gtFine_labelIds.png"))
	touch(t, filepath.Join(dir, "aachen", "aachen_000000_000019_gtFine_instanceIds.png"))

	files, err := FindGroundTruth(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "aachen", "aachen_000000_000019_gtFine_labelIds.png"),
		filepath.Join(dir, "bremen", "bremen_000001_000019_gtFine_labelIds.png"),
	}, files)

	_, err = FindGroundTruth(t.TempDir(), "")
	assert.True(t, errors.Is(err, errs.ErrPairing))
}

func TestMatcher(t *testing.T) {
	gtDir := t.TempDir()
	predDir := t.TempDir()
	gtA := filepath.Join(gtDir, "aachen", "aachen_000000_000019_gtFine_labelIds.png")
	gtB := filepath.Join(gtDir, "bremen", "bremen_000001_000019_gtFine_labelIds.png")
	gtC := filepath.Join(gtDir, "bochum", "bochum_000000_000313_gtFine_labelIds.png")

	predA := filepath.Join(predDir, "aachen_000000_000019_pred_labelIds.png")
	touch(t, predA)
	touch(t, filepath.Join(predDir, "x", "bremen_000001_000019_a.png"))
	touch(t, filepath.Join(predDir, "y", "bremen_000001_000019_b.png"))
	touch(t, filepath.Join(predDir, "aachen_000000_000019_pred.jpg"))

	m := NewMatcher(predDir)

	got, err := m.Match(gtA)
	require.NoError(t, err)
	assert.Equal(t, predA, got)

	_, err = m.Match(gtB)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPairing))
	assert.Contains(t, err.Error(), "multiple predictions")

	_, err = m.Match(gtC)
	assert.True(t, errors.Is(err, errs.ErrPairing))
	assert.Contains(t, err.Error(), "no prediction")

	_, err = m.MatchAll([]string{gtA, gtB})
	assert.True(t, errors.Is(err, errs.ErrPairing))

	all, err := m.MatchAll([]string{gtA})
	require.NoError(t, err)
	assert.Equal(t, []string{predA}, all)
}

func TestMatcherMissingRoot(t *testing.T) {
	m := NewMatcher(filepath.Join(t.TempDir(), "missing"))
	_, err := m.Match("aachen_000000_000019_gtFine_labelIds.png")
	assert.Error(t, err)
}
