package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradepop/datalake/internal/common"
)

// newTestManager opens a fresh database in a per-test temp dir.
func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "test.db"), common.NewSilentLogger())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func floatPtr(f float64) *float64 { return &f }
