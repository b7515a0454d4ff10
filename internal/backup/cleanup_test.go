package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCleanupOptions(t *testing.T) {
	opts := DefaultCleanupOptions()
	assert.Equal(t, 10, opts.MaxBackups)
	assert.Equal(t, 30*24*time.Hour, opts.MaxAge)
	assert.True(t, opts.KeepAtLeastOne)
	assert.False(t, opts.DryRun)
}

func createN(t *testing.T, m *Manager, path string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		meta, err := m.Create(path, []byte{byte(i)}, Options{})
		require.NoError(t, err)
		ids = append(ids, meta.ID)
	}
	return ids
}

func TestCleanup(t *testing.T) {
	tests := map[string]struct {
		opts      CleanupOptions
		advance   time.Duration
		wantLeft  int
		wantGone  int
		keepsLast bool
	}{
		"count limit": {
			opts:     CleanupOptions{MaxBackups: 2},
			wantLeft: 2,
			wantGone: 3,
		},
		"unlimited": {
			opts:     CleanupOptions{},
			wantLeft: 5,
		},
		"all expired keeps newest": {
			opts:      CleanupOptions{MaxAge: time.Hour, KeepAtLeastOne: true},
			advance:   48 * time.Hour,
			wantLeft:  1,
			wantGone:  4,
			keepsLast: true,
		},
		"all expired without keep": {
			opts:     CleanupOptions{MaxAge: time.Hour},
			advance:  48 * time.Hour,
			wantLeft: 0,
			wantGone: 5,
		},
		"dry run": {
			opts:     CleanupOptions{MaxBackups: 1, DryRun: true},
			wantLeft: 5,
			wantGone: 4,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := newTestManager(t)
			ids := createN(t, m, "a.md", 5)

			if tt.advance > 0 {
				later := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(tt.advance)
				m.now = func() time.Time { return later }
			}

			gone, err := m.Cleanup(tt.opts)
			require.NoError(t, err)
			assert.Len(t, gone, tt.wantGone)

			left, err := m.List("")
			require.NoError(t, err)
			assert.Len(t, left, tt.wantLeft)
			if tt.keepsLast {
				assert.Equal(t, ids[len(ids)-1], left[0].ID)
			}
		})
	}
}

func TestCleanupPerSourcePath(t *testing.T) {
	m := newTestManager(t)
	createN(t, m, "a.md", 3)
	createN(t, m, "b.md", 1)

	_, err := m.Cleanup(CleanupOptions{MaxBackups: 1})
	require.NoError(t, err)

	a, err := m.List("a.md")
	require.NoError(t, err)
	b, err := m.List("b.md")
	require.NoError(t, err)
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
}

func TestGetStats(t *testing.T) {
	m := newTestManager(t)

	stats, err := m.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalBackups)
	assert.True(t, stats.OldestBackup.IsZero())

	first, err := m.Create("a.md", []byte("12345"), Options{})
	require.NoError(t, err)
	last, err := m.Create("b.md", []byte("123"), Options{})
	require.NoError(t, err)

	stats, err = m.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalBackups)
	assert.Equal(t, int64(8), stats.TotalSize)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, first.CreatedAt, stats.OldestBackup)
	assert.Equal(t, last.CreatedAt, stats.NewestBackup)
}
