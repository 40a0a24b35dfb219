package startup

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanketb-14/Streamline-sub000/internal/ingest"
	"github.com/sanketb-14/Streamline-sub000/internal/storage"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSandbox(t *testing.T, baseDir string) *storage.Sandbox {
	t.Helper()
	sb, err := storage.NewSandbox(baseDir)
	require.NoError(t, err)
	return sb
}

// mkStaging creates a staging directory with a source file and backdates it.
func mkStaging(t *testing.T, baseDir, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(baseDir, name)
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "source.mp4"), []byte("partial"), 0o644))
	// Writing the file bumps the directory mtime, so backdate afterwards.
	ts := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(dir, ts, ts))
	return dir
}

func TestSweepStagingDirs(t *testing.T) {
	t.Run("removes old staging directories", func(t *testing.T) {
		baseDir := t.TempDir()
		old := mkStaging(t, baseDir, ingest.StagingPrefix+"alice-1700000000000-01HZ1234567890ABCDEFGHJKMN", 2*time.Hour)

		count, err := SweepStagingDirs(newTestLogger(), newTestSandbox(t, baseDir), time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.NoDirExists(t, old)
	})

	t.Run("preserves uploads in progress", func(t *testing.T) {
		baseDir := t.TempDir()
		recent := mkStaging(t, baseDir, ingest.StagingPrefix+"bob-1700000000000-01HZ0987654321FEDCBAZYXWVT", 30*time.Minute)

		count, err := SweepStagingDirs(newTestLogger(), newTestSandbox(t, baseDir), time.Hour)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.DirExists(t, recent)
	})

	t.Run("ignores unrelated entries", func(t *testing.T) {
		baseDir := t.TempDir()
		other := mkStaging(t, baseDir, "some-other-dir", 2*time.Hour)
		file := filepath.Join(baseDir, ingest.StagingPrefix+"not-a-dir")
		require.NoError(t, os.WriteFile(file, nil, 0o644))
		ts := time.Now().Add(-2 * time.Hour)
		require.NoError(t, os.Chtimes(file, ts, ts))

		count, err := SweepStagingDirs(newTestLogger(), newTestSandbox(t, baseDir), time.Hour)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.DirExists(t, other)
		assert.FileExists(t, file)
	})

	t.Run("handles missing base directory", func(t *testing.T) {
		baseDir := filepath.Join(t.TempDir(), "staging")
		sb := newTestSandbox(t, baseDir)
		require.NoError(t, os.RemoveAll(baseDir))

		count, err := SweepStagingDirs(newTestLogger(), sb, time.Hour)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("removes several at once", func(t *testing.T) {
		baseDir := t.TempDir()
		var dirs []string
		for _, user := range []string{"a", "b", "c"} {
			dirs = append(dirs, mkStaging(t, baseDir, ingest.StagingPrefix+user+"-1700000000000-x", 3*time.Hour))
		}

		count, err := SweepStagingDirs(newTestLogger(), newTestSandbox(t, baseDir), time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		for _, d := range dirs {
			assert.NoDirExists(t, d)
		}
	})
}
