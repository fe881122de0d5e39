package skiplist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkipFile(t *testing.T, dir, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644)
	require.NoError(t, err, "failed to write skip file")
}

// TestParse covers the line grammar: trimming, comments and blank lines.
func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "empty content",
			content: "",
			want:    []string{},
		},
		{
			name:    "only comments and blank lines",
			content: "# header\n\n   \n\t# indented comment\n#another\n",
			want:    []string{},
		},
		{
			name:    "entries are trimmed",
			content: "  alpha  \n\tbeta\t\ngamma\r\n",
			want:    []string{"alpha", "beta", "gamma"},
		},
		{
			name:    "duplicates collapse",
			content: "alpha\nalpha\n alpha \n",
			want:    []string{"alpha"},
		},
		{
			name:    "no trailing newline",
			content: "# skip these\nzeta\nalpha",
			want:    []string{"alpha", "zeta"},
		},
		{
			name:    "hash inside a name is kept",
			content: "pkg#1\n",
			want:    []string{"pkg#1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Parse(strings.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, set.Names())
		})
	}
}

// TestParse_LongLines checks that lines beyond 64 KiB neither abort parsing
// nor swallow the entries that follow them.
func TestParse_LongLines(t *testing.T) {
	longComment := "# " + strings.Repeat("x", 70*1024)
	longName := strings.Repeat("p", 128*1024)
	content := longComment + "\nlegacy\n" + longName + "\nwidgets"

	set, err := Parse(strings.NewReader(content))
	require.NoError(t, err)
	assert.True(t, set.Contains("legacy"))
	assert.True(t, set.Contains("widgets"))
	assert.True(t, set.Contains(longName))
	assert.Len(t, set, 3)
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields empty set", func(t *testing.T) {
		set, err := Load(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, set)
		assert.False(t, set.Contains("anything"))
	})

	t.Run("reads entries from repo root", func(t *testing.T) {
		dir := t.TempDir()
		writeSkipFile(t, dir, "# flaky on CI\nlegacy_widgets\n  experimental  \n")

		set, err := Load(dir)
		require.NoError(t, err)
		assert.True(t, set.Contains("legacy_widgets"))
		assert.True(t, set.Contains("experimental"))
		assert.False(t, set.Contains("  experimental  "))
		assert.Len(t, set, 2)
	})

	t.Run("directory in place of the file is ignored", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, FileName), 0755))

		set, err := Load(dir)
		require.NoError(t, err)
		assert.Empty(t, set)
	})
}

func TestSet_NilIsEmpty(t *testing.T) {
	var s Set
	assert.False(t, s.Contains("a"))
	assert.Empty(t, s.Names())
}
