package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(dir, "beliefs.png"), false},
		{"nested missing dirs", filepath.Join(dir, "a", "b", "beliefs.html"), false},
		{"dir itself", dir, false},
		{"parent escape", filepath.Join(dir, "..", "escape.png"), true},
		{"absolute elsewhere", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, dir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectorySymlink(t *testing.T) {
	safe := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(safe, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(link, "x.png"), safe))
}

func TestValidateOutputPath(t *testing.T) {
	assert.NoError(t, ValidateOutputPath(filepath.Join(t.TempDir(), "out.html")))
	assert.NoError(t, ValidateOutputPath("plots/beliefs.png"))
	assert.Error(t, ValidateOutputPath("/proc/gridloc.html"))
}

func TestValidatePathMissingSafeDir(t *testing.T) {
	err := ValidatePathWithinDirectory("x", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"m1":            "m1",
		"m1.txt":        "m1.txt",
		"my map (v2)":   "my_map_v2",
		"../../etc":     "etc",
		"":              "unknown",
		"***":           "unknown",
		"a--b__c":       "a--b__c",
		"colour/world ": "colour_world",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}
