package defaults_test

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/ui"
)

// TestVersionConsistency ensures all version references match defaults.Version
func TestVersionConsistency(t *testing.T) {
	// Verify ui.Version matches defaults.Version
	if ui.Version != defaults.Version {
		t.Errorf("ui.Version (%s) != defaults.Version (%s)", ui.Version, defaults.Version)
	}

	// Verify version format is valid semver
	semverPattern := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9]+)?$`)
	if !semverPattern.MatchString(defaults.Version) {
		t.Errorf("defaults.Version (%s) is not valid semver", defaults.Version)
	}

	// Scan for hardcoded version strings that should use defaults.Version
	root := findProjectRoot(t)
	hardcoded := regexp.MustCompile(`"mcpconform/\d+\.\d+`)
	var violations []string

	for _, dir := range []string{"pkg", "cmd"} {
		dirPath := filepath.Join(root, dir)
		if _, err := os.Stat(dirPath); os.IsNotExist(err) {
			continue
		}

		_ = filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() || !strings.HasSuffix(path, ".go") {
				return nil
			}
			if strings.HasSuffix(path, "_test.go") || strings.HasSuffix(path, "defaults.go") {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			if hardcoded.Match(content) {
				violations = append(violations, path)
			}
			return nil
		})
	}

	if len(violations) > 0 {
		t.Errorf("hardcoded version strings found (use defaults.Version):\n  %s",
			strings.Join(violations, "\n  "))
	}
}

func TestUserAgent(t *testing.T) {
	if got := defaults.UserAgent(""); got != defaults.UAMinimal {
		t.Errorf("UserAgent(%q) = %q, want %q", "", got, defaults.UAMinimal)
	}
	got := defaults.UserAgent("smoke")
	if !strings.Contains(got, defaults.Version) || !strings.Contains(got, "smoke") {
		t.Errorf("UserAgent(%q) = %q, missing version or context", "smoke", got)
	}
}

// TestExitCodeContract pins the exit codes scripts depend on.
func TestExitCodeContract(t *testing.T) {
	cases := []struct {
		name string
		got  int
		want int
	}{
		{"ExitSuccess", defaults.ExitSuccess, 0},
		{"ExitNonCompliant", defaults.ExitNonCompliant, 1},
		{"ExitUserError", defaults.ExitUserError, 2},
		{"ExitTransportError", defaults.ExitTransportError, 3},
		{"ExitInternalError", defaults.ExitInternalError, 4},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
