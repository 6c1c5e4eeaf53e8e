package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "gemini.key")
	if err := os.WriteFile(keyFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty.key")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("SHORTLISTER_TEST_KEY", " from-env ")

	tests := []struct {
		name      string
		src       Source
		expect    string
		errSubstr string
	}{
		{
			name:   "file wins over value and env",
			src:    Source{Name: "gemini api key", File: keyFile, Value: "inline", Env: "SHORTLISTER_TEST_KEY"},
			expect: "from-file",
		},
		{
			name:   "value wins over env",
			src:    Source{Value: " inline ", Env: "SHORTLISTER_TEST_KEY"},
			expect: "inline",
		},
		{
			name:   "env fallback",
			src:    Source{Env: "SHORTLISTER_TEST_KEY"},
			expect: "from-env",
		},
		{
			name:      "empty file",
			src:       Source{Name: "gemini api key", File: emptyFile},
			errSubstr: "is empty",
		},
		{
			name:      "missing file",
			src:       Source{Name: "gemini api key", File: filepath.Join(dir, "missing")},
			errSubstr: "reading gemini api key",
		},
		{
			name:      "unset env",
			src:       Source{Name: "openai api key", Env: "SHORTLISTER_TEST_UNSET"},
			errSubstr: "checked SHORTLISTER_TEST_UNSET",
		},
		{
			name:      "nothing configured",
			src:       Source{},
			errSubstr: "secret is not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.errSubstr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errSubstr) {
					t.Fatalf("expected error containing %q, got %v", tt.errSubstr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
