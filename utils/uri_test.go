package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestPathToURI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "posix absolute path",
			input: "/home/user/project/main.go",
			want:  "file:///home/user/project/main.go",
		},
		{
			name:  "windows drive letter path with backslashes",
			input: `C:\Users\dev\project\main.go`,
			want:  "file:///C:/Users/dev/project/main.go",
		},
		{
			name:  "windows drive letter path with forward slashes",
			input: "D:/code/main.go",
			want:  "file:///D:/code/main.go",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PathToURI(tt.input)
			if got != tt.want {
				t.Errorf("PathToURI(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestURIToPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "posix file uri",
			input: "file:///home/user/project/main.go",
			want:  "/home/user/project/main.go",
		},
		{
			name:  "windows drive letter uri",
			input: "file:///C:/Users/dev/project/main.go",
			want:  "C:/Users/dev/project/main.go",
		},
		{
			name:  "percent-encoded space",
			input: "file:///home/user/dir%20with%20space/file.go",
			want:  "/home/user/dir with space/file.go",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URIToPath(tt.input)
			if err != nil {
				t.Fatalf("URIToPath(%q) returned error: %v", tt.input, err)
			}
			got = filepath.ToSlash(got)
			if got != tt.want {
				t.Errorf("URIToPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestURIToPath_RejectsNonFileURI(t *testing.T) {
	if _, err := URIToPath("https://example.com/file"); err == nil {
		t.Fatalf("expected error for non-file uri")
	}
}

// TestRoundTrip checks spec.md §8's invariant:
// uriToPath(pathToUri(p)) == normalize(p) for POSIX and Windows-style paths.
func TestRoundTrip(t *testing.T) {
	posixPaths := []string{
		"/w/a.ts",
		"/home/user/project/main.go",
		"/tmp/x/y/z.py",
	}
	for _, p := range posixPaths {
		t.Run(p, func(t *testing.T) {
			uri := PathToURI(p)
			got, err := URIToPath(uri)
			if err != nil {
				t.Fatalf("URIToPath failed: %v", err)
			}
			if filepath.ToSlash(got) != p {
				t.Errorf("round trip failed: %s -> %s -> %s", p, uri, got)
			}
		})
	}

	windowsPaths := []string{
		`C:\Users\dev\project\main.go`,
		`D:\code\lib.rs`,
	}
	for _, p := range windowsPaths {
		t.Run(p, func(t *testing.T) {
			uri := PathToURI(p)
			got, err := URIToPath(uri)
			if err != nil {
				t.Fatalf("URIToPath failed: %v", err)
			}
			want := strings.ReplaceAll(p, `\`, "/")
			if filepath.ToSlash(got) != want {
				t.Errorf("round trip failed: %s -> %s -> %s (want %s)", p, uri, got, want)
			}
		})
	}
}

func TestPathToURI_RealDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exercises a POSIX-style temp path")
	}
	tmp := t.TempDir()
	p := filepath.Join(tmp, "dir with space", "file.go")
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	uri := PathToURI(p)
	if !strings.HasPrefix(uri, "file:///") {
		t.Fatalf("PathToURI(%q) = %q, want file:/// prefix", p, uri)
	}

	got, err := URIToPath(uri)
	if err != nil {
		t.Fatalf("URIToPath failed: %v", err)
	}
	if filepath.Clean(got) != filepath.Clean(p) {
		t.Fatalf("URIToPath(%q) = %q, want %q", uri, got, p)
	}
}
