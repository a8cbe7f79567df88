// Package utils holds small host-platform helpers used by manager: the
// file:// URI <-> local path conversion manager.Manager needs
// for root URIs and per-document URIs (spec.md §4.3, "Path <-> URI").
package utils

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var windowsDriveLetter = regexp.MustCompile(`^[A-Za-z]:`)

// IsWindowsAbsPath reports whether p starts with a drive-letter prefix
// (C:\ or C:/), regardless of the runtime OS — the manager may run in a
// Linux container while mapping paths an editor reports from Windows.
func IsWindowsAbsPath(p string) bool {
	return windowsDriveLetter.MatchString(p)
}

// PathToURI converts a local OS path into a file:// URI.
//
// Backslashes are normalized to forward slashes first. A drive-letter
// path gets three slashes after the scheme (file:///C:/...); a POSIX
// absolute path already starts with "/", so the same three-slash form
// falls out once the scheme is prefixed (file:///home/user/...).
func PathToURI(path string) string {
	slashPath := filepath.ToSlash(strings.ReplaceAll(path, "\\", "/"))

	if IsWindowsAbsPath(slashPath) {
		return "file:///" + slashPath
	}

	slashPath = strings.TrimPrefix(slashPath, "/")
	return "file:///" + slashPath
}

// URIToPath converts a file:// URI back into a local OS path, reversing
// PathToURI. It tolerates both file:// and file:/// prefixes and
// percent-decodes the remainder.
func URIToPath(uri string) (string, error) {
	if !strings.HasPrefix(uri, "file://") && !strings.HasPrefix(uri, "file:") {
		return "", fmt.Errorf("not a file uri: %s", uri)
	}

	rest := strings.TrimPrefix(uri, "file://")
	rest = strings.TrimPrefix(rest, "file:")

	decoded, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("invalid uri path escape: %w", err)
	}

	// Windows drive-letter URIs look like /C:/path once the scheme is
	// stripped; drop the leading slash so callers get C:/path.
	if len(decoded) >= 3 && decoded[0] == '/' && windowsDriveLetter.MatchString(decoded[1:]) {
		decoded = decoded[1:]
	}

	return filepath.FromSlash(decoded), nil
}
