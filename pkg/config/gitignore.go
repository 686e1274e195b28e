package config

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const ignoreHeader = "# pv project config (may hold a session cookie)"

// EnsureIgnored adds .pv/ to dir's .gitignore unless a line already covers
// it, so a project config carrying session_cookie is never committed. The
// file is created if missing and existing lines are kept as they are.
func EnsureIgnored(dir string) error {
	path := filepath.Join(dir, ".gitignore")

	covered, err := ignoresProjectDir(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if covered {
		return nil
	}
	return appendIgnore(path, projectDir+"/")
}

func ignoresProjectDir(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if coversProjectDir(line) {
			return true, nil
		}
	}
	return false, sc.Err()
}

// coversProjectDir reports whether a .gitignore pattern ignores .pv as a
// whole. Patterns for files inside it (.pv/config.yaml) do not count.
func coversProjectDir(pattern string) bool {
	switch strings.TrimPrefix(pattern, "/") {
	case projectDir, projectDir + "/", projectDir + "/*", projectDir + "/**", projectDir + "/**/*":
		return true
	}
	return false
}

func appendIgnore(path, pattern string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	var b strings.Builder
	if len(existing) > 0 {
		if existing[len(existing)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	b.WriteString(ignoreHeader + "\n" + pattern + "\n")

	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ProjectConfigPath is where `pv config init --project` writes for dir.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, projectDir, fileName)
}
