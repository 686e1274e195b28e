package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// LinkKind names which link an action was about.
type LinkKind int

const (
	LinkView LinkKind = iota
	LinkEdit
	LinkContent
)

func (k LinkKind) String() string {
	switch k {
	case LinkView:
		return "view link"
	case LinkEdit:
		return "edit link"
	case LinkContent:
		return "content link"
	}
	return "link"
}

// LinkResultMsg is returned after a copy or open completes.
type LinkResultMsg struct {
	Kind   LinkKind
	URL    string
	Opened bool
	Err    error
}

// LinkWriter turns site paths into absolute URLs and hands them to the
// clipboard or the system browser.
type LinkWriter struct {
	baseURL    string
	openerPath string
	openerArgs []string
	copy       func(string) error
}

// NewLinkWriter creates a writer for baseURL, detecting the browser opener.
func NewLinkWriter(baseURL string) *LinkWriter {
	w := &LinkWriter{
		baseURL: strings.TrimRight(baseURL, "/"),
		copy:    clipboard.WriteAll,
	}
	name, args := openerCommand()
	if path, err := exec.LookPath(name); err == nil {
		w.openerPath = path
		w.openerArgs = args
	}
	return w
}

func openerCommand() (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}

// CanCopy reports whether a clipboard utility is available.
func (w *LinkWriter) CanCopy() bool { return !clipboard.Unsupported }

// CanOpen reports whether a browser opener was found.
func (w *LinkWriter) CanOpen() bool { return w.openerPath != "" }

// Absolute resolves a site path against the base URL.
func (w *LinkWriter) Absolute(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return w.baseURL + path
}

// Copy puts the absolute URL of path on the clipboard.
func (w *LinkWriter) Copy(kind LinkKind, path string) tea.Cmd {
	if path == "" {
		return w.failCmd(kind, "", fmt.Errorf("no %s for the current selection", kind))
	}
	url := w.Absolute(path)
	copyFn := w.copy
	return func() tea.Msg {
		if err := copyFn(url); err != nil {
			return LinkResultMsg{Kind: kind, URL: url, Err: fmt.Errorf("copy %s: %w", kind, err)}
		}
		return LinkResultMsg{Kind: kind, URL: url}
	}
}

// Open launches the system browser on path.
func (w *LinkWriter) Open(kind LinkKind, path string) tea.Cmd {
	if path == "" {
		return w.failCmd(kind, "", fmt.Errorf("no %s for the current selection", kind))
	}
	url := w.Absolute(path)
	if !w.CanOpen() {
		return w.failCmd(kind, url, fmt.Errorf("no browser opener found in PATH"))
	}
	opener := w.openerPath
	args := append(append([]string(nil), w.openerArgs...), url)
	return func() tea.Msg {
		out, err := exec.Command(opener, args...).CombinedOutput()
		if err != nil {
			return LinkResultMsg{Kind: kind, URL: url, Err: fmt.Errorf("%s: %w", strings.TrimSpace(string(out)), err)}
		}
		return LinkResultMsg{Kind: kind, URL: url, Opened: true}
	}
}

func (w *LinkWriter) failCmd(kind LinkKind, url string, err error) tea.Cmd {
	return func() tea.Msg {
		return LinkResultMsg{Kind: kind, URL: url, Err: err}
	}
}
