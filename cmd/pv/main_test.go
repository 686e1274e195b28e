package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/philoview/pkg/api"
	"github.com/vanderheijden86/philoview/pkg/config"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		format, out string
		want        string
		wantErr     bool
	}{
		{"", "", formatMarkdown, false},
		{"", "tree.SVG", formatSVG, false},
		{"", "tree.md", formatMarkdown, false},
		{"markdown", "tree.svg", formatMarkdown, false},
		{"svg", "", formatSVG, false},
		{"pdf", "", "", true},
	}
	for _, tt := range tests {
		got, err := resolveFormat(tt.format, tt.out)
		if (err != nil) != tt.wantErr {
			t.Errorf("resolveFormat(%q, %q) error = %v, wantErr %v", tt.format, tt.out, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("resolveFormat(%q, %q) = %q, want %q", tt.format, tt.out, got, tt.want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "pv dev\n" {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, _, err := execute(t, "config", "init", "--config", path, "--base-url", "https://example.org", "--card", "author")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote "+path) {
		t.Errorf("unexpected output %q", out)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.BaseURL != "https://example.org" || cfg.CardVariant != config.CardAuthor {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.PageSize != config.DefaultConfig().PageSize {
		t.Errorf("expected default page size, got %d", cfg.PageSize)
	}

	if _, _, err := execute(t, "config", "init", "--config", path); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	if _, _, err := execute(t, "config", "init", "--config", path, "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
	cfg, _ = config.Load(path)
	if cfg.CardVariant != config.CardCrossRef {
		t.Errorf("--force should rewrite defaults, got card %q", cfg.CardVariant)
	}
}

func TestConfigInitProject(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if _, _, err := execute(t, "config", "init", "--project", "--lang", "en"); err != nil {
		t.Fatalf("config init --project: %v", err)
	}
	cfg, err := config.Load(filepath.Join(dir, ".pv", "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Language != "en" {
		t.Errorf("expected lang en, got %q", cfg.Language)
	}
	ignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(ignore), ".pv/\n") {
		t.Errorf(".gitignore does not cover .pv:\n%s", ignore)
	}

	if _, _, err := execute(t, "config", "init", "--project", "--config", "x.yaml"); err == nil {
		t.Error("expected --project with --config to fail")
	}
}

func TestConfigInitRejectsInvalidFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, _, err := execute(t, "config", "init", "--config", path, "--lang", "fr"); err == nil {
		t.Fatal("expected invalid language to be rejected")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("no file should be written, stat err = %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	out, _, err := execute(t, "config", "path", "--config", path)
	if err != nil {
		t.Fatal(err)
	}
	if out != path+" (not created yet)\n" {
		t.Errorf("unexpected output %q", out)
	}
}

// newSite serves a two-root hierarchy; school 2 fails to load its children
// when failing is set.
func newSite(t *testing.T, failing bool) *httptest.Server {
	t.Helper()
	children := map[string]string{
		"1": `[{"id":4,"displayName":"Stoicism","parentId":1,"hasChildren":false},
		       {"id":5,"displayName":"Skepticism","parentId":1,"hasChildren":true}]`,
		"5": `[{"id":8,"displayName":"Pyrrhonism","parentId":5,"hasChildren":false}]`,
		"2": `[]`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(api.PathSchoolsPage, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<ul id="school-tree">
			<li><div class="school-link" data-id="1"><span>Hellenistic</span></div></li>
			<li><div class="school-link" data-id="2"><span>Chinese</span></div></li>
		</ul>`)
	})
	mux.HandleFunc(api.PathChildren, func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("parentId")
		if failing && id == "2" {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		body, ok := children[id]
		if !ok {
			body = "[]"
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.LogFile = filepath.Join(dir, "pv.log")
	cfg.HistoryDB = filepath.Join(dir, "history.db")
	path := filepath.Join(dir, "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExportMarkdownToStdout(t *testing.T) {
	srv := newSite(t, false)
	cfgPath := writeConfig(t, srv.URL)

	out, _, err := execute(t, "export", "--config", cfgPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, want := range []string{
		"# Schools\n",
		"- **Schools**: 5\n",
		"- [Hellenistic](" + srv.URL + "/schools/filter/1)\n",
		"    - [Pyrrhonism](" + srv.URL + "/schools/filter/8)\n",
		"- [Chinese](" + srv.URL + "/schools/filter/2)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExportSVGToFileWithFailures(t *testing.T) {
	srv := newSite(t, true)
	cfgPath := writeConfig(t, srv.URL)
	outPath := filepath.Join(t.TempDir(), "schools.svg")

	_, stderr, err := execute(t, "export", "--config", cfgPath, "--out", outPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(stderr, "Warning: some schools could not be loaded") {
		t.Errorf("expected a warning, got %q", stderr)
	}
	if !strings.Contains(stderr, "Exported 5 schools to "+outPath) {
		t.Errorf("expected summary, got %q", stderr)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<svg") || !strings.Contains(string(data), "Pyrrhonism") {
		t.Errorf("unexpected svg:\n%s", data)
	}
}

func TestExportDepth(t *testing.T) {
	srv := newSite(t, false)
	cfgPath := writeConfig(t, srv.URL)

	out, _, err := execute(t, "export", "--config", cfgPath, "--depth", "1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if strings.Contains(out, "Pyrrhonism") {
		t.Errorf("depth 1 should stop below the first level:\n%s", out)
	}
	if !strings.Contains(out, "[Skepticism]("+srv.URL+"/schools/filter/5) _(not loaded)_") {
		t.Errorf("expected unloaded marker:\n%s", out)
	}
}

func TestExportRejectsMissingConfig(t *testing.T) {
	_, _, err := execute(t, "export", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

type changedSet map[string]bool

func (c changedSet) Changed(name string) bool { return c[name] }

func TestFlagsOverrideConfig(t *testing.T) {
	cfgPath := writeConfig(t, "https://file.example.org")
	o := &rootOptions{
		configPath: cfgPath,
		lang:       "en",
		role:       "moderator",
		card:       "author",
		flags:      changedSet{"lang": true, "role": true},
	}

	cfg, path, found, err := o.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if path != cfgPath || !found {
		t.Errorf("expected %s to be found, got %s (%v)", cfgPath, path, found)
	}
	if cfg.Language != "en" || cfg.Role() != "MODERATOR" {
		t.Errorf("set flags not applied: lang=%q role=%q", cfg.Language, cfg.Role())
	}
	if cfg.CardVariant != config.CardCrossRef {
		t.Errorf("unset --card must not override, got %q", cfg.CardVariant)
	}
	if cfg.BaseURL != "https://file.example.org" {
		t.Errorf("expected base_url from file, got %q", cfg.BaseURL)
	}
}

func TestRootRefusesWithoutTerminal(t *testing.T) {
	cfgPath := writeConfig(t, "https://example.org")
	_, _, err := execute(t, "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "interactive terminal") {
		t.Fatalf("expected terminal error, got %v", err)
	}
}
