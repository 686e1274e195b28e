package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/vanderheijden86/philoview/pkg/api"
	"github.com/vanderheijden86/philoview/pkg/config"
	"github.com/vanderheijden86/philoview/pkg/hierarchy"
	"github.com/vanderheijden86/philoview/pkg/history"
	"github.com/vanderheijden86/philoview/pkg/logging"
	"github.com/vanderheijden86/philoview/pkg/model"
	"github.com/vanderheijden86/philoview/pkg/panel"
	"github.com/vanderheijden86/philoview/pkg/ui"
)

// rootOptions holds the persistent flags. Flags only override the config
// file when set explicitly.
type rootOptions struct {
	configPath string
	baseURL    string
	lang       string
	role       string
	card       string
	logLevel   string

	selectID string
	resume   bool

	flags interface{ Changed(string) bool }
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "pv",
		Short: "Browse the philosophy school hierarchy in the terminal",
		Long: `pv shows the school hierarchy as a tree that loads lazily as you
open schools. Opening a school shows its description and contents,
which page in as you scroll.

Settings come from --config, $PV_CONFIG, the nearest .pv/config.yaml,
or the user config directory, overlaid by PV_* environment variables.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), o)
		},
	}
	o.flags = cmd.PersistentFlags()

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "config file path")
	pf.StringVar(&o.baseURL, "base-url", "", "site to browse, e.g. https://example.org")
	pf.StringVar(&o.lang, "lang", "", "content language: zh or en")
	pf.StringVar(&o.role, "role", "", "viewer role for edit links: USER, MODERATOR or ADMIN")
	pf.StringVar(&o.card, "card", "", "content card layout: crossref or author")
	pf.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.Flags().StringVar(&o.selectID, "select", "", "open this school on start, loading its ancestors")
	cmd.Flags().BoolVar(&o.resume, "resume", false, "reopen the last visited school")

	cmd.AddCommand(newExportCmd(o), newConfigCmd(o), newVersionCmd())
	return cmd
}

// override copies explicitly set flags onto cfg.
func (o *rootOptions) override(cfg *config.Config) {
	if o.flags == nil {
		return
	}
	if o.flags.Changed("base-url") {
		cfg.BaseURL = o.baseURL
	}
	if o.flags.Changed("lang") {
		cfg.Language = o.lang
	}
	if o.flags.Changed("role") {
		cfg.ViewerRole = o.role
	}
	if o.flags.Changed("card") {
		cfg.CardVariant = o.card
	}
	if o.flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
}

// load reads, overrides and validates the config. It also returns the file
// it came from and whether that file exists.
func (o *rootOptions) load() (*config.Config, string, bool, error) {
	path, found := config.Discover(o.configPath)
	if o.configPath != "" && !found {
		return nil, "", false, fmt.Errorf("config file %s not found", o.configPath)
	}
	cfg, err := o.loadFile(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, path, found, nil
}

func (o *rootOptions) loadFile(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	o.override(cfg)
	return cfg, nil
}

func newClient(cfg *config.Config, log *zap.SugaredLogger) (*api.Client, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	return api.New(cfg.BaseURL,
		api.WithTimeout(timeout),
		api.WithLanguage(cfg.Language),
		api.WithSessionCookie(cfg.SessionCookie),
		api.WithLogger(log),
	)
}

func runTUI(ctx context.Context, o *rootOptions) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("pv needs an interactive terminal; use `pv export` for plain output")
	}

	cfg, cfgPath, cfgFound, err := o.load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Infow("starting", "base_url", cfg.BaseURL, "config", cfgPath, "version", Version)

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	var visits ui.VisitLog
	histPath := cfg.HistoryDB
	if histPath == "" {
		histPath = history.DefaultPath()
	}
	hist, err := history.Open(histPath)
	if err != nil {
		// History is a convenience; browsing works without it.
		log.Warnw("history unavailable", "path", histPath, "error", err)
	} else {
		defer hist.Close()
		visits = hist
	}

	selectID := strings.TrimSpace(o.selectID)
	if selectID == "" && o.resume {
		if hist == nil {
			return errors.New("--resume needs the visit history, which could not be opened")
		}
		last, ok, err := hist.Last(ctx)
		if err != nil {
			return fmt.Errorf("reading last visit: %w", err)
		}
		if ok {
			selectID = last.SchoolID
		}
	}

	store := hierarchy.New(client, hierarchy.WithLogger(log))

	likes, links := ui.NewLikeBadges(), ui.NewCardLinks()
	ctrl := panel.New(client,
		panel.WithViewer(model.ViewerContext{
			ViewerRole: model.Role(cfg.Role()),
			CurrentURL: client.URL(api.PathSchoolsPage),
			Language:   cfg.Language,
		}),
		panel.WithAttacher(ui.MultiAttacher(likes, links)),
		panel.WithLogger(log),
		panel.WithPageSize(cfg.PageSize),
	)
	defer ctrl.Close()

	m := ui.NewModel(ui.Options{
		Roots:   client,
		Store:   store,
		Panel:   ctrl,
		Likes:   likes,
		Links:   links,
		History: visits,
		Config:  cfg,
		Theme:   ui.ThemeFor(lipgloss.DefaultRenderer(), cfg.Theme),
		Logger:  log,
		Select:  selectID,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	if cfgFound {
		w := ui.NewConfigWatcher(ui.WatcherConfig{
			Path:   cfgPath,
			Load:   o.loadFile,
			Send:   p.Send,
			Logger: log,
		})
		if err := w.Start(); err != nil {
			log.Warnw("config watcher disabled", "error", err)
		}
		defer w.Stop()
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running pv: %w", err)
	}
	return nil
}
