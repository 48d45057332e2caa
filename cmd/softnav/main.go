// Command softnav drives soft page navigation sessions.
//
// Usage:
//
//	softnav -serve :8080                          # run the demo site
//	softnav -walk http://host/ /about /team       # headless walk, print events
//	softnav -walk http://host/ -browser           # walk inside live Chrome
//	softnav -mcp -url http://host/                # MCP server on stdio
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/softnav/demosite"
	"github.com/hazyhaar/softnav/domdrive"
	"github.com/hazyhaar/softnav/fetch"
	"github.com/hazyhaar/softnav/location"
	"github.com/hazyhaar/softnav/navdrive"
	"github.com/hazyhaar/softnav/session"
	"github.com/hazyhaar/softnav/visitlog"
)

func main() {
	serveAddr := flag.String("serve", "", "serve the demo site on this address")
	walkURL := flag.String("walk", "", "open a session at this URL and follow links")
	mcpMode := flag.Bool("mcp", false, "serve navigation tools over MCP on stdio")
	startURL := flag.String("url", "", "start URL for -mcp")
	useBrowser := flag.Bool("browser", false, "drive a live Chrome page instead of headless HTTP")
	configPath := flag.String("config", "", "path to softnav.yaml config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *serveAddr, *walkURL, *startURL, *mcpMode, *useBrowser, flag.Args()); err != nil {
		logger.Error("softnav: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, serveAddr, walkURL, startURL string, mcpMode, useBrowser bool, hrefs []string) error {
	cfg := &fileConfig{}
	cfg.applyDefaults()
	if configPath != "" {
		loaded, err := loadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if serveAddr != "" {
		return runServe(ctx, logger, serveAddr)
	}
	if mcpMode {
		if startURL == "" {
			return errors.New("-mcp requires -url")
		}
		return runMCP(ctx, logger, cfg, startURL)
	}
	if walkURL != "" {
		if useBrowser {
			return runBrowserWalk(ctx, logger, cfg, walkURL, hrefs)
		}
		return runWalk(ctx, logger, cfg, walkURL, hrefs)
	}

	fmt.Fprintln(os.Stderr, "usage: softnav -serve <addr> | -walk <url> [hrefs...] | -mcp -url <url>")
	os.Exit(1)
	return nil
}

func runServe(ctx context.Context, logger *slog.Logger, addr string) error {
	srv := &http.Server{Addr: addr, Handler: demosite.Router()}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	logger.Info("softnav: demo site listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *fileConfig) fetcher(logger *slog.Logger) *fetch.Fetcher {
	var opts []fetch.Option
	if c.UserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(c.UserAgent))
	}
	if c.MaxBodySize > 0 {
		opts = append(opts, fetch.WithMaxBodySize(c.MaxBodySize))
	}
	opts = append(opts, fetch.WithLogger(logger))
	return fetch.New(opts...)
}

func (c *fileConfig) root() (location.Location, error) {
	if c.Root == "" {
		return location.Location{}, nil
	}
	return location.Parse(c.Root)
}

func (c *fileConfig) openLog(logger *slog.Logger) (*visitlog.Store, error) {
	if c.VisitLog == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite", c.VisitLog)
	if err != nil {
		return nil, fmt.Errorf("open visit log: %w", err)
	}
	db.SetMaxOpenConns(1)
	store := visitlog.NewStore(db, logger)
	if err := store.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init visit log: %w", err)
	}
	return store, nil
}

func runWalk(ctx context.Context, logger *slog.Logger, cfg *fileConfig, startURL string, hrefs []string) error {
	root, err := cfg.root()
	if err != nil {
		return err
	}
	log, err := cfg.openLog(logger)
	if err != nil {
		return err
	}
	if log != nil {
		defer log.Close()
	}

	d, err := navdrive.Open(ctx, startURL, navdrive.Config{
		Root:      root,
		Fetcher:   cfg.fetcher(logger),
		CacheSize: cfg.CacheSize,
		Log:       log,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	d.Session().SetProgressBarDelay(cfg.ProgressBarDelay)
	printHooks(d.Session())

	report := func() {
		cur := d.Current()
		title := ""
		if cur != nil {
			title = cur.Title
		}
		fmt.Printf("at %s (%q), history depth %d\n",
			d.Session().Location().RequestURL(), title, d.History().Len())
	}
	report()

	for _, href := range hrefs {
		if d.ClickLink(href) {
			report()
			continue
		}
		fmt.Printf("link %s not intercepted\n", href)
		if raw, ok := d.LastRawNavigation(); ok {
			fmt.Printf("raw navigation to %s\n", raw.String())
		}
	}

	// Walk back through everything we pushed.
	for d.History().Len() > 1 {
		if err := d.Back(); err != nil {
			break
		}
		report()
	}
	return nil
}

func runBrowserWalk(ctx context.Context, logger *slog.Logger, cfg *fileConfig, startURL string, hrefs []string) error {
	root, err := cfg.root()
	if err != nil {
		return err
	}
	log, err := cfg.openLog(logger)
	if err != nil {
		return err
	}
	if log != nil {
		defer log.Close()
	}

	mgr := domdrive.NewManager(domdrive.ManagerConfig{
		RemoteURL: cfg.Browser.Remote,
		Headful:   cfg.Browser.Headful,
		Logger:    logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	d, err := domdrive.Open(ctx, mgr, startURL, domdrive.Config{
		Root:      root,
		Fetcher:   cfg.fetcher(logger),
		CacheSize: cfg.CacheSize,
		Log:       log,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer d.Close()
	printHooks(d.Session())

	for _, href := range hrefs {
		if err := d.Visit(href); err != nil {
			logger.Warn("softnav: visit failed", "href", href, "error", err)
		}
	}

	// Keep the page alive for interactive clicking until interrupted.
	<-ctx.Done()
	return nil
}

func runMCP(ctx context.Context, logger *slog.Logger, cfg *fileConfig, startURL string) error {
	root, err := cfg.root()
	if err != nil {
		return err
	}
	log, err := cfg.openLog(logger)
	if err != nil {
		return err
	}
	if log != nil {
		defer log.Close()
	}

	d, err := navdrive.Open(ctx, startURL, navdrive.Config{
		Root:      root,
		Fetcher:   cfg.fetcher(logger),
		CacheSize: cfg.CacheSize,
		Log:       log,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "softnav",
		Version: "1.0.0",
	}, nil)
	d.RegisterMCP(srv)

	logger.Info("softnav: MCP server on stdio", "start_url", startURL)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

// printHooks logs every phase of every visit to stdout.
func printHooks(s *session.Session) {
	h := s.Hooks()
	h.OnClick(func(ev session.ClickEvent) bool {
		fmt.Printf("click %s\n", ev.Location.RequestURL())
		return true
	})
	h.OnBeforeVisit(func(ev session.VisitEvent) bool {
		fmt.Printf("before-visit %s %s\n", ev.Action, ev.Location.RequestURL())
		return true
	})
	h.OnVisit(func(ev session.VisitEvent) {
		fmt.Printf("visit %s %s\n", ev.Action, ev.Location.RequestURL())
	})
	h.OnBeforeCache(func() { fmt.Println("before-cache") })
	h.OnBeforeRender(func(ev session.RenderEvent) {
		fmt.Printf("before-render (%d bytes)\n", len(ev.NewBody))
	})
	h.OnRender(func() { fmt.Println("render") })
	h.OnLoad(func(ev session.LoadEvent) {
		fmt.Printf("load %v\n", ev.Timing)
	})
}
