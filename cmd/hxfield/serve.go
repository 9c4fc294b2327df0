package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pthm/hxfield"
	"github.com/pthm/hxfield/fieldtypes"
	"github.com/pthm/hxfield/lib/blueprint"
	"github.com/pthm/hxfield/lib/metrics"
	"github.com/pthm/hxfield/lib/store"
)

const defaultBlueprint = `handle: post
title: New post
fields:
  - handle: title
    type: text
    display: Title
    config:
      required: true
      max_length: 80
      placeholder: A short title
  - handle: published
    type: toggle
    display: Published
  - handle: password
    type: toggle_password
    display: Preview password
    instructions: Readers need it to open the preview link.
    config:
      min_length: 8
  - handle: related
    type: relationship
    display: Related posts
    default: ["1"]
    config:
      max_items: 3
`

var defaultItems = fieldtypes.MapSource{
	"1": "Getting started",
	"2": "Writing a fieldtype",
	"3": "Meta data and preload",
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a blueprint form",
		Long: `Serve a form built from a YAML blueprint using the built-in fieldtypes.

Every visit to / opens a new form instance. Field changes are posted to the
update channel under /_f/ and applied immediately; /metrics exposes
Prometheus metrics.

Examples:
  hxfield serve
  hxfield serve --blueprint post.yaml --watch
  HXFIELD_KEY=$(openssl rand -hex 32) hxfield serve --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(os.Stderr, cfg.LogLevel)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().String("key", "", "key sealing field references (random when empty)")
	cmd.Flags().StringP("blueprint", "b", "", "blueprint YAML file (default: built-in post blueprint)")
	cmd.Flags().Bool("watch", false, "reload the blueprint when the file changes")
	cmd.Flags().Duration("preload-cache-ttl", 0, "cache preloaded meta for this long (0 disables, default 30s)")
	cmd.Flags().Bool("sensitive-refs", false, "encrypt field references instead of signing them")

	for _, name := range []string{"addr", "key", "blueprint", "watch", "preload-cache-ttl", "sensitive-refs"} {
		_ = v.BindPFlag(strings.ReplaceAll(name, "-", "_"), cmd.Flags().Lookup(name))
	}
	return cmd
}

func runServe(ctx context.Context, cfg config, logger zerolog.Logger) error {
	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.host.Store().Close()

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Str("blueprint", srv.blueprint().Handle).Msg("serving")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		srv.logChanges(gctx)
		return nil
	})
	if cfg.Watch && cfg.Blueprint != "" {
		g.Go(func() error {
			return blueprint.Watch(gctx, cfg.Blueprint, logger, srv.reload)
		})
	}
	return g.Wait()
}

// server is the demo application around a host.
type server struct {
	logger   zerolog.Logger
	host     *hxfield.Host
	bp       atomic.Pointer[blueprint.Blueprint]
	registry *prometheus.Registry
}

func newServer(cfg config, logger zerolog.Logger) (*server, error) {
	bp, err := loadBlueprint(cfg.Blueprint)
	if err != nil {
		return nil, err
	}

	key := []byte(cfg.Key)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating key: %w", err)
		}
		logger.Warn().Msg("no key configured; field references will not survive a restart")
	}

	var items fieldtypes.ItemSource = defaultItems
	if len(cfg.Items) > 0 {
		items = fieldtypes.MapSource(cfg.Items)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(promReg)

	reg := hxfield.NewRegistry(hxfield.WithRegistryLogger(logger))
	fieldtypes.Register(reg, items)

	opts := []hxfield.HostOption{
		hxfield.WithLogger(logger),
		hxfield.WithMetrics(m),
	}
	if cfg.PreloadCacheTTL > 0 {
		opts = append(opts, hxfield.WithPreloadCache(cfg.PreloadCacheTTL))
	}
	if cfg.SensitiveRefs {
		opts = append(opts, hxfield.WithSensitiveRefs())
	}

	s := &server{
		logger:   logger,
		host:     hxfield.NewHost(reg, key, opts...),
		registry: promReg,
	}
	s.bp.Store(bp)
	return s, nil
}

func loadBlueprint(path string) (*blueprint.Blueprint, error) {
	if path == "" {
		return blueprint.Parse([]byte(defaultBlueprint))
	}
	return blueprint.Load(path)
}

func (s *server) blueprint() *blueprint.Blueprint {
	return s.bp.Load()
}

// reload swaps in a changed blueprint. Forms already open keep the one
// they were opened with.
func (s *server) reload(bp *blueprint.Blueprint, err error) {
	if err != nil {
		return
	}
	for _, t := range bp.Types() {
		if _, err := s.host.Registry().Lookup(t); err != nil {
			s.logger.Error().Err(err).Str("type", t).Msg("blueprint rejected")
			return
		}
	}
	s.bp.Store(bp)
	s.logger.Info().Str("blueprint", bp.Handle).Int("fields", len(bp.Fields)).Msg("blueprint reloaded")
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.newForm)
	r.Route("/forms/{id}", func(r chi.Router) {
		r.Get("/", s.showForm)
		r.Post("/submit", s.submitForm)
		r.Get("/index", s.indexRow)
		r.Delete("/", s.closeForm)
	})
	r.Handle(s.host.Prefix()+"/*", s.host.Handler())
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func requestLogger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if r.URL.Path == "/metrics" {
				return
			}
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func (s *server) newForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.host.Open(r.Context(), s.blueprint(), nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("open form")
		http.Error(w, "Could not open form", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/forms/"+form.ID+"/", http.StatusSeeOther)
}

func (s *server) form(w http.ResponseWriter, r *http.Request) (*hxfield.Form, bool) {
	form, ok := s.host.Form(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Form not found", http.StatusNotFound)
	}
	return form, ok
}

func (s *server) showForm(w http.ResponseWriter, r *http.Request) {
	form, ok := s.form(w, r)
	if !ok {
		return
	}
	title := form.Blueprint.Title
	if title == "" {
		title = form.Blueprint.Handle
	}
	_ = hxfield.Render(w, r, page(title, form))
}

func (s *server) submitForm(w http.ResponseWriter, r *http.Request) {
	form, ok := s.form(w, r)
	if !ok {
		return
	}

	values, err := form.Submit(r.Context())
	var invalid hxfield.ValidationErrors
	switch {
	case errors.As(err, &invalid):
		flashes := make([]hxfield.Flash, len(invalid))
		for i, ve := range invalid {
			flashes[i] = hxfield.Flash{Level: hxfield.FlashError, Message: ve.Error()}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, hxfield.RenderFlashesOOB(flashes))
	case err != nil:
		s.logger.Error().Err(err).Str("form", form.ID).Msg("submit failed")
		http.Error(w, "Submit failed", http.StatusInternalServerError)
	default:
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)
		s.logger.Info().Str("form", form.ID).Strs("fields", names).Msg("form submitted")
		w.Header().Set("HX-Trigger", hxfield.BuildTriggerHeader("hxfield:submitted", map[string]any{"form": form.ID}))
		s.indexRow(w, r)
	}
}

// indexRow renders the form's current values the way a listing shows them.
func (s *server) indexRow(w http.ResponseWriter, r *http.Request) {
	form, ok := s.form(w, r)
	if !ok {
		return
	}

	values := form.Values()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, `<table class="hxfield-listing"><tr>`)
	for _, bf := range form.Blueprint.Fields {
		_, _ = io.WriteString(w, `<th>`+templ.EscapeString(bf.Label())+`</th>`)
	}
	_, _ = io.WriteString(w, `</tr><tr>`)
	for _, bf := range form.Blueprint.Fields {
		_, _ = io.WriteString(w, `<td>`)
		c, err := s.host.RenderIndex(r.Context(), bf, values[bf.Handle])
		if err != nil {
			c = hxfield.ErrorComponent(err)
		}
		if err := c.Render(r.Context(), w); err != nil {
			s.logger.Error().Err(err).Str("field", bf.Handle).Msg("render index")
		}
		_, _ = io.WriteString(w, `</td>`)
	}
	_, _ = io.WriteString(w, `</tr></table>`)
}

func (s *server) closeForm(w http.ResponseWriter, r *http.Request) {
	if !s.host.Close(chi.URLParam(r, "id")) {
		http.Error(w, "Form not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// logChanges writes every applied change to the debug log until ctx ends.
func (s *server) logChanges(ctx context.Context) {
	for c := range s.host.Store().Subscribe(ctx) {
		ev := s.logger.Debug().
			Uint64("seq", c.Seq).
			Str("kind", string(c.Kind)).
			Str("field", c.Key.String()).
			Uint64("version", c.Version)
		if c.Missed > 0 {
			ev = ev.Uint64("missed", c.Missed)
		}
		if c.Kind == store.ChangeMeta {
			ev = ev.Strs("meta_keys", c.Meta.Keys())
		}
		ev.Msg("field changed")
	}
}

func page(title string, form *hxfield.Form) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		head := `<!DOCTYPE html><html><head><meta charset="utf-8"><title>` + templ.EscapeString(title) +
			`</title><script src="https://unpkg.com/htmx.org@2.0.4"></script></head><body><h1>` +
			templ.EscapeString(title) + `</h1>`
		if _, err := io.WriteString(w, head); err != nil {
			return err
		}
		if err := hxfield.ToastContainer().Render(ctx, w); err != nil {
			return err
		}
		if err := form.Render().Render(ctx, w); err != nil {
			return err
		}

		var failed []string
		for name := range form.PreloadErrors() {
			failed = append(failed, name)
		}
		sort.Strings(failed)
		if len(failed) > 0 {
			if _, err := io.WriteString(w, `<p class="hxfield-warning">Some fields could not load their data: `+
				templ.EscapeString(strings.Join(failed, ", "))+`</p>`); err != nil {
				return err
			}
		}

		base := "/forms/" + templ.EscapeString(form.ID)
		tail := `<button hx-post="` + base + `/submit" hx-target="#listing" hx-swap="innerHTML">Save</button>` +
			`<div id="listing" hx-get="` + base + `/index" hx-trigger="load, hxfield:updated from:body, hxfield:undone from:body"></div>` +
			`</body></html>`
		_, err := io.WriteString(w, tail)
		return err
	})
}
