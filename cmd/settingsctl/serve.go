package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/admin"
	"github.com/goliatone/go-settings/pkg/csrf"
	"github.com/goliatone/go-settings/pkg/listing"
	"github.com/goliatone/go-settings/pkg/zaplog"
	"github.com/goliatone/go-settings/schema/loader"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(c *cli) *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin pages over HTTP",
		Long: `Serves settings pages, item metaboxes, form schemas and list tables.

Routes:
  GET|POST /settings/{location}
  GET|POST /items/{id}/{location}
  GET      /schema/{location}
  GET      /lists/{name}
  GET|PUT  /log/level

With --watch the schema file is reloaded when it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.HTTP.Addr
			}
			handler, server, err := newAdminHandler(c)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c, addr, handler, server, watch)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: http.addr from config)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the schema when the file changes")
	return cmd
}

// newAdminHandler wires the admin server, the list tables and the log level
// endpoint.
func newAdminHandler(c *cli) (http.Handler, *admin.Server, error) {
	secret := []byte(c.cfg.CSRF.Secret)
	if len(secret) == 0 {
		return nil, nil, fmt.Errorf("csrf.secret is required to serve")
	}
	tokens, err := csrf.NewIssuer(secret, csrf.WithLifetime(c.cfg.CSRF.TTL))
	if err != nil {
		return nil, nil, err
	}
	logger := c.app.logger.Named("admin")
	renderer := settings.NewRenderer(
		settings.WithRenderRules(c.app.rules),
		settings.WithRendererLogger(zaplog.New(logger)),
	)
	server, err := admin.New(c.app.controller, tokens,
		admin.WithRenderer(renderer),
		admin.WithLogger(logger),
		admin.WithTable(locationsTable(c.app)),
		admin.WithTable(itemsTable(c.app)),
	)
	if err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/", server.Handler())
	mux.Handle("/log/level", c.level)
	return mux, server, nil
}

func serve(ctx context.Context, c *cli, addr string, handler http.Handler, server *admin.Server, watch bool) error {
	logger := c.app.logger
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("admin server started", zap.String("addr", addr), zap.String("schema", c.cfg.SchemaPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown", zap.Error(err))
		}
		logger.Info("admin server stopped")
		return nil
	})
	if watch {
		g.Go(func() error {
			return loader.Watch(gctx, c.cfg.SchemaPath,
				func(registry *settings.Registry) {
					server.SetRegistry(registry)
					logger.Info("schema reloaded", zap.Int("locations", len(registry.Locations())))
				},
				func(err error) {
					logger.Warn("schema reload failed, keeping previous schema", zap.Error(err))
				},
			)
		})
	}
	return g.Wait()
}

// locationsTable lists the locations of the schema currently loaded.
func locationsTable(a *app) *listing.Table {
	return &listing.Table{
		Name:  "locations",
		Title: "Locations",
		Columns: []listing.Column{
			{Key: "name", Title: "Name", Primary: true},
			{Key: "title", Title: "Title"},
			{Key: "kind", Title: "Type"},
			{Key: "fields", Title: "Fields"},
		},
		Source: listing.SourceFunc(func(ctx context.Context, q listing.Query) (listing.Page, error) {
			registry := a.controller.Registry()
			var rows []listing.Row
			for _, loc := range registry.Locations() {
				rows = append(rows, listing.Row{
					ID: loc.Name,
					Cells: map[string]string{
						"name":   loc.Name,
						"title":  loc.Title,
						"kind":   string(registry.Kind(loc.Name)),
						"fields": strconv.Itoa(len(registry.Fields(loc.Name))),
					},
				})
			}
			return listing.NewMemorySource(rows, "name", "title").List(ctx, q)
		}),
	}
}

// itemsTable lists every item holding metabox values.
func itemsTable(a *app) *listing.Table {
	return &listing.Table{
		Name:  "items",
		Title: "Items",
		Columns: []listing.Column{
			{Key: "item", Title: "Item", Primary: true},
			{Key: "location", Title: "Location"},
		},
		Source: listing.SourceFunc(func(ctx context.Context, q listing.Query) (listing.Page, error) {
			registry := a.controller.Registry()
			var rows []listing.Row
			for _, loc := range registry.Locations() {
				if registry.Kind(loc.Name) != settings.LocationMetabox {
					continue
				}
				ids, err := a.items.Items(ctx, registry.MetaKey(loc.Name))
				if err != nil {
					return listing.Page{}, err
				}
				for _, id := range ids {
					rows = append(rows, listing.Row{
						ID:    id + "/" + loc.Name,
						Cells: map[string]string{"item": id, "location": loc.Name},
					})
				}
			}
			return listing.NewMemorySource(rows, "item", "location").List(ctx, q)
		}),
	}
}
