package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/config"
	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/goliatone/go-settings/pkg/activity/natssink"
	"github.com/goliatone/go-settings/pkg/state"
	"github.com/goliatone/go-settings/pkg/state/sqlstore"
	"github.com/goliatone/go-settings/pkg/zaplog"
	"github.com/goliatone/go-settings/schema/loader"
	"go.uber.org/zap"
)

// app is everything a command needs, built once from configuration.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	registry   *settings.Registry
	rules      *settings.Rules
	controller *state.Controller
	items      state.ItemLister
	closers    []func() error
}

func openApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	registry, err := loader.Load(cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, registry: registry}

	evaluator, err := evaluatorFor(cfg.Rules.Engine)
	if err != nil {
		return nil, err
	}
	ops := zaplog.New(logger.Named("settings"))
	a.rules = settings.NewRules(settings.WithEvaluator(evaluator), settings.WithEvaluatorLogger(ops))

	store, items, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.items = items

	emitter, err := a.openEmitter()
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []state.Option{
		state.WithItemStore(items),
		state.WithRules(a.rules),
		state.WithEmitter(emitter),
		state.WithLogger(ops),
	}
	opts = append(opts, scopeOptions(cfg.Scope)...)
	if record, ok := recordFor(cfg.Record, registry); ok {
		opts = append(opts, state.WithRecord(record))
	}
	a.controller, err = state.NewController(registry, store, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

type itemStore interface {
	state.ItemStore[settings.Values]
	state.ItemLister
}

func (a *app) openStore(ctx context.Context) (state.Store[settings.Values], itemStore, error) {
	if !a.cfg.Store.Persistent() {
		return state.NewMemoryStore[settings.Values](), state.NewMemoryItemStore[settings.Values](), nil
	}
	dialect, err := sqlstore.ParseDialect(a.cfg.Store.Driver)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlstore.Open(ctx, dialect, a.cfg.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, store.Close)
	a.logger.Debug("store opened", zap.String("driver", string(dialect)))
	return store, store, nil
}

func (a *app) openEmitter() (*activity.Emitter, error) {
	var hooks activity.Hooks
	if url := strings.TrimSpace(a.cfg.NATS.URL); url != "" {
		hook, nc, err := natssink.Connect(url, a.cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			return nc.Drain()
		})
		hooks = append(hooks, hook)
	}
	logger := a.logger
	return activity.NewEmitter(hooks, activity.Config{
		Enabled: a.cfg.Activity.Enabled,
		Channel: a.cfg.Activity.Channel,
		OnError: func(event activity.Event, err error) {
			logger.Warn("activity hook failed", zap.String("verb", event.Verb), zap.String("object", event.ObjectID), zap.Error(err))
		},
	}), nil
}

// Close releases the store and the NATS connection.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func evaluatorFor(engine string) (settings.Evaluator, error) {
	functions := settings.DefaultFunctions()
	switch engine {
	case "", "expr":
		return settings.NewExprEvaluator(
			settings.ExprWithProgramCache(settings.NewProgramCache()),
			settings.ExprWithFunctionRegistry(functions),
		), nil
	case "cel":
		return settings.NewCELEvaluator(
			settings.CELWithProgramCache(settings.NewProgramCache()),
			settings.CELWithFunctionRegistry(functions),
		), nil
	case "js":
		if !settings.JSAvailable() {
			return nil, fmt.Errorf("rules engine js requires a build with the js_eval tag")
		}
		return settings.NewJSEvaluator(
			settings.JSWithProgramCache(settings.NewProgramCache()),
			settings.JSWithFunctionRegistry(functions),
		), nil
	default:
		return nil, fmt.Errorf("unknown rules engine %q", engine)
	}
}

// scopeOptions writes network settings to the site scope. A tenant writes
// its own scope and reads the site record beneath it.
func scopeOptions(scope config.Scope) []state.Option {
	tenant := strings.TrimSpace(scope.TenantID)
	if scope.Network || tenant == "" {
		return []state.Option{state.WithScope(settings.SiteScope())}
	}
	return []state.Option{
		state.WithScope(settings.TenantScope(tenant)),
		state.WithFallbackScope(settings.SiteScope()),
	}
}

func recordFor(cfg config.Record, registry *settings.Registry) (state.Record, bool) {
	if cfg.OptionName == "" && cfg.Parent == "" {
		return state.Record{}, false
	}
	record := state.Record{Name: cfg.OptionName, Parent: cfg.Parent}
	if record.Name == "" {
		record.Name = registry.OptionName()
	}
	if cfg.Standalone {
		record.Parent = ""
	}
	return record, true
}
