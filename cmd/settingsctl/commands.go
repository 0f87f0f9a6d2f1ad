package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/state"
	"github.com/goliatone/go-settings/pkg/zaplog"
	"github.com/goliatone/go-settings/schema/openapi"
	"github.com/spf13/cobra"
)

func newRenderCommand(c *cli) *cobra.Command {
	var item string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the HTML form for a location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := c.load(cmd.Context(), item)
			if err != nil {
				return err
			}
			registry := c.app.controller.Registry()
			renderer := settings.NewRenderer(
				settings.WithRenderRules(c.app.rules),
				settings.WithRenderPrefix(registry.ModulePrefix()),
				settings.WithRendererLogger(zaplog.New(c.app.logger.Named("render"))),
			)
			return renderer.Render(cmd.OutOrStdout(), registry.Fields(c.location), values)
		},
	}
	cmd.Flags().StringVar(&item, "item", "", "item id for metabox locations")
	return cmd
}

func newGetCommand(c *cli) *cobra.Command {
	var (
		item  string
		trace bool
	)
	cmd := &cobra.Command{
		Use:   "get [key...]",
		Short: "Print effective values",
		Long: `Prints the effective values of a location. Keys may be given as field
keys or storage keys; without keys every saved field is printed.

--trace shows which scope supplied each value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := c.app.controller.Registry()
			keys, err := storageKeys(registry, c.location, args)
			if err != nil {
				return err
			}
			if trace {
				if item != "" {
					return fmt.Errorf("--trace is not available for item values")
				}
				return c.printTrace(cmd, keys)
			}
			values, err := c.load(cmd.Context(), item)
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				values = pick(values, keys)
			}
			return c.printValues(cmd.OutOrStdout(), values)
		},
	}
	cmd.Flags().StringVar(&item, "item", "", "item id for metabox locations")
	cmd.Flags().BoolVar(&trace, "trace", false, "show value provenance")
	return cmd
}

func newSetCommand(c *cli) *cobra.Command {
	var (
		item    string
		ifMatch string
		actor   string
	)
	cmd := &cobra.Command{
		Use:   "set key=value...",
		Short: "Validate, sanitize and save values",
		Long: `Saves values for a location. Fields not named keep their current value.
Values for multiselect and multicheckbox fields are comma separated.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			registry := c.app.controller.Registry()
			submitted, err := parseAssignments(registry, c.location, args)
			if err != nil {
				return err
			}
			opts := []state.SaveOption{state.IfMatch(ifMatch), state.AsActor(actor)}

			// Both writes replace the location's values, so overlay the
			// assignments on what is stored.
			var current settings.Values
			if item != "" {
				current, err = c.app.controller.LoadItem(ctx, item, c.location)
			} else {
				current, err = c.app.controller.Load(ctx, c.location)
			}
			if err != nil {
				return err
			}
			if current == nil {
				current = settings.Values{}
			}
			for key, value := range submitted {
				current[key] = value
			}

			var saved settings.Values
			if item != "" {
				saved, err = c.app.controller.SaveItem(ctx, item, c.location, current, opts...)
			} else {
				saved, err = c.app.controller.Save(ctx, c.location, current, opts...)
			}
			if err != nil {
				return describe(err)
			}
			return c.printValues(cmd.OutOrStdout(), saved)
		},
	}
	cmd.Flags().StringVar(&item, "item", "", "item id for metabox locations")
	cmd.Flags().StringVar(&ifMatch, "if-match", "", "only save when the stored ETag matches")
	cmd.Flags().StringVar(&actor, "actor", "", "actor recorded in activity events")
	return cmd
}

func newResetCommand(c *cli) *cobra.Command {
	var (
		item string
		all  bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore defaults",
		Long: `Restores a location's defaults. --all deletes the module record so every
location falls back to its defaults. With --item the item's values are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				values settings.Values
				err    error
			)
			if item != "" {
				values, err = c.app.controller.ResetItem(cmd.Context(), item, c.location)
			} else {
				values, err = c.app.controller.Reset(cmd.Context(), c.location, all)
			}
			if err != nil {
				return describe(err)
			}
			return c.printValues(cmd.OutOrStdout(), values)
		},
	}
	cmd.Flags().StringVar(&item, "item", "", "item id for metabox locations")
	cmd.Flags().BoolVar(&all, "all", false, "delete the whole module record")
	return cmd
}

func newExportCommand(c *cli) *cobra.Command {
	var (
		general bool
		items   bool
		ids     []string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored values in the settings export format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.controller.Export(cmd.Context(), cmd.OutOrStdout(), state.ExportOptions{
				General: general,
				Items:   items || len(ids) > 0,
				ItemIDs: ids,
			})
		},
	}
	cmd.Flags().BoolVar(&general, "general", true, "write the module section")
	cmd.Flags().BoolVar(&items, "items", false, "write item sections")
	cmd.Flags().StringSliceVar(&ids, "item", nil, "limit item sections to these ids")
	return cmd
}

func newSchemaCommand(c *cli) *cobra.Command {
	var operationID string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the OpenAPI document for a location's form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []openapi.GeneratorOption
			if operationID != "" {
				opts = append(opts, openapi.WithOperation("", "", operationID))
			}
			raw, err := openapi.NewGenerator(opts...).JSON(c.app.controller.Registry(), c.location)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}
	cmd.Flags().StringVar(&operationID, "operation-id", "", "override the generated operationId")
	return cmd
}

// load returns a location's effective values, or an item's when item is set.
func (c *cli) load(ctx context.Context, item string) (settings.Values, error) {
	if item != "" {
		return c.app.controller.LoadItem(ctx, item, c.location)
	}
	if c.app.controller.Registry().Kind(c.location) == settings.LocationMetabox {
		return nil, fmt.Errorf("location %q is a metabox: pass --item", c.location)
	}
	return c.app.controller.Load(ctx, c.location)
}

func (c *cli) printTrace(cmd *cobra.Command, keys []string) error {
	resolved, err := c.app.controller.Resolve(cmd.Context(), c.location)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		keys = sortedKeys(resolved.Values())
	}
	traces := make([]settings.Trace, 0, len(keys))
	for _, key := range keys {
		traces = append(traces, resolved.Trace(key))
	}
	out := cmd.OutOrStdout()
	if c.jsonOut {
		return writeJSON(out, traces)
	}
	for _, trace := range traces {
		winner, ok := trace.Winner()
		if !ok {
			fmt.Fprintf(out, "%s: not set\n", trace.Path)
			continue
		}
		fmt.Fprintf(out, "%s = %s (%s", trace.Path, formatValue(winner.Value), winner.Scope.Name)
		if winner.SnapshotID != "" {
			fmt.Fprintf(out, " %s", winner.SnapshotID)
		}
		fmt.Fprintln(out, ")")
		for _, layer := range trace.Layers {
			if !layer.Found || layer.Scope.Name == winner.Scope.Name {
				continue
			}
			fmt.Fprintf(out, "  shadowed %s = %s\n", layer.Scope.Name, formatValue(layer.Value))
		}
	}
	return nil
}

func (c *cli) printValues(out io.Writer, values settings.Values) error {
	if c.jsonOut {
		return writeJSON(out, values)
	}
	for _, key := range sortedKeys(values) {
		if _, err := fmt.Fprintf(out, "%s = %s\n", key, formatValue(values[key])); err != nil {
			return err
		}
	}
	return nil
}

// storageKeys maps field keys or storage keys to the storage keys of
// location's saved fields.
func storageKeys(registry *settings.Registry, location string, names []string) ([]string, error) {
	keys := make([]string, 0, len(names))
	for _, name := range names {
		field, ok := lookupField(registry, location, name)
		if !ok {
			return nil, fmt.Errorf("unknown field %q for location %q", name, location)
		}
		keys = append(keys, field.StorageKey)
	}
	return keys, nil
}

func lookupField(registry *settings.Registry, location, name string) (settings.Field, bool) {
	for _, field := range registry.Fields(location) {
		if !field.Saves {
			continue
		}
		if field.StorageKey == name || field.Key == name {
			return field, true
		}
	}
	return settings.Field{}, false
}

// parseAssignments reads key=value arguments into a submission keyed by
// storage key.
func parseAssignments(registry *settings.Registry, location string, args []string) (settings.Values, error) {
	values := settings.Values{}
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		field, found := lookupField(registry, location, strings.TrimSpace(name))
		if !found {
			return nil, fmt.Errorf("unknown field %q for location %q", name, location)
		}
		switch field.Type {
		case settings.FieldMultiSelect, settings.FieldMultiCheckbox:
			list := []any{}
			for _, part := range strings.Split(raw, ",") {
				if part = strings.TrimSpace(part); part != "" {
					list = append(list, part)
				}
			}
			values[field.StorageKey] = list
		default:
			values[field.StorageKey] = raw
		}
	}
	return values, nil
}

// describe lists each rejected field of a validation failure on its own line.
func describe(err error) error {
	var verr *settings.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	lines := make([]string, 0, len(verr.Fields)+1)
	lines = append(lines, "validation failed, nothing was saved:")
	for _, field := range verr.Fields {
		lines = append(lines, "  "+field.Error())
	}
	return errors.New(strings.Join(lines, "\n"))
}

func pick(values settings.Values, keys []string) settings.Values {
	out := make(settings.Values, len(keys))
	for _, key := range keys {
		if value, ok := values[key]; ok {
			out[key] = value
		}
	}
	return out
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return `""`
	case string:
		return fmt.Sprintf("%q", v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedKeys(values settings.Values) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
