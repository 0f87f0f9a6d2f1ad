package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	settings "github.com/goliatone/go-settings"
)

// ItemLister is implemented by item stores that can enumerate the items
// holding a record under one meta key.
type ItemLister interface {
	Items(ctx context.Context, key string) ([]string, error)
}

// ExportOptions selects what Export writes.
type ExportOptions struct {
	// General writes the module section.
	General bool
	// Items writes one post_data section per item holding metabox values.
	Items bool
	// ItemIDs limits the item sections. When empty, every item known to an
	// ItemLister is exported.
	ItemIDs []string
}

// Export writes the module's stored values in the INI-like settings export
// format: per-item sections first, then the module section.
func (c *Controller) Export(ctx context.Context, w io.Writer, opts ExportOptions) error {
	start := time.Now()
	keys, err := c.export(ctx, w, opts)
	c.log(settings.OpExport, "", "", keys, start, err)
	return err
}

func (c *Controller) export(ctx context.Context, w io.Writer, opts ExportOptions) (int, error) {
	registry := c.Registry()
	var buf bytes.Buffer
	written := 0

	if opts.Items && c.items != nil {
		n, err := c.exportItems(ctx, &buf, registry, opts.ItemIDs)
		if err != nil {
			return 0, err
		}
		written += n
	}

	if opts.General {
		record := c.recordFor(registry)
		blob, _, ok, err := c.store.Load(ctx, c.ref(record))
		if err != nil {
			return 0, fmt.Errorf("state: load %q: %w", record.Key(), err)
		}
		values := settings.Values{}
		if ok {
			values = record.Extract(blob)
		}
		fmt.Fprintf(&buf, "\n[ %s]\n\n", record.Name)
		for _, key := range sortedKeys(values) {
			fmt.Fprintf(&buf, "%s = %s\n", key, exportValue(values[key]))
			written++
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("state: export: %w", err)
	}
	return written, nil
}

func (c *Controller) exportItems(ctx context.Context, buf *bytes.Buffer, registry *settings.Registry, itemIDs []string) (int, error) {
	var metaKeys []string
	for _, location := range registry.Locations() {
		if location.Kind == settings.LocationMetabox {
			metaKeys = append(metaKeys, registry.MetaKey(location.Name))
		}
	}
	if len(metaKeys) == 0 {
		return 0, nil
	}

	ids := append([]string(nil), itemIDs...)
	if len(ids) == 0 {
		lister, ok := c.items.(ItemLister)
		if !ok {
			return 0, nil
		}
		seen := map[string]bool{}
		for _, key := range metaKeys {
			found, err := lister.Items(ctx, key)
			if err != nil {
				return 0, fmt.Errorf("state: list items for %q: %w", key, err)
			}
			for _, id := range found {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		sort.Strings(ids)
	}

	written := 0
	for _, id := range ids {
		lines := make([]string, 0, len(metaKeys))
		for _, key := range metaKeys {
			values, _, ok, err := c.items.LoadItem(ctx, ItemRef{ItemID: id, Key: key})
			if err != nil {
				return 0, fmt.Errorf("state: load item %q meta %q: %w", id, key, err)
			}
			if !ok {
				continue
			}
			payload, err := json.Marshal(values)
			if err != nil {
				return 0, fmt.Errorf("state: encode item %q meta %q: %w", id, key, err)
			}
			lines = append(lines, fmt.Sprintf("%s = %s\n", strings.TrimPrefix(key, "_"), quote(string(payload))))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(buf, "\n[post_data]\n\npost_id = %s\n", quote(id))
		for _, line := range lines {
			buf.WriteString(line)
		}
		written += len(lines)
	}
	return written, nil
}

// exportValue renders a scalar literally and anything else as quoted JSON.
func exportValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			return quote(fmt.Sprint(v))
		}
		return quote(string(payload))
	}
}

var quoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

func quote(value string) string {
	return "'" + quoter.Replace(value) + "'"
}
