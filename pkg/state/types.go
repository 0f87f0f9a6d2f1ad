package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	settings "github.com/goliatone/go-settings"
)

var (
	// ErrETagMismatch is returned when an IfMatch precondition fails.
	ErrETagMismatch = errors.New("state: etag mismatch")
	// ErrNoItemStore is returned by item operations on a controller built
	// without WithItemStore.
	ErrNoItemStore = errors.New("state: item store not configured")
	// ErrMetaboxLocation is returned when a metabox location is used
	// through the settings page operations.
	ErrMetaboxLocation = errors.New("state: location is a metabox")
	// ErrSettingsLocation is returned when a settings page location is used
	// through the item operations.
	ErrSettingsLocation = errors.New("state: location is not a metabox")
)

// Ref identifies one option record in one scope.
type Ref struct {
	Key   string
	Scope settings.Scope
}

// SiteRef references key in the site wide scope.
func SiteRef(key string) Ref {
	return Ref{Key: key, Scope: settings.SiteScope()}
}

// TenantRef references key in the scope of one tenant.
func TenantRef(tenantID, key string) Ref {
	return Ref{Key: key, Scope: settings.TenantScope(tenantID)}
}

// Identifier returns the canonical storage key for the record.
func (r Ref) Identifier() (string, error) {
	key := strings.TrimSpace(r.Key)
	if key == "" {
		return "", fmt.Errorf("state: option key is required")
	}
	switch r.Scope.Name {
	case settings.ScopeNameSite:
		return "site/" + key, nil
	case settings.ScopeNameTenant:
		id := r.Scope.TenantID()
		if id == "" {
			return "", fmt.Errorf("state: missing metadata key %q for scope %q", "tenant_id", r.Scope.Name)
		}
		return fmt.Sprintf("tenant/%s/%s", id, key), nil
	default:
		return "", fmt.Errorf("state: unsupported scope name %q", r.Scope.Name)
	}
}

// ItemRef identifies the meta record one metabox location keeps on one
// content item.
type ItemRef struct {
	ItemID string
	Key    string
}

// Identifier returns the canonical storage key for the item record.
func (r ItemRef) Identifier() (string, error) {
	id := strings.TrimSpace(r.ItemID)
	key := strings.TrimSpace(r.Key)
	if id == "" {
		return "", fmt.Errorf("state: item id is required")
	}
	if key == "" {
		return "", fmt.Errorf("state: meta key is required")
	}
	return fmt.Sprintf("item/%s/%s", id, key), nil
}

// Meta is storage-owned metadata used for provenance and preconditions.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads, saves and deletes one record per Ref. Delete reports whether
// a record existed.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
	Delete(ctx context.Context, ref Ref) (bool, error)
}

// ItemStore is the per-item counterpart of Store.
type ItemStore[T any] interface {
	LoadItem(ctx context.Context, ref ItemRef) (snapshot T, meta Meta, ok bool, err error)
	SaveItem(ctx context.Context, ref ItemRef, snapshot T, meta Meta) (Meta, error)
	DeleteItem(ctx context.Context, ref ItemRef) (bool, error)
}

// Mutator derives the next snapshot from the stored one. found is false
// when no record exists yet and current is the zero value.
type Mutator[T any] func(current T, found bool) (T, error)

// Mutate loads the record for ref, checks ifMatch against its ETag, applies
// fn and saves the result with next merged over the loaded meta. An empty
// ifMatch skips the check; any other value fails against a missing record.
func Mutate[T any](ctx context.Context, store Store[T], ref Ref, ifMatch string, next Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}
	current, loaded, found, err := store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q for scope %q: %w", ref.Key, ref.Scope.Name, err)
	}
	if !found {
		current = zero
		loaded = Meta{}
	}
	if err := checkETag(ifMatch, loaded, found); err != nil {
		return zero, loaded, err
	}
	updated, err := fn(current, found)
	if err != nil {
		return zero, loaded, err
	}
	saved, err := store.Save(ctx, ref, updated, mergeMeta(loaded, next))
	if err != nil {
		return zero, loaded, fmt.Errorf("state: save %q for scope %q: %w", ref.Key, ref.Scope.Name, err)
	}
	return updated, saved, nil
}

// checkETag applies If-Match rules: "*" matches any stored record, other
// values must equal its ETag.
func checkETag(ifMatch string, meta Meta, found bool) error {
	switch {
	case ifMatch == "":
		return nil
	case !found:
		return fmt.Errorf("%w: expected %q, record does not exist", ErrETagMismatch, ifMatch)
	case ifMatch == "*" || ifMatch == meta.ETag:
		return nil
	default:
		return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, ifMatch, meta.ETag)
	}
}

func mergeMeta(base, override Meta) Meta {
	out := cloneMeta(base)
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = cloneMeta(override).Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
