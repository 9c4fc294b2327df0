package fieldtypes

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxfield"
)

// Meta keys written by the relationship fieldtype.
const (
	MetaItems   = "items"
	MetaMissing = "missing"
)

// Item is a related entry as shown next to the field.
type Item struct {
	ID    string
	Title string
}

// ItemSource resolves item ids to items. Ids it does not know are left out
// of the result.
type ItemSource interface {
	Items(ctx context.Context, ids []string) ([]Item, error)
}

// MapSource is an ItemSource backed by a map of id to title.
type MapSource map[string]string

// Items implements ItemSource.
func (m MapSource) Items(ctx context.Context, ids []string) ([]Item, error) {
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		if title, ok := m[id]; ok {
			out = append(out, Item{ID: id, Title: title})
		}
	}
	return out, nil
}

// Relationship stores a list of related item ids. Preload resolves them
// into item summaries kept in meta, so rendering needs no lookups.
//
// Config: max_items.
type Relationship struct {
	*hxfield.Fieldtype
	src ItemSource
}

// NewRelationship creates the relationship fieldtype.
func NewRelationship(src ItemSource) *Relationship {
	return &Relationship{Fieldtype: hxfield.New("relationship"), src: src}
}

// Preload resolves the field's ids into meta "items" and "missing".
func (r *Relationship) Preload(ctx context.Context, pc hxfield.PreloadContext) (hxfield.Meta, error) {
	return r.resolve(ctx, ids(pc.Value))
}

func (r *Relationship) resolve(ctx context.Context, want []string) (hxfield.Meta, error) {
	meta := hxfield.Meta{MetaItems: []any{}, MetaMissing: []string{}}
	if r.src == nil || len(want) == 0 {
		return meta, nil
	}

	items, err := r.src.Items(ctx, want)
	if err != nil {
		return nil, fmt.Errorf("relationship: resolve items: %w", err)
	}

	found := make(map[string]bool, len(items))
	list := make([]any, 0, len(items))
	for _, it := range items {
		found[it.ID] = true
		list = append(list, map[string]any{"id": it.ID, "title": it.Title})
	}
	var missing []string
	for _, id := range want {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	meta[MetaItems] = list
	if missing != nil {
		meta[MetaMissing] = missing
	}
	return meta, nil
}

// Process normalizes the value to a de-duplicated id list and enforces
// max_items.
func (r *Relationship) Process(ctx context.Context, cfg hxfield.Config, raw any) (any, error) {
	list := ids(raw)
	if max := cfg.Int("max_items", 0); max > 0 && len(list) > max {
		return nil, hxfield.Invalid("allows at most %d items", max)
	}
	return list, nil
}

// DefaultValue is an empty list.
func (r *Relationship) DefaultValue(cfg hxfield.Config) any {
	return []string{}
}

// PreProcessIndex lists the ids.
func (r *Relationship) PreProcessIndex(value any) any {
	list := ids(value)
	switch len(list) {
	case 0:
		return ""
	case 1:
		return list[0]
	}
	return hxfield.Truncate(strings.Join(list, ", "), hxfield.IndexTruncateLength)
}

// Change stores the submitted ids and refreshes the item summaries.
func (r *Relationship) Change(ctx context.Context, f hxfield.Field, form url.Values) error {
	v, err := r.Process(ctx, f.Config(), form["value"])
	if err != nil {
		return err
	}
	meta, err := r.resolve(ctx, v.([]string))
	if err != nil {
		return err
	}
	return f.UpdateWithMeta(ctx, v, meta)
}

// MetaKeys accepts no posted meta. Items and missing ids come from the
// source only.
func (r *Relationship) MetaKeys() []string {
	return nil
}

// Render lists the related items and an input for their ids.
func (r *Relationship) Render(ctx context.Context, f hxfield.Field) templ.Component {
	meta := f.Meta()

	attrs := f.UpdateAttrs()
	attrs["hx-trigger"] = "change"

	h := &html{}
	h.raw(`<div class="hxfield-relationship"><ul>`)
	items, _ := meta[MetaItems].([]any)
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		h.raw(`<li data-id="`).text(asString(m["id"])).raw(`">`).text(asString(m["title"])).raw(`</li>`)
	}
	missing, _ := meta[MetaMissing].([]string)
	for _, id := range missing {
		h.raw(`<li class="missing" data-id="`).text(id).raw(`">Unknown item `).text(id).raw(`</li>`)
	}
	h.raw(`</ul><input type="text" id="`).text(f.ID()).raw(`-input" name="value" value="`).
		text(strings.Join(ids(f.Value()), ",")).raw(`"`).attrs(attrs).raw(`></div>`)
	return h.component()
}

// ids reads an id list from stored or submitted values: a list, or a
// comma-separated string. Blanks and duplicates are dropped, order kept.
func ids(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
	case []string:
		for _, s := range t {
			raw = append(raw, strings.Split(s, ",")...)
		}
	case []any:
		for _, e := range t {
			raw = append(raw, asString(e))
		}
	default:
		raw = strings.Split(asString(t), ",")
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
