package fieldtypes

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm/hxfield"
	"github.com/pthm/hxfield/lib/blueprint"
)

var posts = MapSource{"1": "First post", "2": "Second post"}

type failingSource struct{}

func (failingSource) Items(ctx context.Context, ids []string) ([]Item, error) {
	return nil, errors.New("database unavailable")
}

func TestRelationshipPreload(t *testing.T) {
	_, _, f := openField(t, posts, blueprint.Field{Handle: "related", Type: "relationship"}, []string{"1", "9"})

	meta := f.Meta()
	require.Equal(t, []any{map[string]any{"id": "1", "title": "First post"}}, meta[MetaItems])
	require.Equal(t, []string{"9"}, meta[MetaMissing])
	require.NoError(t, f.PreloadErr())
}

func TestRelationshipPreloadFailure(t *testing.T) {
	_, form, f := openField(t, failingSource{}, blueprint.Field{Handle: "related", Type: "relationship"}, []string{"1"})

	require.ErrorIs(t, f.PreloadErr(), hxfield.ErrPreloadFailed)
	require.Empty(t, f.Meta())
	require.Contains(t, form.PreloadErrors(), "related")
}

func TestRelationshipChange(t *testing.T) {
	host, form, f := openField(t, posts, blueprint.Field{
		Handle: "related", Type: "relationship", Config: map[string]any{"max_items": 3},
	}, nil)
	require.Equal(t, []string{}, f.Value())

	res, err := hxfield.TestChange(host, f, map[string]string{"value": "2, 1, 7"})
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.HTML)
	require.True(t, res.HTMLContainsAll(
		`data-id="2">Second post</li>`,
		`data-id="1">First post</li>`,
		"Unknown item 7",
		`value="2,1,7"`,
	), res.HTML)

	got, err := form.Field("related")
	require.NoError(t, err)
	require.Equal(t, []string{"2", "1", "7"}, got.Value())
	require.Equal(t, []string{"7"}, got.Meta()[MetaMissing])

	res, err = hxfield.TestChange(host, f, map[string]string{"value": "1,2,3,4"})
	require.NoError(t, err)
	require.True(t, res.HasFlash(hxfield.FlashError, "allows at most 3 items"))
}

func TestRelationshipUndoRestoresItems(t *testing.T) {
	host, form, f := openField(t, posts, blueprint.Field{Handle: "related", Type: "relationship"}, []string{"1"})

	res, err := hxfield.TestChange(host, f, map[string]string{"value": "2"})
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.HTML)

	res, err = hxfield.TestRequest(host, http.MethodPost, "undo", f, nil)
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.HTML)
	require.True(t, res.HTMLContains(`data-id="1">First post</li>`), res.HTML)
	require.False(t, res.HTMLContains("Second post"), res.HTML)

	got, err := form.Field("related")
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, got.Value())
	require.Equal(t, []any{map[string]any{"id": "1", "title": "First post"}}, got.Meta()[MetaItems])

	// the change was a single revision
	res, err = hxfield.TestRequest(host, http.MethodPost, "undo", f, nil)
	require.NoError(t, err)
	require.True(t, res.HasStatus(http.StatusConflict))
}

func TestRelationshipRejectsPostedMeta(t *testing.T) {
	host, form, f := openField(t, posts, blueprint.Field{Handle: "related", Type: "relationship"}, []string{"1"})

	res, err := hxfield.TestRequest(host, http.MethodPost, "meta", f, map[string]string{MetaItems: "forged"})
	require.NoError(t, err)
	require.True(t, res.HasStatus(http.StatusBadRequest))

	got, err := form.Field("related")
	require.NoError(t, err)
	require.Equal(t, f.Meta(), got.Meta())
	require.Equal(t, f.Version(), got.Version())
}

func TestRelationshipIndex(t *testing.T) {
	rel := NewRelationship(posts)
	require.Equal(t, "", rel.PreProcessIndex(nil))
	require.Equal(t, "1", rel.PreProcessIndex([]string{"1"}))
	require.Equal(t, "1, 2", rel.PreProcessIndex([]any{"1", "2"}))
}
