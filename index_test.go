package hxfield

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"

	"github.com/pthm/hxfield/lib/blueprint"
)

func TestDefaultPreProcessIndex(t *testing.T) {
	long := strings.Repeat("ab", 80)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, ""},
		{"string", "hello", "hello"},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"float", 1.5, "1.5"},
		{"list", []any{"a", 1}, `["a",1]`},
		{"map sorted", map[string]any{"b": 1, "a": 2}, `{"a":2,"b":1}`},
		{"long string", long, long[:IndexTruncateLength-1] + "…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultPreProcessIndex(tt.in); got != tt.want {
				t.Errorf("DefaultPreProcessIndex(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"héllo wörld", 6, "héllo…"},
		{"hello", 1, "…"},
		{"hello", 0, "hello"},
		{"ab\xffc", 4, "ab\xffc"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.s, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}

func TestPreProcessIndexPure(t *testing.T) {
	value := rapid.OneOf(
		rapid.Map(rapid.String(), func(s string) any { return s }),
		rapid.Map(rapid.Int(), func(n int) any { return n }),
		rapid.Map(rapid.Bool(), func(b bool) any { return b }),
		rapid.Map(rapid.SliceOf(rapid.String()), func(s []string) any { return s }),
		rapid.Map(rapid.MapOf(rapid.String(), rapid.Int()), func(m map[string]int) any { return m }),
	)

	rapid.Check(t, func(t *rapid.T) {
		v := value.Draw(t, "value")
		before := fmt.Sprintf("%#v", v)

		first := DefaultPreProcessIndex(v)
		second := DefaultPreProcessIndex(v)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("DefaultPreProcessIndex not deterministic: %v then %v", first, second)
		}
		s, ok := first.(string)
		if !ok {
			t.Fatalf("result %T, want string", first)
		}
		if utf8.RuneCountInString(s) > IndexTruncateLength {
			t.Fatalf("result has %d runes", utf8.RuneCountInString(s))
		}
		if after := fmt.Sprintf("%#v", v); after != before {
			t.Fatalf("input changed from %s to %s", before, after)
		}
	})
}

// mutatingIndex is a badly behaved preprocessor; the host must shield the
// caller's value from it.
type mutatingIndex struct {
	*Fieldtype
}

func (mutatingIndex) PreProcessIndex(value any) any {
	if list, ok := value.([]any); ok && len(list) > 0 {
		list[0] = "mutated"
	}
	return value
}

func TestPreProcessIndexSeesCopy(t *testing.T) {
	h, reg := newTestHost(t)
	register(t, reg, &mutatingIndex{Fieldtype: New("list")}, nil)

	value := []any{"original"}
	if _, err := h.RenderIndex(context.Background(), blueprint.Field{Handle: "a", Type: "list"}, value); err != nil {
		t.Fatal(err)
	}
	if value[0] != "original" {
		t.Errorf("caller's value changed to %v", value[0])
	}
}

func TestIndexFieldReadOnly(t *testing.T) {
	typ := reflect.TypeOf(IndexField{})
	for _, name := range []string{"Update", "UpdateMeta", "Meta", "UpdateAttrs", "MetaAttrs"} {
		if _, ok := typ.MethodByName(name); ok {
			t.Errorf("IndexField has method %s", name)
		}
	}
	if _, ok := reflect.PointerTo(typ).MethodByName("Update"); ok {
		t.Error("*IndexField has method Update")
	}

	// Field, by contrast, carries the update channel
	if _, ok := reflect.TypeOf(Field{}).MethodByName("Update"); !ok {
		t.Error("Field should have Update")
	}
}
