package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func metaGen() *rapid.Generator[Meta] {
	return rapid.Custom(func(t *rapid.T) Meta {
		keys := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,4}`), 0, 6).Draw(t, "keys")
		m := make(Meta, len(keys))
		for i, k := range keys {
			switch rapid.IntRange(0, 2).Draw(t, "kind") {
			case 0:
				m[k] = rapid.String().Draw(t, "s")
			case 1:
				m[k] = rapid.Bool().Draw(t, "b")
			default:
				m[k] = i
			}
		}
		return m
	})
}

func TestMerge_ShallowOverwrite(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m := metaGen().Draw(rt, "meta")
		p := metaGen().Draw(rt, "partial")
		before := m.Clone()

		out := m.Merge(p)

		for k, v := range p {
			if out[k] != v {
				rt.Fatalf("key %q = %v, want partial value %v", k, out[k], v)
			}
		}
		for k, v := range m {
			if _, overwritten := p[k]; overwritten {
				continue
			}
			if out[k] != v {
				rt.Fatalf("key %q = %v, want original value %v", k, out[k], v)
			}
		}
		for k := range out {
			_, inM := m[k]
			_, inP := p[k]
			if !inM && !inP {
				rt.Fatalf("unexpected key %q", k)
			}
		}
		if len(before) != len(m) {
			rt.Fatalf("Merge modified its receiver")
		}
	})
}

func TestMerge_NilReceiver(t *testing.T) {
	var m Meta
	out := m.Merge(Meta{"foo": "bar"})
	require.Equal(t, Meta{"foo": "bar"}, out)
	require.Nil(t, m)
}

func TestCloneValue(t *testing.T) {
	orig := map[string]any{
		"list":  []any{"a", map[string]any{"deep": 1}},
		"strs":  []string{"x"},
		"pairs": map[string]string{"k": "v"},
		"meta":  Meta{"m": []int{1}},
	}
	cp := CloneValue(orig).(map[string]any)

	cp["list"].([]any)[1].(map[string]any)["deep"] = 2
	cp["strs"].([]string)[0] = "y"
	cp["pairs"].(map[string]string)["k"] = "w"
	cp["meta"].(Meta)["m"].([]int)[0] = 9

	require.Equal(t, 1, orig["list"].([]any)[1].(map[string]any)["deep"])
	require.Equal(t, "x", orig["strs"].([]string)[0])
	require.Equal(t, "v", orig["pairs"].(map[string]string)["k"])
	require.Equal(t, 1, orig["meta"].(Meta)["m"].([]int)[0])
}

func TestMetaAccessors(t *testing.T) {
	m := Meta{"b": true, "s": "str", "n": 3, "posted": "true"}
	require.True(t, m.Bool("b"))
	require.False(t, m.Bool("s"))
	require.True(t, m.Bool("posted"))
	require.Equal(t, "str", m.String("s"))
	require.Equal(t, "", m.String("n"))
	require.Equal(t, []string{"b", "n", "posted", "s"}, m.Keys())

	v, ok := m.Get("n")
	require.True(t, ok)
	require.Equal(t, 3, v)
}
