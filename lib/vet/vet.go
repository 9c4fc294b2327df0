// Package vet statically checks fieldtype registrations in Go sources.
//
// It looks for calls whose first argument is a string literal:
//
//	reg.Register("toggle_password", ...)          handle
//	reg.RegisterUI("toggle_password-fieldtype", ...)   UI handler name
//	reg.RegisterIndexUI("toggle_password-fieldtype-index", ...)
//	hxfield.New("toggle_password")
//	hxfield.MustHandle("toggle_password")
//
// and reports literals that break the naming convention, plus UI handlers
// whose handle no scanned definition uses.
package vet

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pthm/hxfield"
)

// Severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one reported problem.
type Finding struct {
	Pos      token.Position
	Call     string
	Literal  string
	Severity Severity
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s: %s(%q): %s", f.Pos, f.Severity, f.Call, f.Literal, f.Message)
}

// Checker scans packages for registration calls.
type Checker struct {
	fset *token.FileSet
}

// New creates a checker.
func New() *Checker {
	return &Checker{fset: token.NewFileSet()}
}

type site struct {
	pos     token.Position
	call    string
	literal string
}

// Check scans the packages matching patterns ("./..." or directories).
// Findings are sorted by position.
func (c *Checker) Check(patterns ...string) ([]Finding, error) {
	dirs, err := findPackages(patterns)
	if err != nil {
		return nil, err
	}

	var sites []site
	for _, dir := range dirs {
		s, err := c.scanDir(dir)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", dir, err)
		}
		sites = append(sites, s...)
	}
	return evaluate(sites), nil
}

// CheckSource scans a single file's source.
func (c *Checker) CheckSource(filename string, src []byte) ([]Finding, error) {
	file, err := parser.ParseFile(c.fset, filename, src, 0)
	if err != nil {
		return nil, err
	}
	return evaluate(c.scanFile(file)), nil
}

func (c *Checker) scanDir(dir string) ([]site, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var sites []site
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(c.fset, filepath.Join(dir, name), nil, 0)
		if err != nil {
			return nil, err
		}
		sites = append(sites, c.scanFile(file)...)
	}
	return sites, nil
}

func (c *Checker) scanFile(file *ast.File) []site {
	var sites []site
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || !checked(sel) {
			return true
		}
		lit, ok := call.Args[0].(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		value, err := strconv.Unquote(lit.Value)
		if err != nil {
			return true
		}
		sites = append(sites, site{
			pos:     c.fset.Position(lit.Pos()),
			call:    sel.Sel.Name,
			literal: value,
		})
		return true
	})
	return sites
}

// checked reports whether sel is one of the calls vet knows. New and
// MustHandle only count when qualified with the hxfield package name.
func checked(sel *ast.SelectorExpr) bool {
	switch sel.Sel.Name {
	case "Register", "RegisterUI", "RegisterIndexUI":
		return true
	case "New", "MustHandle":
		ident, ok := sel.X.(*ast.Ident)
		return ok && ident.Name == "hxfield"
	}
	return false
}

type uiSite struct {
	site
	handle hxfield.Handle
}

func evaluate(sites []site) []Finding {
	var findings []Finding
	defined := make(map[hxfield.Handle]bool)
	var uiSites []uiSite

	for _, s := range sites {
		switch s.call {
		case "Register", "New", "MustHandle":
			h, err := hxfield.ParseHandle(s.literal)
			if err != nil {
				findings = append(findings, finding(s, SeverityError, "handle must be lower_snake_case"))
				continue
			}
			defined[h] = true
		case "RegisterUI", "RegisterIndexUI":
			h, index, err := hxfield.ParseComponentName(s.literal)
			switch {
			case err != nil:
				findings = append(findings, finding(s, SeverityError, nameHint(s.call)))
			case index != (s.call == "RegisterIndexUI"):
				findings = append(findings, finding(s, SeverityError, nameHint(s.call)))
			default:
				uiSites = append(uiSites, uiSite{site: s, handle: h})
			}
		}
	}

	for _, u := range uiSites {
		if !defined[u.handle] {
			findings = append(findings, finding(u.site, SeverityWarning,
				fmt.Sprintf("no definition registers handle %q; lookups will not find this handler", u.handle)))
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i].Pos, findings[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return findings
}

func nameHint(call string) string {
	if call == "RegisterIndexUI" {
		return `name must be "<handle>` + hxfield.IndexComponentSuffix + `"`
	}
	return `name must be "<handle>` + hxfield.ComponentSuffix + `"`
}

func finding(s site, sev Severity, msg string) Finding {
	return Finding{Pos: s.pos, Call: s.call, Literal: s.literal, Severity: sev, Message: msg}
}

// HasErrors reports whether any finding is an error.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// findPackages resolves package patterns to directories containing Go files.
func findPackages(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	var dirs []string
	for _, pattern := range patterns {
		if !strings.HasSuffix(pattern, "/...") {
			dirs = append(dirs, pattern)
			continue
		}

		root := strings.TrimSuffix(pattern, "/...")
		if root == "" {
			root = "."
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			base := d.Name()
			if path != root && (strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") ||
				base == "vendor" || base == "testdata") {
				return filepath.SkipDir
			}
			if hasGoFiles(path) {
				dirs = append(dirs, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return dirs, nil
}

func hasGoFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".go") && !strings.HasSuffix(e.Name(), "_test.go") {
			return true
		}
	}
	return false
}
