package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Lists every call that writes the canonical progress aggregate and flags
// packages outside the allowed writers. Usage: go run ./scripts [root] [-strict]

type writeSite struct {
	Package    string `json:"package"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Func       string `json:"func"`
	Call       string `json:"call"`
	Collection string `json:"collection"`
	Allowed    bool   `json:"allowed"`
}

type auditReport struct {
	CanonicalWriteCallsites int            `json:"canonical_write_callsites"`
	ProfileWriteCallsites   int            `json:"profile_write_callsites"`
	MirrorWriteCallsites    int            `json:"mirror_write_callsites"`
	ByPackage               map[string]int `json:"by_package"`
	Sites                   []writeSite    `json:"sites"`
	Violations              []writeSite    `json:"violations"`
}

var storeWriteMethods = map[string]bool{
	"MergeSet":       true,
	"RunTransaction": true,
}

var mirrorWriteMethods = map[string]bool{
	"MergeFlat": true,
}

// Packages that own writes to userProgressFacts.
var allowedCanonicalWriters = map[string]bool{
	"internal/progress/throttle": true,
	"internal/progress/journal":  true,
	"internal/progress/backfill": true,
	"internal/data/mirror":       true,
	"internal/data/docstore":     true,
}

func main() {
	root := "."
	strict := false
	for _, arg := range os.Args[1:] {
		if arg == "-strict" {
			strict = true
			continue
		}
		root = arg
	}

	report := auditReport{ByPackage: map[string]int{}}
	fset := token.NewFileSet()
	internalDir := filepath.Join(root, "internal")

	err := filepath.WalkDir(internalDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		f, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		pkg := filepath.ToSlash(filepath.Dir(rel))
		for _, site := range collectSites(fset, f, filepath.ToSlash(rel), pkg) {
			report.add(site)
		}
		return nil
	})
	if err != nil {
		exitf("walk: %v", err)
	}

	sort.Slice(report.Sites, func(i, j int) bool {
		if report.Sites[i].File == report.Sites[j].File {
			return report.Sites[i].Line < report.Sites[j].Line
		}
		return report.Sites[i].File < report.Sites[j].File
	})
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	fmt.Println(string(out))
	if strict && len(report.Violations) > 0 {
		os.Exit(1)
	}
}

func (r *auditReport) add(site writeSite) {
	r.Sites = append(r.Sites, site)
	r.ByPackage[site.Package]++
	switch {
	case mirrorWriteMethods[site.Call]:
		r.MirrorWriteCallsites++
	case site.Collection == "CollectionProfiles":
		r.ProfileWriteCallsites++
	default:
		r.CanonicalWriteCallsites++
	}
	if !site.Allowed {
		r.Violations = append(r.Violations, site)
	}
}

func collectSites(fset *token.FileSet, file *ast.File, relFile, pkg string) []writeSite {
	var out []writeSite
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		name := fd.Name.Name
		if recv := recvType(fd); recv != "" {
			name = recv + "." + name
		}
		ast.Inspect(fd.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			method := sel.Sel.Name
			if !storeWriteMethods[method] && !mirrorWriteMethods[method] {
				return true
			}
			site := writeSite{
				Package: pkg,
				File:    relFile,
				Line:    fset.Position(call.Pos()).Line,
				Func:    name,
				Call:    method,
			}
			if storeWriteMethods[method] {
				site.Collection = collectionArg(call)
			}
			site.Allowed = allowed(site)
			out = append(out, site)
			return true
		})
	}
	return out
}

// collectionArg names the progress.Collection* constant passed as the
// collection, or "dynamic" when the caller forwards a variable.
func collectionArg(call *ast.CallExpr) string {
	if len(call.Args) < 2 {
		return "dynamic"
	}
	if sel, ok := call.Args[1].(*ast.SelectorExpr); ok && strings.HasPrefix(sel.Sel.Name, "Collection") {
		return sel.Sel.Name
	}
	return "dynamic"
}

func allowed(site writeSite) bool {
	if mirrorWriteMethods[site.Call] || site.Collection == "CollectionProfiles" {
		return true
	}
	for prefix := range allowedCanonicalWriters {
		if site.Package == prefix || strings.HasPrefix(site.Package, prefix+"/") {
			return true
		}
	}
	return false
}

func recvType(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}
	switch t := fd.Recv.List[0].Type.(type) {
	case *ast.StarExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name
		}
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
