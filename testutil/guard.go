// Package testutil holds import guards that keep the gateway layered: the
// coordinator knows nothing of HTTP or metrics, and only the blob facade
// reaches the cloud SDK.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Predicate matches a forbidden import path.
type Predicate func(importPath string) bool

// Any matches when one of preds does.
func Any(preds ...Predicate) Predicate {
	return func(p string) bool {
		for _, pred := range preds {
			if pred(p) {
				return true
			}
		}
		return false
	}
}

// HTTPFrameworkImport matches gin and its middleware modules.
func HTTPFrameworkImport(p string) bool {
	return strings.HasPrefix(p, "github.com/gin-gonic/") || strings.HasPrefix(p, "github.com/gin-contrib/")
}

// MetricsImport matches the Prometheus client.
func MetricsImport(p string) bool {
	return strings.HasPrefix(p, "github.com/prometheus/")
}

// CloudSDKImport matches the AWS SDK.
func CloudSDKImport(p string) bool {
	return strings.HasPrefix(p, "github.com/aws/")
}

// AdapterImport matches the gateway's inbound adapters and its command.
func AdapterImport(p string) bool {
	return strings.Contains(p, "/internal/adapters/") || strings.Contains(p, "/cmd/")
}

// AssertNoTransitiveDependency runs `go list -deps pattern` and fails when
// any dependency matches forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden Predicate, reason string) {
	t.Helper()
	out, err := goListDeps(pattern)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, out)
	}
	report(t, "forbidden transitive dependency", reason, matchLines(string(out), forbidden))
}

// AssertNoDirectImports parses the non-test .go files directly in dir and
// fails when an import matches forbidden. Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden Predicate, reason string) {
	t.Helper()
	viols, err := directImports(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	report(t, "forbidden direct import", reason, viols)
}

var goListDeps = func(pattern string) ([]byte, error) {
	return exec.Command("go", "list", "-deps", pattern).CombinedOutput()
}

func matchLines(out string, forbidden Predicate) []string {
	var hits []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" && forbidden(line) {
			hits = append(hits, line)
		}
	}
	return hits
}

func directImports(dir string, forbidden Predicate) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var hits []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range f.Imports {
			if p := strings.Trim(imp.Path.Value, `"`); forbidden(p) {
				hits = append(hits, p+" (in "+name+")")
			}
		}
	}
	return hits, nil
}

type fatalf interface {
	Fatalf(format string, args ...any)
}

func report(t fatalf, what, reason string, hits []string) {
	if len(hits) > 0 {
		t.Fatalf("%s (%s):\n%s", what, reason, strings.Join(hits, "\n"))
	}
}
