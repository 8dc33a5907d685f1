package observability_test

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Keys that must never be attached to a span anywhere in the repo. The
// runtime filter would strip them anyway, but catching them at review
// time keeps the policy and the code from drifting apart.
var (
	forbiddenAttrPrefixes = []string{"user.", "user_", "password", "token", "secret", "credential"}

	forbiddenAttrKeys = map[string]bool{
		"email":         true,
		"request.body":  true,
		"response.body": true,
		"user_id":       true,
		"user_email":    true,
	}
)

// TestTelemetryLint_NoPIIAttributeKeys parses every non-test source file
// and flags attribute.String/Int/Bool/Float64 calls whose literal key
// matches the forbidden set.
func TestTelemetryLint_NoPIIAttributeKeys(t *testing.T) {
	t.Parallel()

	root := moduleRoot(t)
	fset := token.NewFileSet()

	var violations []string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() {
			return skipNonSource(root, path)
		}

		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		file, parseErr := parser.ParseFile(fset, path, nil, 0)
		if parseErr != nil {
			return fmt.Errorf("parse %s: %w", path, parseErr)
		}

		ast.Inspect(file, func(n ast.Node) bool {
			key, ok := literalAttrKey(n)
			if !ok || !forbiddenKey(key) {
				return true
			}

			rel, relErr := filepath.Rel(root, fset.Position(n.Pos()).Filename)
			if relErr != nil {
				rel = fset.Position(n.Pos()).Filename
			}

			violations = append(violations, rel+":"+key)

			return true
		})

		return nil
	})

	require.NoError(t, err)
	assert.Empty(t, violations, "found PII or high-cardinality attribute keys: %v", violations)
}

// skipNonSource prunes directories the Go toolchain itself would not
// build: vendor, testdata, and hidden or underscore-prefixed trees.
func skipNonSource(root, path string) error {
	base := filepath.Base(path)
	if base == "vendor" || base == "testdata" {
		return filepath.SkipDir
	}

	if path != root && (strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_")) {
		return filepath.SkipDir
	}

	return nil
}

// literalAttrKey matches attribute.String("key", ...) and the Int, Bool,
// and Float64 variants, returning the literal key when present.
func literalAttrKey(n ast.Node) (string, bool) {
	call, ok := n.(*ast.CallExpr)
	if !ok || len(call.Args) == 0 {
		return "", false
	}

	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return "", false
	}

	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != "attribute" {
		return "", false
	}

	switch sel.Sel.Name {
	case "String", "Int", "Bool", "Float64":
	default:
		return "", false
	}

	lit, ok := call.Args[0].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}

	return strings.Trim(lit.Value, `"`), true
}

func forbiddenKey(key string) bool {
	lower := strings.ToLower(key)

	if forbiddenAttrKeys[lower] {
		return true
	}

	for _, prefix := range forbiddenAttrPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}

	return false
}

// moduleRoot walks up from the working directory to the go.mod root.
func moduleRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above working directory")
		}

		dir = parent
	}
}
