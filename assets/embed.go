// assets/embed.go
//
// Files compiled into the binary:
//   - categories.json: default word content used when WORDS_FILE is unset.
//   - sql/*.sql:       schema migrations applied at startup.

package assets

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed categories.json sql/*.sql
var FS embed.FS

// DefaultCategories returns the raw embedded content document.
func DefaultCategories() ([]byte, error) {
	return FS.ReadFile("categories.json")
}

// Migration is one embedded schema script.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns every embedded sql/*.sql file in lexical order.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(FS, "sql")
	if err != nil {
		return nil, err
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			continue
		}
		b, err := FS.ReadFile("sql/" + e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: e.Name(), SQL: string(b)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
