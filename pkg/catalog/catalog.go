// Package catalog loads foreign table definitions from YAML and turns
// them into descriptors the registry binds. The catalog stands in for
// the host engine's own metadata storage, which owns table definitions
// in a full deployment.
package catalog

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/txn2/fdw-bridge/pkg/fdw"
)

// Catalog holds the complete foreign table configuration.
type Catalog struct {
	Servers []ServerDef `yaml:"servers"`
	Tables  []TableDef  `yaml:"tables"`
}

// ServerDef defines a named connection-level option set shared by the
// tables referencing it.
type ServerDef struct {
	Name    string            `yaml:"name"`
	Backend string            `yaml:"backend"`
	Options map[string]string `yaml:"options"`
}

// TableDef defines one foreign table.
type TableDef struct {
	Name      string            `yaml:"name"`
	Namespace string            `yaml:"namespace"`
	Backend   string            `yaml:"backend"`
	Server    string            `yaml:"server"`
	Columns   []ColumnDef       `yaml:"columns"`
	Options   map[string]string `yaml:"options"`
}

// ColumnDef defines one column of a foreign table.
type ColumnDef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Load reads a catalog from a YAML file.
// The path is expected to come from command line arguments, controlled by the administrator.
func Load(path string) (*Catalog, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse reads a catalog from YAML bytes, expanding ${VAR} environment
// references first.
func Parse(data []byte) (*Catalog, error) {
	data = []byte(expandEnvVars(string(data)))

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// Validate checks the catalog for structural problems, gathering all
// errors rather than stopping at the first.
func (c *Catalog) Validate() error {
	var errs []string

	servers := make(map[string]ServerDef, len(c.Servers))
	for _, s := range c.Servers {
		if s.Name == "" {
			errs = append(errs, "server name is required")
			continue
		}
		if _, dup := servers[s.Name]; dup {
			errs = append(errs, fmt.Sprintf("duplicate server %q", s.Name))
		}
		servers[s.Name] = s
	}

	tables := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if t.Name == "" {
			errs = append(errs, "table name is required")
			continue
		}
		key := qualified(t)
		if tables[key] {
			errs = append(errs, fmt.Sprintf("duplicate table %q", key))
		}
		tables[key] = true

		if t.Backend == "" {
			errs = append(errs, fmt.Sprintf("table %q: backend is required", key))
		}
		if t.Server != "" {
			srv, ok := servers[t.Server]
			switch {
			case !ok:
				errs = append(errs, fmt.Sprintf("table %q references unknown server %q", key, t.Server))
			case srv.Backend != "" && srv.Backend != t.Backend:
				errs = append(errs, fmt.Sprintf("table %q backend %q does not match server %q backend %q", key, t.Backend, t.Server, srv.Backend))
			}
		}
		if len(t.Columns) == 0 {
			errs = append(errs, fmt.Sprintf("table %q declares no columns", key))
		}
		for _, col := range t.Columns {
			if col.Name == "" {
				errs = append(errs, fmt.Sprintf("table %q: column name is required", key))
			}
			if _, err := fdw.ParseType(col.Type); err != nil {
				errs = append(errs, fmt.Sprintf("table %q column %q: unknown type %q", key, col.Name, col.Type))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid catalog:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Descriptor builds the immutable descriptor for one table definition,
// merging in the options of its referenced server.
func (c *Catalog) Descriptor(t TableDef) (*fdw.Descriptor, error) {
	columns := make([]fdw.Column, len(t.Columns))
	for i, col := range t.Columns {
		typ, err := fdw.ParseType(col.Type)
		if err != nil {
			return nil, fmt.Errorf("table %q column %q: %w", t.Name, col.Name, err)
		}
		columns[i] = fdw.Column{Name: col.Name, Type: typ}
	}

	desc := &fdw.Descriptor{
		Table:        t.Name,
		Namespace:    t.Namespace,
		Columns:      columns,
		TableOptions: fdw.Options(t.Options).Clone(),
	}
	if t.Server != "" {
		for _, s := range c.Servers {
			if s.Name == t.Server {
				desc.ServerOptions = fdw.Options(s.Options).Clone()
				break
			}
		}
	}
	return desc, nil
}

func qualified(t TableDef) string {
	if t.Namespace != "" {
		return t.Namespace + "." + t.Name
	}
	return t.Name
}
