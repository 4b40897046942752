// Package appdb describes dialplan applications: their argument shapes and
// the channel variables they set, with the value set each variable can take.
// The checker uses it for argument validation and switch exhaustiveness.
package appdb

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v2"
)

// Arg describes one positional application argument.
type Arg struct {
	Name     string   `yaml:"name" json:"name"`
	Required bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Type     string   `yaml:"type,omitempty" json:"type,omitempty"` // "", "int" or "enum"
	Values   []string `yaml:"values,omitempty" json:"values,omitempty"`
}

// App is one application entry.
type App struct {
	Name     string              `yaml:"name" json:"name"`
	Args     []Arg               `yaml:"args,omitempty" json:"args,omitempty"`
	Variadic bool                `yaml:"variadic,omitempty" json:"variadic,omitempty"`
	Sets     map[string][]string `yaml:"sets,omitempty" json:"sets,omitempty"`
}

// DB is a case-insensitive application index.
type DB struct {
	apps map[string]*App
	vars map[string][]string
}

type file struct {
	Apps []*App `yaml:"apps" json:"apps"`
}

// New builds a database from apps. Later entries replace earlier ones with
// the same name.
func New(apps ...*App) *DB {
	db := &DB{
		apps: make(map[string]*App),
		vars: make(map[string][]string),
	}
	for _, a := range apps {
		db.add(a)
	}
	return db
}

func (db *DB) add(a *App) {
	db.apps[strings.ToLower(a.Name)] = a
	for v, values := range a.Sets {
		db.vars[v] = mergeValues(db.vars[v], values)
	}
}

func mergeValues(have, add []string) []string {
	seen := make(map[string]bool, len(have))
	for _, v := range have {
		seen[v] = true
	}
	for _, v := range add {
		if !seen[v] {
			have = append(have, v)
			seen[v] = true
		}
	}
	return have
}

// Builtin returns a database holding the built-in application list.
func Builtin() *DB {
	return New(builtinApps()...)
}

// Parse reads a YAML application list.
func Parse(data []byte) ([]*App, error) {
	var f file
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse application database: %w", err)
	}
	for i, a := range f.Apps {
		if a.Name == "" {
			return nil, fmt.Errorf("application %d has no name", i+1)
		}
		for _, arg := range a.Args {
			switch arg.Type {
			case "", "int", "enum":
			default:
				return nil, fmt.Errorf("application %s: argument %s: unknown type %q", a.Name, arg.Name, arg.Type)
			}
		}
	}
	return f.Apps, nil
}

// Load reads a YAML application list from path. Its entries override the
// built-in ones of the same name.
func Load(path string) (*DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read application database: %w", err)
	}
	apps, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(append(builtinApps(), apps...)...), nil
}

// Marshal renders the database as YAML, sorted by application name.
func (db *DB) Marshal() ([]byte, error) {
	var f file
	for _, name := range db.Names() {
		f.Apps = append(f.Apps, db.apps[strings.ToLower(name)])
	}
	return yaml.Marshal(&f)
}

// Lookup returns the entry for an application name.
func (db *DB) Lookup(name string) (*App, bool) {
	if db == nil {
		return nil, false
	}
	a, ok := db.apps[strings.ToLower(name)]
	return a, ok
}

// Names returns all application names, sorted.
func (db *DB) Names() []string {
	names := make([]string, 0, len(db.apps))
	for _, a := range db.apps {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

// Values returns the known value set of a channel variable.
func (db *DB) Values(variable string) ([]string, bool) {
	if db == nil {
		return nil, false
	}
	v, ok := db.vars[variable]
	return v, ok
}

// CheckArgs validates an argument list against the application entry and
// returns one message per problem.
func (a *App) CheckArgs(args []string) []string {
	var problems []string
	if !a.Variadic && len(args) > len(a.Args) {
		problems = append(problems, fmt.Sprintf("%s takes at most %d arguments, got %d", a.Name, len(a.Args), len(args)))
	}
	for i, arg := range a.Args {
		if i >= len(args) || strings.TrimSpace(args[i]) == "" {
			if arg.Required {
				problems = append(problems, fmt.Sprintf("%s: missing required argument %s", a.Name, arg.Name))
			}
			continue
		}
		val := strings.TrimSpace(args[i])
		if strings.ContainsAny(val, "$") {
			continue
		}
		switch arg.Type {
		case "int":
			if _, err := strconv.Atoi(val); err != nil {
				problems = append(problems, fmt.Sprintf("%s: argument %s should be a number, got %q", a.Name, arg.Name, val))
			}
		case "enum":
			if !contains(arg.Values, val) {
				problems = append(problems, fmt.Sprintf("%s: argument %s should be one of %s, got %q",
					a.Name, arg.Name, strings.Join(arg.Values, "|"), val))
			}
		}
	}
	return problems
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
