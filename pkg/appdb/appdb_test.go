package appdb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuiltinLookup(t *testing.T) {
	db := Builtin()
	app, ok := db.Lookup("dial")
	if !ok || app.Name != "Dial" {
		t.Fatalf("Lookup(dial) = %v, %v", app, ok)
	}
	vals, ok := db.Values("DIALSTATUS")
	if !ok || len(vals) != 9 {
		t.Errorf("DIALSTATUS values = %v", vals)
	}
	if _, ok := db.Lookup("NoSuchApp"); ok {
		t.Error("unknown application found")
	}
	var nilDB *DB
	if _, ok := nilDB.Lookup("Dial"); ok {
		t.Error("nil database should find nothing")
	}
}

func TestCheckArgs(t *testing.T) {
	db := Builtin()
	tests := []struct {
		app  string
		args []string
		want string
	}{
		{"Dial", []string{"SIP/100", "20"}, ""},
		{"Dial", []string{"SIP/100", "soon"}, "should be a number"},
		{"Dial", []string{"SIP/100", "${T}"}, ""},
		{"Dial", nil, "missing required argument devices"},
		{"Wait", []string{"1", "2"}, "at most 1 arguments"},
		{"Log", []string{"LOUD", "hi"}, "should be one of"},
		{"NoOp", []string{"a", "b", "c"}, ""},
	}
	for _, tt := range tests {
		app, _ := db.Lookup(tt.app)
		problems := app.CheckArgs(tt.args)
		if tt.want == "" {
			if len(problems) != 0 {
				t.Errorf("%s%v: unexpected problems %v", tt.app, tt.args, problems)
			}
			continue
		}
		if len(problems) == 0 || !strings.Contains(problems[0], tt.want) {
			t.Errorf("%s%v: problems %v, want %q", tt.app, tt.args, problems, tt.want)
		}
	}
}

func TestLoadOverridesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.yaml")
	data := `apps:
  - name: Dial
    args:
      - {name: devices, required: true}
    sets:
      DIALSTATUS: [ANSWER, BUSY]
  - name: Lookup
    sets:
      LOOKUP_RESULT: ["1", "2", "3"]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	db, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dial, _ := db.Lookup("Dial")
	if len(dial.Args) != 1 {
		t.Errorf("Dial not overridden: %+v", dial.Args)
	}
	if vals, _ := db.Values("LOOKUP_RESULT"); strings.Join(vals, ",") != "1,2,3" {
		t.Errorf("LOOKUP_RESULT = %v", vals)
	}
	if _, ok := db.Lookup("Playback"); !ok {
		t.Error("built-in entries lost after Load")
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	for name, data := range map[string]string{
		"unknown field": "apps:\n  - name: X\n    color: red\n",
		"no name":       "apps:\n  - args: []\n",
		"bad type":      "apps:\n  - name: X\n    args:\n      - {name: a, type: float}\n",
	} {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestMarshalReloads(t *testing.T) {
	out, err := Builtin().Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	apps, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse(Marshal()): %v", err)
	}
	if len(apps) != len(Builtin().Names()) {
		t.Errorf("reparsed %d apps, want %d", len(apps), len(Builtin().Names()))
	}
}
