package schema

import (
	"strings"
	"testing"
)

func TestLookup(t *testing.T) {
	for _, kind := range []string{"diaper", "feeding", "sleep"} {
		table, ok := Lookup(kind)
		if !ok {
			t.Fatalf("Lookup(%q) failed", kind)
		}
		if table.Kind != kind {
			t.Errorf("expected kind %q, got %q", kind, table.Kind)
		}
	}

	if _, ok := Lookup("growth"); ok {
		t.Error("Lookup should fail for unregistered kind")
	}
}

func TestLocalName(t *testing.T) {
	table, _ := Lookup("diaper")
	if got := table.LocalName(); got != "local_diaper_logs" {
		t.Errorf("expected local_diaper_logs, got %s", got)
	}
}

func TestDDL(t *testing.T) {
	table, _ := Lookup("diaper")
	ddl := table.DDL()

	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS local_diaper_logs",
		"local_id INTEGER PRIMARY KEY AUTOINCREMENT",
		"remote_id TEXT UNIQUE",
		"child_id TEXT NOT NULL",
		"consistency TEXT NOT NULL",
		"amount TEXT NOT NULL",
		"change_time TEXT NOT NULL",
		"note TEXT",
		"logged_at TEXT",
	} {
		if !strings.Contains(ddl, want) {
			t.Errorf("DDL missing %q:\n%s", want, ddl)
		}
	}

	if strings.Contains(ddl, "note TEXT NOT NULL") {
		t.Error("optional note column must be nullable")
	}
}

func TestValidate(t *testing.T) {
	table, _ := Lookup("diaper")

	tests := []struct {
		name    string
		rec     *Record
		wantErr bool
	}{
		{
			name: "complete",
			rec: &Record{
				ChildID: "child-1",
				Fields: map[string]string{
					"consistency": "Wet",
					"amount":      "MD",
					"change_time": "2026-08-29T10:00:00Z",
				},
			},
		},
		{
			name: "missing note is fine",
			rec: &Record{
				ChildID: "child-1",
				Fields: map[string]string{
					"consistency": "Dry",
					"amount":      "SM",
					"change_time": "2026-08-29T11:00:00Z",
				},
			},
		},
		{
			name: "missing child",
			rec: &Record{
				Fields: map[string]string{
					"consistency": "Wet",
					"amount":      "MD",
					"change_time": "2026-08-29T10:00:00Z",
				},
			},
			wantErr: true,
		},
		{
			name: "missing required field",
			rec: &Record{
				ChildID: "child-1",
				Fields: map[string]string{
					"consistency": "Wet",
					"change_time": "2026-08-29T10:00:00Z",
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := table.Validate(tt.rec)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordPending(t *testing.T) {
	rec := &Record{}
	if !rec.Pending() {
		t.Error("record without remote id should be pending")
	}

	rec.RemoteID = "abc"
	if rec.Pending() {
		t.Error("record with remote id should not be pending")
	}
}

func TestRecordClone(t *testing.T) {
	rec := &Record{
		LocalID: 3,
		ChildID: "child-1",
		Fields:  map[string]string{"note": "original"},
	}

	dup := rec.Clone()
	dup.Fields["note"] = "changed"

	if rec.Fields["note"] != "original" {
		t.Error("Clone must not share the fields map")
	}
}
