// Package schema describes the log tables mirrored between the on-device
// database and the hosted backend.
//
// Each log kind (diaper, feeding, sleep) is a Table: a remote table name plus
// an ordered set of domain columns. The local mirror layout is identical for
// every kind, so the store and sync layers are written once against the
// Table descriptor rather than duplicated per kind.
package schema

import (
	"fmt"
	"strings"
)

// Column describes one domain column of a log table.
type Column struct {
	// Name is the column name, identical locally and remotely.
	Name string

	// Required columns reject empty values at record creation and are
	// validated again before upload and after download.
	Required bool

	// Encrypted columns are field-encrypted before upload and decrypted
	// after download. The local mirror always holds plaintext.
	Encrypted bool
}

// Table describes one log kind and its mirror table.
type Table struct {
	// Kind is the short name used by the CLI ("diaper", "feeding", ...).
	Kind string

	// Remote is the table name in the hosted row store ("diaper_logs").
	Remote string

	// Columns are the domain columns in declaration order.
	Columns []Column
}

// LocalName returns the name of the on-device mirror table.
func (t *Table) LocalName() string {
	return "local_" + t.Remote
}

// DDL returns the CREATE TABLE statement for the mirror table.
//
// Every mirror shares the same frame: a device-assigned rowid, a nullable
// unique remote id (null means "not yet uploaded"), the owning child, the
// domain columns, and the server-assigned logged_at timestamp.
func (t *Table) DDL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.LocalName())
	b.WriteString("\tlocal_id INTEGER PRIMARY KEY AUTOINCREMENT,\n")
	b.WriteString("\tremote_id TEXT UNIQUE,\n")
	b.WriteString("\tchild_id TEXT NOT NULL,\n")
	for _, col := range t.Columns {
		if col.Required {
			fmt.Fprintf(&b, "\t%s TEXT NOT NULL,\n", col.Name)
		} else {
			fmt.Fprintf(&b, "\t%s TEXT,\n", col.Name)
		}
	}
	b.WriteString("\tlogged_at TEXT\n")
	b.WriteString(");")
	return b.String()
}

// ColumnNames returns the domain column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the descriptor for the named domain column.
func (t *Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Validate checks that a record is complete enough to store or upload.
func (t *Table) Validate(r *Record) error {
	if r.ChildID == "" {
		return fmt.Errorf("child_id is required")
	}
	for _, col := range t.Columns {
		if col.Required && r.Fields[col.Name] == "" {
			return fmt.Errorf("%s is required", col.Name)
		}
	}
	return nil
}

var registry = []*Table{
	{
		Kind:   "diaper",
		Remote: "diaper_logs",
		Columns: []Column{
			{Name: "consistency", Required: true},
			{Name: "amount", Required: true},
			{Name: "change_time", Required: true},
			{Name: "note", Encrypted: true},
		},
	},
	{
		Kind:   "feeding",
		Remote: "feeding_logs",
		Columns: []Column{
			{Name: "feed_type", Required: true},
			{Name: "start_time", Required: true},
			{Name: "amount"},
			{Name: "note", Encrypted: true},
		},
	},
	{
		Kind:   "sleep",
		Remote: "sleep_logs",
		Columns: []Column{
			{Name: "start_time", Required: true},
			{Name: "end_time", Required: true},
			{Name: "note", Encrypted: true},
		},
	},
}

// Tables returns all registered log tables.
func Tables() []*Table {
	return registry
}

// Lookup returns the table for a CLI kind name.
func Lookup(kind string) (*Table, bool) {
	for _, t := range registry {
		if t.Kind == kind {
			return t, true
		}
	}
	return nil, false
}
