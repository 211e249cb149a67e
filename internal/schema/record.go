package schema

// Record is one logged event in a mirror table.
//
// A record is pending until its first successful upload, at which point the
// remote id and server timestamp are attached. The nil-or-not state of
// RemoteID is the pending/synced flag; there is no separate boolean. Once a
// remote id is attached it is never cleared again, otherwise the remote row
// it names would fall out of tracking.
type Record struct {
	// LocalID is the device-assigned rowid. Zero until inserted.
	LocalID int64

	// RemoteID is the opaque identifier assigned by the remote store.
	// Empty means the record has not been uploaded yet. The store layer
	// persists empty as SQL NULL so the UNIQUE constraint holds across
	// any number of pending rows.
	RemoteID string

	// ChildID is the owning child profile. Immutable after creation.
	ChildID string

	// Fields holds the domain column values by column name. Optional
	// columns may be absent.
	Fields map[string]string

	// LoggedAt is the server-assigned creation timestamp (RFC 3339).
	// Empty until the first successful upload; the device never invents
	// one.
	LoggedAt string
}

// Pending reports whether the record has not yet reached the remote store.
func (r *Record) Pending() bool {
	return r.RemoteID == ""
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	dup := *r
	dup.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		dup.Fields[k] = v
	}
	return &dup
}
