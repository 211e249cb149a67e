// Package sync reconciles the on-device mirror of a log table with the
// hosted row store.
//
// # Overview
//
// The engine runs one best-effort reconciliation pass for a single log table
// scoped to a single child. A pass has two phases executed in sequence:
//
//	Local mirror (SQLite)                    Remote row store
//	     │  pending rows (remote_id NULL)         │
//	     ├────────── Phase 1: upload ────────────▶│  insert, returns id+timestamp
//	     │◀── attach remote_id / logged_at ───────┤
//	     │                                        │
//	     │◀───────── Phase 2: download ───────────┤  select by child_id
//	     │  upsert keyed on remote_id (remote wins)
//
// Phase 1 fully completes before Phase 2 begins, so a record uploaded in
// Phase 1 already carries its remote id when the download sees it again and
// simply upserts onto itself.
//
// # Failure accounting
//
// Per-record problems never abort a pass and never escape Synchronize; they
// are counted and collected into the returned Report. A record that fails to
// upload keeps a NULL remote_id and is retried on the next pass. A malformed
// record or row is skipped with a warning and counted neither as success nor
// failure, since it indicates a data-producer defect rather than a transient
// sync condition.
//
// Synchronize returns an error only for the precondition failure (no child
// id, before any I/O) or when the pending set cannot be read at all.
//
// # Usage
//
//	db, err := store.Open(".babysync/babysync.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Init(schema.Tables()...); err != nil {
//	    return err
//	}
//
//	engine := sync.New(db, remoteStore, cipher, nil)
//	report, err := engine.Synchronize(ctx, table, childID)
//
// The engine performs no retries, no backoff, and no locking of its own;
// callers decide retry policy from the Report and must not overlap passes
// for the same table.
package sync
