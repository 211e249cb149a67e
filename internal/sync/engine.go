package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/simplebaby/babysync/internal/fieldcrypt"
	"github.com/simplebaby/babysync/internal/remote"
	"github.com/simplebaby/babysync/internal/schema"
	"github.com/simplebaby/babysync/internal/store"
)

// engine implements the Engine interface.
type engine struct {
	store  *store.DB
	remote remote.Store
	cipher fieldcrypt.Cipher
	logger *log.Logger
}

// New creates a new Engine instance.
//
// The database must be opened and initialized before passing to this
// function. cipher encrypts columns marked Encrypted before upload and
// decrypts them after download; pass nil to sync those columns verbatim.
// If logger is nil, a default logger writing to stderr is used.
func New(db *store.DB, rs remote.Store, cipher fieldcrypt.Cipher, logger *log.Logger) Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &engine{
		store:  db,
		remote: rs,
		cipher: cipher,
		logger: logger,
	}
}

// Synchronize implements Engine.Synchronize.
func (e *engine) Synchronize(ctx context.Context, table *schema.Table, childID string) (*Report, error) {
	if childID == "" {
		return nil, &SetupError{Reason: "no active child to scope the pass"}
	}

	e.logger.Printf("Starting %s sync for child %s", table.Kind, childID)

	report := &Report{UploadSuccess: true, DownloadSuccess: true}

	if err := e.upload(ctx, table, childID, report); err != nil {
		return nil, err
	}
	e.download(ctx, table, childID, report)

	e.logger.Printf("Finished %s sync for child %s: uploaded %d/%d (failed=%d), applied %d/%d (failed=%d)",
		table.Kind, childID,
		report.Upload.Succeeded, report.Upload.TotalPending, report.Upload.Failed,
		report.Download.Processed, report.Download.TotalReceived, report.Download.Failed)

	return report, nil
}

// upload pushes every pending record for the child to the remote store and
// attaches the returned remote id. Only a failure to read the pending set
// escapes as an error; per-record failures are accounted and the batch
// continues.
func (e *engine) upload(ctx context.Context, table *schema.Table, childID string, report *Report) error {
	pending, err := e.store.ListPending(ctx, table, childID)
	if err != nil {
		return fmt.Errorf("failed to read pending %s records: %w", table.Kind, err)
	}

	report.Upload.TotalPending = len(pending)
	e.logger.Printf("Found %d pending %s record(s) for upload", len(pending), table.Kind)

	for _, rec := range pending {
		if err := table.Validate(rec); err != nil {
			// Data-producer defect, not a sync failure. The record
			// stays pending and is neither counted nor uploaded.
			e.logger.Printf("WARNING: Skipping upload of local_id %d: %v", rec.LocalID, err)
			continue
		}
		if rec.ChildID != childID {
			e.logger.Printf("WARNING: Skipping upload of local_id %d: child %s does not match pass scope %s",
				rec.LocalID, rec.ChildID, childID)
			continue
		}

		if err := e.uploadOne(ctx, table, rec); err != nil {
			e.logger.Printf("WARNING: Failed to upload local_id %d: %v", rec.LocalID, err)
			report.Errors = append(report.Errors, ReportError{
				Phase:     PhaseUpload,
				RecordRef: fmt.Sprintf("local_id=%d", rec.LocalID),
				Message:   err.Error(),
			})
			report.Upload.Failed++
			report.UploadSuccess = false
			continue
		}

		report.Upload.Succeeded++
	}

	return nil
}

// uploadOne inserts a single record remotely and links the local copy to the
// returned row. The remote-id attach is the one-way pending-to-synced
// transition, so failing anywhere here leaves the record pending and
// retryable.
func (e *engine) uploadOne(ctx context.Context, table *schema.Table, rec *schema.Record) error {
	payload, err := e.buildPayload(table, rec)
	if err != nil {
		return err
	}

	res, err := e.remote.Insert(ctx, table.Remote, payload)
	if err != nil {
		return err
	}
	if res == nil || res.ID == "" || res.LoggedAt == "" {
		return fmt.Errorf("remote insert returned no id/timestamp")
	}

	if err := e.store.AttachRemoteID(ctx, table, rec.LocalID, res.ID, res.LoggedAt); err != nil {
		return fmt.Errorf("uploaded but failed to link local record: %w", err)
	}
	return nil
}

// buildPayload assembles the remote insert body, encrypting columns marked
// for field encryption.
func (e *engine) buildPayload(table *schema.Table, rec *schema.Record) (map[string]any, error) {
	payload := map[string]any{"child_id": rec.ChildID}

	for _, col := range table.Columns {
		value, ok := rec.Fields[col.Name]
		if !ok || value == "" {
			if !col.Required {
				continue
			}
			return nil, fmt.Errorf("%s is required", col.Name)
		}

		if col.Encrypted && e.cipher != nil {
			enc, err := e.cipher.Encrypt(value)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt %s: %w", col.Name, err)
			}
			value = enc
		}
		payload[col.Name] = value
	}

	return payload, nil
}

// download pulls the child's rows from the remote store and upserts them
// into the local mirror inside one transaction, remote data winning over any
// local copy. Each row's upsert is a single statement, so one row failing
// never corrupts rows already applied.
func (e *engine) download(ctx context.Context, table *schema.Table, childID string, report *Report) {
	rows, err := e.remote.Select(ctx, table.Remote, childID)
	if err != nil {
		e.logger.Printf("WARNING: Failed to fetch remote %s rows: %v", table.Kind, err)
		report.Errors = append(report.Errors, ReportError{
			Phase:   PhaseDownload,
			Message: err.Error(),
		})
		report.DownloadSuccess = false
		return
	}

	report.Download.TotalReceived = len(rows)
	if len(rows) == 0 {
		e.logger.Printf("No remote %s rows for child %s", table.Kind, childID)
		return
	}

	e.logger.Printf("Received %d remote %s row(s), applying upserts", len(rows), table.Kind)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		report.Errors = append(report.Errors, ReportError{
			Phase:   PhaseDownload,
			Message: err.Error(),
		})
		report.DownloadSuccess = false
		return
	}
	defer tx.Rollback()

	for _, row := range rows {
		rec, skip := e.recordFromRow(table, childID, row)
		if skip {
			continue
		}

		changed, err := e.applyRow(ctx, tx, table, rec)
		if err != nil {
			e.logger.Printf("WARNING: Failed to apply remote_id %s: %v", rec.RemoteID, err)
			report.Errors = append(report.Errors, ReportError{
				Phase:     PhaseDownload,
				RecordRef: fmt.Sprintf("remote_id=%s", rec.RemoteID),
				Message:   err.Error(),
			})
			report.Download.Failed++
			report.DownloadSuccess = false
			continue
		}
		if changed {
			report.Download.Processed++
		}
	}

	if err := tx.Commit(); err != nil {
		report.Errors = append(report.Errors, ReportError{
			Phase:   PhaseDownload,
			Message: fmt.Sprintf("failed to commit download transaction: %v", err),
		})
		report.DownloadSuccess = false
	}
}

// recordFromRow converts a remote row into a local record, skipping rows
// that are missing required data or that escaped the child filter. Both
// guards are defensive checks against producer defects, logged but not
// counted as failures.
func (e *engine) recordFromRow(table *schema.Table, childID string, row remote.Row) (*schema.Record, bool) {
	id := row.String("id")
	if id == "" || row.String("logged_at") == "" {
		e.logger.Printf("WARNING: Skipping remote %s row with missing id/timestamp", table.Kind)
		return nil, true
	}

	rec := &schema.Record{
		RemoteID: id,
		ChildID:  row.String("child_id"),
		LoggedAt: row.String("logged_at"),
		Fields:   make(map[string]string, len(table.Columns)),
	}

	if rec.ChildID != childID {
		// Should be unreachable given the child filter on the select.
		e.logger.Printf("WARNING: Skipping remote_id %s: child %s does not match pass scope %s",
			id, rec.ChildID, childID)
		return nil, true
	}

	for _, col := range table.Columns {
		value := row.String(col.Name)
		if value == "" {
			if col.Required {
				e.logger.Printf("WARNING: Skipping remote_id %s: missing %s", id, col.Name)
				return nil, true
			}
			continue
		}
		rec.Fields[col.Name] = value
	}

	return rec, false
}

// applyRow decrypts encrypted columns and upserts the record keyed on its
// remote id.
func (e *engine) applyRow(ctx context.Context, tx *sql.Tx, table *schema.Table, rec *schema.Record) (bool, error) {
	if e.cipher != nil {
		for _, col := range table.Columns {
			if !col.Encrypted {
				continue
			}
			value, ok := rec.Fields[col.Name]
			if !ok {
				continue
			}
			plain, err := e.cipher.Decrypt(value)
			if err != nil {
				return false, fmt.Errorf("failed to decrypt %s: %w", col.Name, err)
			}
			rec.Fields[col.Name] = plain
		}
	}

	return e.store.UpsertFromRemote(ctx, tx, table, rec)
}
