package sync

import "fmt"

// Phase names used in ReportError entries.
const (
	PhaseUpload   = "upload"
	PhaseDownload = "download"
)

// UploadStats accounts the upload phase of one pass.
type UploadStats struct {
	// Succeeded is the number of pending records now linked to a remote
	// row.
	Succeeded int `json:"succeeded"`

	// Failed is the number of pending records whose upload was rejected;
	// they remain pending and are retried next pass.
	Failed int `json:"failed"`

	// TotalPending is how many pending records the pass found.
	TotalPending int `json:"total_pending"`
}

// DownloadStats accounts the download phase of one pass.
type DownloadStats struct {
	// Processed is the number of remote rows whose upsert changed local
	// state.
	Processed int `json:"processed"`

	// Failed is the number of remote rows whose upsert raised an error.
	Failed int `json:"failed"`

	// TotalReceived is how many rows the remote store returned.
	TotalReceived int `json:"total_received"`
}

// ReportError describes one failed transfer.
type ReportError struct {
	// Phase is PhaseUpload or PhaseDownload.
	Phase string `json:"phase"`

	// RecordRef identifies the record, e.g. "local_id=12" or
	// "remote_id=9f3c...".
	RecordRef string `json:"record_ref"`

	// Message is the underlying error text.
	Message string `json:"message"`
}

// Report is the structured result of one reconciliation pass. The caller
// decides retry policy from it; the engine never retries on its own.
type Report struct {
	// UploadSuccess is true iff no pending record failed to upload.
	UploadSuccess bool `json:"upload_success"`

	// DownloadSuccess is true iff no remote row failed to apply.
	DownloadSuccess bool `json:"download_success"`

	Upload   UploadStats   `json:"upload_stats"`
	Download DownloadStats `json:"download_stats"`

	// Errors lists every failed transfer in the order encountered.
	Errors []ReportError `json:"errors"`
}

// Clean reports whether the pass completed with no failures in either phase.
func (r *Report) Clean() bool {
	return r.UploadSuccess && r.DownloadSuccess
}

// SetupError reports that a pass could not begin because no child scope was
// provided. It is raised before any I/O; the caller recovers by re-running
// the child-selection flow.
type SetupError struct {
	Reason string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("sync setup failed: %s", e.Reason)
}
