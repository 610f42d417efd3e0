// backend/src/handlers/backup_handler.go
package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/security/validation"
	"github.com/username/easyledger/backend/src/services"
	"github.com/username/easyledger/backend/src/state"
)

type BackupHandler struct {
	ledger        *state.Coordinator
	backupService services.BackupService
	reportService services.ReportService
	maxBytes      int64
}

func NewBackupHandler(ledger *state.Coordinator, backupService services.BackupService, reportService services.ReportService, maxBytes int64) *BackupHandler {
	return &BackupHandler{
		ledger:        ledger,
		backupService: backupService,
		reportService: reportService,
		maxBytes:      maxBytes,
	}
}

// HandleExportBackup downloads the whole ledger as a JSON snapshot.
func (h *BackupHandler) HandleExportBackup(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	backup, err := h.backupService.Export(r.Context(), &buf)
	if err != nil {
		sendError(w, r, "export backup", err)
		return
	}
	filename := fmt.Sprintf("easyledger-backup-%s.json", backup.ExportedAt.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.FromContext(r.Context()).Warn("Backup response interrupted", "error", err)
	}
}

type importResponse struct {
	Accounts     int `json:"accounts"`
	Categories   int `json:"categories"`
	Transactions int `json:"transactions"`
}

// HandleImportBackup replaces the ledger with an uploaded snapshot, sent as
// the "file" field of a multipart form. The client-declared type is checked
// first, then the leading bytes, then the document itself.
func (h *BackupHandler) HandleImportBackup(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	if h.maxBytes > 0 {
		// Leave room for the multipart envelope around the file.
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+64*1024)
	}
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		ctxLogger.Warn("Failed to parse multipart form or request too large", "error", err, "limit", h.maxBytes)
		sendJSONError(w, fmt.Sprintf("Failed to read the upload or the file is too large (max %d bytes)", h.maxBytes), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		ctxLogger.Warn("Failed to retrieve file from request", "error", err)
		sendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if h.maxBytes > 0 && fileHeader.Size > h.maxBytes {
		ctxLogger.Warn("Uploaded backup too large", "fileSize", fileHeader.Size, "limit", h.maxBytes)
		sendError(w, r, "import backup", fmt.Errorf("%w (%d bytes)", services.ErrBackupTooLarge, h.maxBytes))
		return
	}
	if err := validation.ValidateBackupContentType(fileHeader.Header.Get("Content-Type")); err != nil {
		sendError(w, r, "import backup", err)
		return
	}
	if err := validation.ValidateBackupContent(file); err != nil {
		sendError(w, r, "import backup", err)
		return
	}

	ctxLogger.Info("Processing backup import", "filename", fileHeader.Filename, "size", fileHeader.Size)
	backup, err := h.backupService.Import(r.Context(), file)
	if err != nil {
		sendError(w, r, "import backup", err)
		return
	}
	sendJSON(w, importResponse{
		Accounts:     len(backup.Accounts),
		Categories:   len(backup.Categories),
		Transactions: len(backup.Transactions),
	}, http.StatusOK)
}

// HandleClearData wipes the ledger back to the seeded categories.
func (h *BackupHandler) HandleClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.ClearData(r.Context()); err != nil {
		sendError(w, r, "clear data", err)
		return
	}
	logger.FromContext(r.Context()).Info("Ledger cleared")
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetSummary reports totals for one account over an optional date range.
func (h *BackupHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := validation.ParseOptionalDate(q.Get("startDate"), "startDate")
	if err != nil {
		sendError(w, r, "build summary", err)
		return
	}
	end, err := validation.ParseOptionalDate(q.Get("endDate"), "endDate")
	if err != nil {
		sendError(w, r, "build summary", err)
		return
	}

	summary, err := h.reportService.GetSummary(r.Context(), q.Get("accountId"), start, end)
	if err != nil {
		sendError(w, r, "build summary", err)
		return
	}
	sendJSON(w, summary, http.StatusOK)
}
