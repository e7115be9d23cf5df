// backend/src/handlers/import_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/parsers/tabular"
	"github.com/username/tradejournal/backend/src/pipeline"
	"github.com/username/tradejournal/backend/src/security/validation"
	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

// Bytes inspected by the content sniffing checks.
const sniffLength = 512

// multipartOverhead leaves room for the form fields around the file part.
const multipartOverhead = 1 << 20

type ImportHandler struct {
	importService  services.ImportService
	maxUploadBytes int64
}

func NewImportHandler(service services.ImportService, maxUploadBytes int64) *ImportHandler {
	return &ImportHandler{importService: service, maxUploadBytes: maxUploadBytes}
}

// uploadError is a request problem detected before the pipeline runs.
type uploadError struct {
	status  int
	message string
}

func (e *uploadError) Error() string { return e.message }

// HandlePreview runs an import without storing it.
func (h *ImportHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	req, err := h.readUpload(w, r)
	if err != nil {
		h.sendUploadError(w, r, err)
		return
	}

	result, err := h.importService.Preview(r.Context(), req)
	if err != nil {
		writeImportError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, result)
}

// HandleImport runs an import and stores the trades under the account in the URL.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}
	req, err := h.readUpload(w, r)
	if err != nil {
		h.sendUploadError(w, r, err)
		return
	}

	outcome, err := h.importService.Import(r.Context(), req, accountID)
	if err != nil {
		writeImportError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusCreated, outcome)
}

func (h *ImportHandler) HandleListImports(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}
	batches, err := h.importService.GetImports(r.Context(), accountID)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error retrieving import batches", "accountID", accountID, "error", err)
		utils.SendJSONError(w, "Error retrieving imports", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusOK, batches)
}

func (h *ImportHandler) sendUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var ue *uploadError
	if errors.As(err, &ue) {
		logger.WarnFromContext(r.Context(), "Rejected upload request", "status", ue.status, "error", ue.message)
		utils.SendJSONError(w, ue.message, ue.status)
		return
	}
	writeImportError(w, r, err)
}

// readUpload turns the multipart form into a pipeline request. Fields:
// file (required), broker (required), dateFormat, fileType and aliases, a
// JSON object mapping canonical field names to candidate column lists.
func (h *ImportHandler) readUpload(w http.ResponseWriter, r *http.Request) (pipeline.Request, error) {
	ctxLogger := logger.FromContext(r.Context())
	limitMB := h.maxUploadBytes / (1024 * 1024)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return pipeline.Request{}, &uploadError{http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large (max %d MB)", limitMB)}
		}
		ctxLogger.Warn("Failed to parse multipart form", "error", err)
		return pipeline.Request{}, &uploadError{http.StatusBadRequest, "Request must be multipart/form-data with a 'file' field"}
	}

	brokerKey := strings.TrimSpace(r.FormValue("broker"))
	if err := validation.ValidateBrokerKey(brokerKey); err != nil {
		return pipeline.Request{}, &uploadError{http.StatusBadRequest, err.Error()}
	}

	aliases, err := parseAliases(r.FormValue("aliases"))
	if err != nil {
		return pipeline.Request{}, &uploadError{http.StatusBadRequest, err.Error()}
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		ctxLogger.Warn("Failed to retrieve file from request", "error", err)
		return pipeline.Request{}, &uploadError{http.StatusBadRequest, "Failed to retrieve file from request. Ensure 'file' field is used."}
	}
	defer file.Close()

	if fileHeader.Size > h.maxUploadBytes {
		return pipeline.Request{}, &uploadError{http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large (max %d MB)", limitMB)}
	}

	if err := validation.ValidateClientContentType(fileHeader.Header.Get("Content-Type")); err != nil {
		return pipeline.Request{}, err
	}

	var fileType tabular.FileType
	if tag := strings.TrimSpace(r.FormValue("fileType")); tag != "" {
		fileType, err = tabular.ParseFileType(tag)
	} else {
		fileType, err = tabular.DetectFileType(fileHeader.Filename)
	}
	if err != nil {
		return pipeline.Request{}, err
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		ctxLogger.Error("Failed to read uploaded file", "filename", fileHeader.Filename, "error", err)
		return pipeline.Request{}, &uploadError{http.StatusBadRequest, "Failed to read uploaded file"}
	}
	if int64(len(data)) > h.maxUploadBytes {
		return pipeline.Request{}, &uploadError{http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large (max %d MB)", limitMB)}
	}

	head := data
	if len(head) > sniffLength {
		head = head[:sniffLength]
	}
	if err := validation.ValidateFileContent(fileType, head); err != nil {
		ctxLogger.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "fileType", fileType, "error", err)
		return pipeline.Request{}, err
	}

	ctxLogger.Info("Received import upload", "broker", brokerKey, "filename", fileHeader.Filename, "size", len(data), "fileType", fileType)
	return pipeline.Request{
		Data:          data,
		FileType:      fileType,
		Filename:      fileHeader.Filename,
		BrokerKey:     brokerKey,
		DateFormat:    utils.DateFormat(strings.ToUpper(strings.TrimSpace(r.FormValue("dateFormat")))),
		CustomAliases: aliases,
	}, nil
}

func parseAliases(raw string) (brokers.CustomAliases, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var aliases brokers.CustomAliases
	if err := json.Unmarshal([]byte(raw), &aliases); err != nil {
		return nil, fmt.Errorf("aliases must be a JSON object of column lists: %v", err)
	}
	return aliases, nil
}

func accountIDFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID := chi.URLParam(r, "accountID")
	if err := validation.ValidateAccountID(accountID); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return accountID, true
}
