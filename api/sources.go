package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/synapse-ai/synapse/internal/source"
	"github.com/synapse-ai/synapse/internal/upload"
)

// maxUploadMemory bounds the multipart form parse. Files beyond this
// spill to temp files; the per-file limit is enforced separately.
const maxUploadMemory = 32 << 20

type sourceJSON struct {
	ID            uuid.UUID   `json:"id"`
	Type          source.Type `json:"type"`
	Name          string      `json:"name"`
	DocumentCount int         `json:"documentCount"`
	SyncedAt      *time.Time  `json:"syncedAt"`
	CreatedAt     time.Time   `json:"createdAt"`
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request, userID string) {
	items, err := s.sources.List(r.Context(), userID)
	if err != nil {
		s.logger.Error("listing sources failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}

	out := make([]sourceJSON, len(items))
	for i, it := range items {
		out[i] = sourceJSON{
			ID:            it.ID,
			Type:          it.Type,
			Name:          it.Name,
			DocumentCount: it.DocumentCount,
			SyncedAt:      it.SyncedAt,
			CreatedAt:     it.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	err := s.sources.Delete(r.Context(), id, userID)
	if errors.Is(err, source.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found", codeNotFound)
		return
	}
	if err != nil {
		s.logger.Error("deleting source failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleConnectSource registers a notion or slack source from an access
// token. File sources are created through the upload endpoint instead.
func (s *Server) handleConnectSource(w http.ResponseWriter, r *http.Request, userID string) {
	typ, err := source.ParseType(r.PathValue("type"))
	if err != nil || typ == source.TypeFile {
		writeError(w, http.StatusBadRequest, "Unsupported source type", codeBadRequest)
		return
	}

	var req struct {
		AccessToken string `json:"accessToken"`
		Name        string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", codeBadRequest)
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		writeFieldErrors(w, map[string]string{"accessToken": "Access token is required"})
		return
	}

	name := req.Name
	if name == "" {
		name = s.defaultSourceName(r.Context(), typ, req.AccessToken)
	}

	src, err := s.sources.Create(r.Context(), userID, typ, name, req.AccessToken, nil)
	if err != nil {
		s.logger.Error("creating source failed", "user_id", userID, "type", typ, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":   src.ID,
		"type": src.Type,
		"name": src.Name,
	})
}

// defaultSourceName names a source when the client did not. For Slack the
// workspace name is looked up with the token; a lookup failure falls back
// to a generic name rather than failing the connect.
func (s *Server) defaultSourceName(ctx context.Context, typ source.Type, accessToken string) string {
	if typ != source.TypeSlack {
		return "Notion Workspace"
	}
	if s.slackNamer != nil {
		name, err := s.slackNamer.WorkspaceName(ctx, accessToken)
		if err != nil {
			s.logger.Warn("workspace name lookup failed", "error", err)
		} else if name != "" {
			return name
		}
	}
	return "Slack Workspace"
}

func (s *Server) handleSyncSource(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	src, err := s.sources.Get(r.Context(), id, userID)
	if errors.Is(err, source.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found", codeNotFound)
		return
	}
	if err != nil {
		s.logger.Error("getting source failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}
	if src.Type == source.TypeFile {
		writeError(w, http.StatusBadRequest, "File sources cannot be re-synced; upload the files again", codeBadRequest)
		return
	}

	result, err := s.pipeline.Sync(r.Context(), src)
	if err != nil {
		s.logger.Error("sync failed", "source_id", id, "type", src.Type, "error", err)
		writeError(w, http.StatusInternalServerError, "Sync failed", codeInternal)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleUpload ingests uploaded files as a new file source. The whole
// batch is validated before anything is stored.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, userID string) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", codeBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files, err := readUploadedFiles(r.MultipartForm.File["files"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read uploaded files", codeBadRequest)
		return
	}

	batch, err := upload.NewBatch(files)
	if err != nil {
		if upload.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error(), codeValidation)
			return
		}
		s.logger.Error("building upload batch failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}

	src, err := s.sources.Create(r.Context(), userID, source.TypeFile, batch.SourceName(), "local", map[string]string{
		"fileCount": strconv.Itoa(batch.Len()),
		"fileNames": strings.Join(batch.FileNames(), ", "),
	})
	if err != nil {
		s.logger.Error("creating file source failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}

	result, err := s.pipeline.SyncWith(r.Context(), src, batch)
	if err != nil {
		if upload.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error(), codeValidation)
			return
		}
		s.logger.Error("upload ingestion failed", "source_id", src.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"sourceId":       src.ID,
		"filesProcessed": result.DocumentsSynced,
		"chunksCreated":  result.ChunksStored,
	})
}

func readUploadedFiles(headers []*multipart.FileHeader) ([]upload.File, error) {
	files := make([]upload.File, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, upload.File{
			Name: h.Filename,
			Size: h.Size,
			Data: data,
		})
	}
	return files, nil
}
