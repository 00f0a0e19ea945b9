package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports the state of each backing service
// @Description Readiness report
type ReadyResponse struct {
	Status             string            `json:"status" example:"ready"`
	Checks             map[string]string `json:"checks"`
	EmbeddingAvailable bool              `json:"embedding_available"`
	LLMAvailable       bool              `json:"llm_available"`
}

// CredentialsRequest carries credentials when Basic auth is not used
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// DocumentListResponse wraps the reassembled documents
type DocumentListResponse struct {
	Documents []*domain.ChunkGroup `json:"documents"`
	Count     int                  `json:"count"`
}

// DeleteResponse reports how many chunks were removed
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// UploadErrorResponse is returned when only part of a document was written
type UploadErrorResponse struct {
	Error  string               `json:"error"`
	Result *domain.UploadResult `json:"result"`
}

// RetrieveResponse lists ranked candidates
type RetrieveResponse struct {
	Hits []*domain.SearchHit `json:"hits"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the liveness status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Probes the vector store, lock and query log backends and the AI services
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK

	for _, c := range s.checks {
		if err := c.Probe(ctx); err != nil {
			resp.Checks[c.Name] = err.Error()
			if c.Required {
				status = http.StatusServiceUnavailable
				resp.Status = "unavailable"
			}
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	if s.services != nil {
		avail := s.services.CheckAvailability(ctx)
		resp.EmbeddingAvailable = avail.Embedding
		resp.LLMAvailable = avail.LLM
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Auth endpoints

// handleIssueToken godoc
// @Summary      Issue bearer token
// @Description  Exchange Basic credentials (header or JSON body) for a JWT bearer token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      CredentialsRequest  false  "Credentials when no Basic header is sent"
// @Success      200      {object}  domain.TokenResponse
// @Failure      400      {object}  ErrorResponse  "Missing credentials"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials"
// @Router       /auth/token [post]
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		var req CredentialsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		username, password = req.Username, req.Password
	}

	resp, err := s.authService.IssueToken(r.Context(), username, password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListCategories godoc
// @Summary      List categories
// @Description  Returns the closed set of support categories
// @Tags         Documents
// @Produce      json
// @Security     BasicAuth
// @Security     BearerAuth
// @Success      200  {array}   string
// @Router       /categories [get]
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.Categories())
}

// Document endpoints

// handleUploadDocument godoc
// @Summary      Upload document
// @Description  Normalise, chunk and index a document under a category
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Security     BearerAuth
// @Param        request  body      domain.UploadRequest  true  "Document"
// @Success      201      {object}  domain.UploadResult
// @Success      207      {object}  UploadErrorResponse  "Some chunks were stored"
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse  "Document exists or group busy"
// @Failure      502      {object}  UploadErrorResponse  "Write failed and was rolled back"
// @Failure      503      {object}  ErrorResponse
// @Router       /documents [post]
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	var req domain.UploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.docService.Upload(r.Context(), req)
	if err != nil {
		s.writeUploadError(w, result, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleListDocuments godoc
// @Summary      List documents
// @Description  Reassemble stored documents, optionally within one category
// @Tags         Documents
// @Produce      json
// @Security     BasicAuth
// @Security     BearerAuth
// @Param        category  query     string  false  "Category filter"
// @Success      200       {object}  DocumentListResponse
// @Failure      400       {object}  ErrorResponse
// @Failure      503       {object}  ErrorResponse
// @Router       /documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	category := domain.Category(r.URL.Query().Get("category"))

	groups, err := s.docService.List(r.Context(), category)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if groups == nil {
		groups = []*domain.ChunkGroup{}
	}

	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: groups, Count: len(groups)})
}

// handleGetDocument godoc
// @Summary      Get document
// @Description  Reassemble the document that owns a chunk id
// @Tags         Documents
// @Produce      json
// @Security     BasicAuth
// @Security     BearerAuth
// @Param        id   path      string  true  "Chunk ID"
// @Success      200  {object}  domain.ChunkGroup
// @Failure      404  {object}  ErrorResponse
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	group, err := s.docService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

// handleUpdateDocument godoc
// @Summary      Replace document
// @Description  Delete the document that owns a chunk id and upload the new content
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Security     BearerAuth
// @Param        id       path      string                true  "Chunk ID"
// @Param        request  body      domain.UploadRequest  true  "Document"
// @Success      200      {object}  domain.UploadResult
// @Failure      404      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Router       /documents/{id} [put]
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req domain.UploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.docService.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeUploadError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleDeleteDocument godoc
// @Summary      Delete document
// @Description  Remove every chunk of the document that owns a chunk id. Unknown ids delete nothing.
// @Tags         Documents
// @Produce      json
// @Security     BasicAuth
// @Security     BearerAuth
// @Param        id   path      string  true  "Chunk ID"
// @Success      200  {object}  DeleteResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /documents/{id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	removed, err := s.docService.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: removed})
}

// Query endpoints

// handleQuery godoc
// @Summary      Ask a question
// @Description  Retrieve matching chunks in one category and synthesize an answer with sources
// @Tags         Query
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Security     BearerAuth
// @Param        request  body      domain.QueryRequest  true  "Question"
// @Success      200      {object}  domain.Answer
// @Failure      400      {object}  ErrorResponse
// @Failure      503      {object}  ErrorResponse  "Vector store unavailable"
// @Router       /query [post]
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user := ""
	if authCtx := GetAuthContext(r.Context()); authCtx != nil {
		user = authCtx.Username
	}

	answer, err := s.searchService.Answer(r.Context(), user, req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// handleRetrieve godoc
// @Summary      Retrieve candidates
// @Description  Return ranked chunks for a question without calling the language model
// @Tags         Query
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Security     BearerAuth
// @Param        request  body      domain.QueryRequest  true  "Question"
// @Success      200      {object}  RetrieveResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      503      {object}  ErrorResponse
// @Router       /retrieve [post]
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hits, err := s.searchService.Retrieve(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if hits == nil {
		hits = []*domain.SearchHit{}
	}

	writeJSON(w, http.StatusOK, RetrieveResponse{Hits: hits})
}

// Helper functions

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrContentTooShort):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrGroupBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		msg = "internal server error"
	}
	writeError(w, status, msg)
}

// writeUploadError reports partial writes with the result attached
func (s *Server) writeUploadError(w http.ResponseWriter, result *domain.UploadResult, err error) {
	if !errors.Is(err, domain.ErrPartialWrite) || result == nil {
		s.writeServiceError(w, err)
		return
	}

	status := http.StatusMultiStatus
	if result.RolledBack || result.ChunksStored == 0 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, UploadErrorResponse{Error: err.Error(), Result: result})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
