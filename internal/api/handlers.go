package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keyline/internal/checksum"
	"github.com/starford/keyline/internal/docservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// documentPath extracts the document path from the URL (everything after
// /api/documents/). Encoded slashes such as scenes%2Fwalk.am.json are accepted.
func documentPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func setETag(w http.ResponseWriter, sum string) {
	if tag := checksum.ETag(sum); tag != "" {
		w.Header().Set("ETag", tag)
	}
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents with optional pagination
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated, name, path, length)
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListDocuments(r.Context(), limit, offset, q.Get("sort"))
	if err != nil {
		writeError(w, "list documents", "", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: total})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Get a single document by path
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	docservice.DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := documentPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.GetDocument(r.Context(), path)
	if err != nil {
		writeError(w, "get document", path, err)
		return
	}
	setETag(w, doc.Checksum)
	writeJSON(w, http.StatusOK, doc)
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create a new document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Document to create"
//	@Success		201		{object}	docservice.DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	doc, err := h.svc.CreateDocument(r.Context(), req.Path, req.Document)
	if err != nil {
		writeError(w, "create document", req.Path, err)
		return
	}
	setETag(w, doc.Checksum)
	writeJSON(w, http.StatusCreated, doc)
}

// UpdateDocument handles PUT /api/documents/*.
//
//	@Summary		Replace a document with optimistic concurrency
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string					true	"Document path"
//	@Param			If-Match	header		string					false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		UpdateDocumentRequest	true	"Replacement document"
//	@Success		200			{object}	docservice.DocumentDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [put]
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	path := documentPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	doc, err := h.svc.UpdateDocument(r.Context(), path, req.Document, r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, "update document", path, err)
		return
	}
	setETag(w, doc.Checksum)
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/*.
//
//	@Summary		Delete a document
//	@Tags			documents
//	@Param			path	path	string	true	"Document path"
//	@Success		204		"Document deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	path := documentPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteDocument(r.Context(), path); err != nil {
		writeError(w, "delete document", path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveDocument handles POST /api/move.
//
//	@Summary		Move a document to a new library path
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveRequest	true	"Source and target paths"
//	@Success		200		{object}	docservice.DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/move [post]
func (h *Handler) MoveDocument(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	doc, err := h.svc.MoveDocument(r.Context(), req.From, req.To)
	if err != nil {
		writeError(w, "move document", req.From, err)
		return
	}
	setETag(w, doc.Checksum)
	writeJSON(w, http.StatusOK, doc)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across track names, selectors and trigger scripts
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", "", err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(results))
}

// Targets handles GET /api/targets.
//
//	@Summary		List documents that animate a CSS selector
//	@Tags			search
//	@Produce		json
//	@Param			selector	query		string	true	"CSS selector"
//	@Success		200			{object}	TargetsResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/targets [get]
func (h *Handler) Targets(w http.ResponseWriter, r *http.Request) {
	sel := strings.TrimSpace(r.URL.Query().Get("selector"))
	if sel == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'selector' is required"))
		return
	}
	docs, err := h.svc.Targeting(r.Context(), sel)
	if err != nil {
		writeError(w, "targets", "", err)
		return
	}
	if docs == nil {
		docs = []string{}
	}
	writeJSON(w, http.StatusOK, TargetsResponse{Selector: sel, Documents: docs})
}
