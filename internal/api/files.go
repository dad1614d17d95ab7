package api

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/starford/keyline/internal/checksum"
	"github.com/starford/keyline/internal/docservice"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/storage"
)

const maxImportBytes = 20 << 20 // 20 MB

// FileHandler serves compiled modules and accepts document uploads.
type FileHandler struct {
	svc     *docservice.Service
	exports storage.Provider
}

// NewFileHandler creates a handler. exports may be nil, in which case
// ServeExport always answers 404.
func NewFileHandler(svc *docservice.Service, exports storage.Provider) *FileHandler {
	return &FileHandler{svc: svc, exports: exports}
}

// safeName validates that name is a plain file name with no separators
// or traversal.
func safeName(name, ext string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if !strings.HasSuffix(name, ext) {
		return "", fmt.Errorf("filename must end with %s", ext)
	}
	return name, nil
}

// safeRel validates a slash-separated relative path under a storage root.
func safeRel(rel, ext string) (string, error) {
	cleaned := path.Clean("/" + rel)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(rel, "/") {
		return "", fmt.Errorf("invalid path: %s", rel)
	}
	for _, part := range strings.Split(cleaned, "/") {
		if strings.HasPrefix(part, ".") {
			return "", fmt.Errorf("invalid path: %s", rel)
		}
	}
	if !strings.HasSuffix(cleaned, ext) {
		return "", fmt.Errorf("path must end with %s", ext)
	}
	return cleaned, nil
}

// ServeExport handles GET /exports/*.
func (h *FileHandler) ServeExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		http.NotFound(w, r)
		return
	}
	rel, err := safeRel(documentPath(r), models.ScriptExt)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := h.exports.Read(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	sum := checksum.Sum(data)
	w.Header().Set("ETag", checksum.ETag(sum))
	if checksum.Matches(r.Header.Get("If-None-Match"), sum) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import handles POST /api/import (multipart/form-data, field "file",
// optional field "dir").
//
//	@Summary		Upload a saved document into the library
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Document file (*.am.json)"
//	@Param			dir		formData	string	false	"Target directory"
//	@Success		201		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *FileHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename, models.DocumentExt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	target := name
	if dir := strings.Trim(r.FormValue("dir"), "/"); dir != "" {
		target = dir + "/" + name
	}
	if _, err := safeRel(target, models.DocumentExt); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	doc, err := h.svc.CreateDocument(r.Context(), target, data)
	if err != nil {
		writeError(w, "import document", target, err)
		return
	}
	writeJSON(w, http.StatusCreated, ImportResponse{
		Path:     doc.Path,
		Checksum: doc.Checksum,
		Size:     int64(len(data)),
	})
}
