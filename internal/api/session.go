package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keyline/internal/docservice"
	"github.com/starford/keyline/internal/models"
)

// intParam reads an integer URL parameter. On failure the response is
// written and false is returned.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid "+name))
		return 0, false
	}
	return n, true
}

func floatQuery(r *http.Request, name string, def float64) (float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	return f, err == nil
}

func (h *Handler) respond(w http.ResponseWriter, op, path string, v any, err error) {
	if err != nil {
		writeError(w, op, path, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// OpenSession handles GET /api/session.
//
//	@Summary		Open a document for editing and return its state
//	@Tags			session
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Success		200		{object}	docservice.EditResult
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session [get]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	p := sessionPath(r)
	res, err := h.svc.Open(r.Context(), p)
	h.respond(w, "open session", p, res, err)
}

// CloseSession handles DELETE /api/session.
//
//	@Summary		Close the editing session of a document
//	@Tags			session
//	@Param			path	query	string	true	"Document path"
//	@Success		204		"Session closed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session [delete]
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	p := sessionPath(r)
	if err := h.svc.CloseDocument(p); err != nil {
		writeError(w, "close session", p, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rename handles PUT /api/session/name.
//
//	@Summary		Rename a document
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string			true	"Document path"
//	@Param			body	body		RenameRequest	true	"New name"
//	@Success		200		{object}	docservice.EditResult
//	@Security		BearerAuth
//	@Router			/session/name [put]
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := sessionPath(r)
	res, err := h.svc.Rename(r.Context(), p, req.Name)
	h.respond(w, "rename", p, res, err)
}

// UpdateTimebar handles PATCH /api/session/timebar.
//
//	@Summary		Change the length or timescale of a document
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string			true	"Document path"
//	@Param			body	body		TimebarRequest	true	"Timebar fields"
//	@Success		200		{object}	docservice.EditResult
//	@Security		BearerAuth
//	@Router			/session/timebar [patch]
func (h *Handler) UpdateTimebar(w http.ResponseWriter, r *http.Request) {
	var req TimebarRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := sessionPath(r)
	res, err := h.svc.UpdateTimebar(r.Context(), p, req.toPatch())
	h.respond(w, "update timebar", p, res, err)
}

// AddTrack handles POST /api/session/tracks.
//
//	@Summary		Add a CSS track
//	@Tags			tracks
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string			true	"Document path"
//	@Param			body	body		AddTrackRequest	true	"Track"
//	@Success		200		{object}	docservice.EditResult
//	@Security		BearerAuth
//	@Router			/session/tracks [post]
func (h *Handler) AddTrack(w http.ResponseWriter, r *http.Request) {
	var req AddTrackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := sessionPath(r)
	res, err := h.svc.AddTrack(r.Context(), p, req.toInput())
	h.respond(w, "add track", p, res, err)
}

// UpdateTrack handles PATCH /api/session/tracks/{track}.
//
//	@Summary		Change track properties in one undo step
//	@Tags			tracks
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string				true	"Document path"
//	@Param			track	path		int					true	"Track index"
//	@Param			body	body		UpdateTrackRequest	true	"Track fields"
//	@Success		200		{object}	docservice.EditResult
//	@Security		BearerAuth
//	@Router			/session/tracks/{track} [patch]
func (h *Handler) UpdateTrack(w http.ResponseWriter, r *http.Request) {
	idx, ok := intParam(w, r, "track")
	if !ok {
		return
	}
	var req UpdateTrackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := sessionPath(r)
	res, err := h.svc.UpdateTrack(r.Context(), p, idx, req.toPatch())
	h.respond(w, "update track", p, res, err)
}

// RemoveTrack handles DELETE /api/session/tracks/{track}.
//
//	@Summary		Remove a track
//	@Tags			tracks
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Param			track	path		int		true	"Track index"
//	@Success		200		{object}	docservice.EditResult
//	@Security		BearerAuth
//	@Router			/session/tracks/{track} [delete]
func (h *Handler) RemoveTrack(w http.ResponseWriter, r *http.Request) {
	idx, ok := intParam(w, r, "track")
	if !ok {
		return
	}
	p := sessionPath(r)
	res, err := h.svc.RemoveTrack(r.Context(), p, idx)
	h.respond(w, "remove track", p, res, err)
}

// MoveTrack handles POST /api/session/tracks/{track}/move.
//
//	@Summary		Move a track up or down the list
//	@Tags			tracks
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string				true	"Document path"
//	@Param			track	path		int					true	"Track index"
//	@Param			body	body		MoveTrackRequest	true	"Offset"
//	@Success		200		{object}	docservice.EditResult
//	@Security		BearerAuth
//	@Router			/session/tracks/{track}/move [post]
func (h *Handler) MoveTrack(w http.ResponseWriter, r *http.Request) {
	idx, ok := intParam(w, r, "track")
	if !ok {
		return
	}
	var req MoveTrackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := sessionPath(r)
	res, err := h.svc.MoveTrack(r.Context(), p, idx, req.Way)
	h.respond(w, "move track", p, res, err)
}

// SelectTrack handles POST /api/session/tracks/{track}/select. A negative
// index clears the selection.
//
//	@Summary		Select the current track
//	@Tags			tracks
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Param			track	path		int		true	"Track index"
//	@Success		200		{object}	docservice.EditResult
//	@Security		BearerAuth
//	@Router			/session/tracks/{track}/select [post]
func (h *Handler) SelectTrack(w http.ResponseWriter, r *http.Request) {
	idx, ok := intParam(w, r, "track")
	if !ok {
		return
	}
	p := sessionPath(r)
	res, err := h.svc.SelectTrack(r.Context(), p, idx)
	h.respond(w, "select track", p, res, err)
}

// AddKey handles POST /api/session/tracks/{track}/keys.
//
//	@Summary		Insert a keyframe
//	@Tags			keys
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string			true	"Document path"
//	@Param			track	path		int				true	"Track index"
//	@Param			body	body		AddKeyRequest	true	"Keyframe"
//	@Success		200		{object}	docservice.EditResult
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/tracks/{track}/keys [post]
func (h *Handler) AddKey(w http.ResponseWriter, r *http.Request) {
	idx, ok := intParam(w, r, "track")
	if !ok {
		return
	}
	var req AddKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := sessionPath(r)
	res, err := h.svc.AddKey(r.Context(), p, idx, req.Param, req.key())
	h.respond(w, "add key", p, res, err)
}

// UpdateKey handles PATCH /api/session/tracks/{track}/keys/{param}/{key}.
// Value and ease are applied before time, each as its own undo step.
//
//	@Summary		Change a keyframe
//	@Tags			keys
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string				true	"Document path"
//	@Param			track	path		int					true	"Track index"
//	@Param			param	path		string				true	"Parameter name"
//	@Param			key		path		int					true	"Key index"
//	@Param			body	body		UpdateKeyRequest	true	"Keyframe fields"
//	@Success		200		{object}	docservice.EditResult
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/tracks/{track}/keys/{param}/{key} [patch]
func (h *Handler) UpdateKey(w http.ResponseWriter, r *http.Request) {
	idx, ok := intParam(w, r, "track")
	if !ok {
		return
	}
	key, ok := intParam(w, r, "key")
	if !ok {
		return
	}
	var req UpdateKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, param := sessionPath(r), chi.URLParam(r, "param")
	ctx := r.Context()

	var (
		res *docservice.EditResult
		err error
	)
	if req.Value != nil {
		if res, err = h.svc.SetKeyValue(ctx, p, idx, param, key, *req.Value); err != nil {
			writeError(w, "set key value", p, err)
			return
		}
	}
	if req.Ease != nil {
		if res, err = h.svc.SetKeyEase(ctx, p, idx, param, key, *req.Ease); err != nil {
			writeError(w, "set key ease", p, err)
			return
		}
	}
	if req.Time != nil {
		if res, err = h.svc.MoveKey(ctx, p, idx, param, key, *req.Time); err != nil {
			writeError(w, "move key", p, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// RemoveKey handles DELETE /api/session/tracks/{track}/keys/{param}/{key}.
//
//	@Summary		Remove a keyframe
//	@Tags			keys
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Param			track	path		int		true	"Track index"
//	@Param			param	path		string	true	"Parameter name"
//	@Param			key		path		int		true	"Key index"
//	@Success		200		{object}	docservice.EditResult
//	@Security		BearerAuth
//	@Router			/session/tracks/{track}/keys/{param}/{key} [delete]
func (h *Handler) RemoveKey(w http.ResponseWriter, r *http.Request) {
	idx, ok := intParam(w, r, "track")
	if !ok {
		return
	}
	key, ok := intParam(w, r, "key")
	if !ok {
		return
	}
	p := sessionPath(r)
	res, err := h.svc.RemoveKey(r.Context(), p, idx, chi.URLParam(r, "param"), key)
	h.respond(w, "remove key", p, res, err)
}

// SetEase handles PUT /api/session/eases/{id}.
//
//	@Summary		Add or replace an ease
//	@Tags			eases
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string		true	"Document path"
//	@Param			id		path		string		true	"Ease id"
//	@Param			body	body		EaseRequest	true	"Ease definition"
//	@Success		200		{object}	docservice.EditResult
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/eases/{id} [put]
func (h *Handler) SetEase(w http.ResponseWriter, r *http.Request) {
	var req EaseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := sessionPath(r)
	res, err := h.svc.SetEase(r.Context(), p, chi.URLParam(r, "id"), req.EaseDef)
	h.respond(w, "set ease", p, res, err)
}

// RemoveEase handles DELETE /api/session/eases/{id}.
//
//	@Summary		Remove an unused ease
//	@Tags			eases
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Param			id		path		string	true	"Ease id"
//	@Success		200		{object}	docservice.EditResult
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/eases/{id} [delete]
func (h *Handler) RemoveEase(w http.ResponseWriter, r *http.Request) {
	p := sessionPath(r)
	res, err := h.svc.RemoveEase(r.Context(), p, chi.URLParam(r, "id"))
	h.respond(w, "remove ease", p, res, err)
}

// SetTrigger handles PUT /api/session/triggers/{id}.
//
//	@Summary		Add or replace a trigger
//	@Tags			triggers
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string			true	"Document path"
//	@Param			id		path		string			true	"Trigger id"
//	@Param			body	body		TriggerRequest	true	"Trigger"
//	@Success		200		{object}	docservice.EditResult
//	@Security		BearerAuth
//	@Router			/session/triggers/{id} [put]
func (h *Handler) SetTrigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := sessionPath(r)
	def := models.TriggerDef{Time: req.Time, Script: req.Script}
	res, err := h.svc.SetTrigger(r.Context(), p, chi.URLParam(r, "id"), def)
	h.respond(w, "set trigger", p, res, err)
}

// RemoveTrigger handles DELETE /api/session/triggers/{id}.
//
//	@Summary		Remove a trigger
//	@Tags			triggers
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Param			id		path		string	true	"Trigger id"
//	@Success		200		{object}	docservice.EditResult
//	@Security		BearerAuth
//	@Router			/session/triggers/{id} [delete]
func (h *Handler) RemoveTrigger(w http.ResponseWriter, r *http.Request) {
	p := sessionPath(r)
	res, err := h.svc.RemoveTrigger(r.Context(), p, chi.URLParam(r, "id"))
	h.respond(w, "remove trigger", p, res, err)
}

// Undo handles POST /api/session/undo.
//
//	@Summary		Undo the last edit
//	@Tags			session
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Success		200		{object}	docservice.EditResult
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	p := sessionPath(r)
	res, err := h.svc.Undo(r.Context(), p)
	h.respond(w, "undo", p, res, err)
}

// Redo handles POST /api/session/redo.
//
//	@Summary		Redo the last undone edit
//	@Tags			session
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Success		200		{object}	docservice.EditResult
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/redo [post]
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	p := sessionPath(r)
	res, err := h.svc.Redo(r.Context(), p)
	h.respond(w, "redo", p, res, err)
}

// Magnets handles GET /api/session/magnets. With ?at= the time is
// snapped onto the nearest magnet within ?radius= pixels.
//
//	@Summary		List magnet points or snap a time to them
//	@Tags			session
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Param			at		query		number	false	"Time to snap"
//	@Param			radius	query		number	false	"Snap radius in pixels"
//	@Success		200		{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/session/magnets [get]
func (h *Handler) Magnets(w http.ResponseWriter, r *http.Request) {
	p := sessionPath(r)
	points, err := h.svc.Magnets(r.Context(), p)
	if err != nil {
		writeError(w, "magnets", p, err)
		return
	}
	body := map[string]any{"points": points}
	if r.URL.Query().Has("at") {
		at, ok1 := floatQuery(r, "at", 0)
		radius, ok2 := floatQuery(r, "radius", 8)
		if !ok1 || !ok2 {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid at or radius"))
			return
		}
		snapped, err := h.svc.Snap(r.Context(), p, at, radius)
		if err != nil {
			writeError(w, "snap", p, err)
			return
		}
		body["snapped"] = snapped
	}
	writeJSON(w, http.StatusOK, body)
}

// Compile handles GET /api/session/compile.
//
//	@Summary		Compile a document into a playback module
//	@Tags			compile
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Param			module	query		string	false	"Module name"
//	@Success		200		{object}	docservice.CompileOutput
//	@Security		BearerAuth
//	@Router			/session/compile [get]
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("module")
	if module != "" && !moduleName.MatchString(module) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid module name"))
		return
	}
	p := sessionPath(r)
	out, err := h.svc.Compile(r.Context(), p, module)
	h.respond(w, "compile", p, out, err)
}

// Export handles POST /api/session/export.
//
//	@Summary		Compile a document and write it to the exports directory
//	@Tags			compile
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string			true	"Document path"
//	@Param			body	body		ExportRequest	false	"Module options"
//	@Success		200		{object}	docservice.ExportResult
//	@Security		BearerAuth
//	@Router			/session/export [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	p := sessionPath(r)
	out, err := h.svc.Export(r.Context(), p, req.Module)
	h.respond(w, "export", p, out, err)
}

// Play handles POST /api/session/play.
//
//	@Summary		Start preview playback
//	@Tags			preview
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Success		200		{object}	docservice.PreviewState
//	@Security		BearerAuth
//	@Router			/session/play [post]
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	p := sessionPath(r)
	st, err := h.svc.Play(r.Context(), p)
	h.respond(w, "play", p, st, err)
}

// Pause handles POST /api/session/pause.
//
//	@Summary		Pause preview playback
//	@Tags			preview
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Success		200		{object}	docservice.PreviewState
//	@Security		BearerAuth
//	@Router			/session/pause [post]
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	p := sessionPath(r)
	st, err := h.svc.Pause(r.Context(), p)
	h.respond(w, "pause", p, st, err)
}

// Seek handles POST /api/session/seek.
//
//	@Summary		Move the preview playhead
//	@Tags			preview
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string		true	"Document path"
//	@Param			body	body		SeekRequest	true	"Time"
//	@Success		200		{object}	docservice.PreviewState
//	@Security		BearerAuth
//	@Router			/session/seek [post]
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := sessionPath(r)
	st, err := h.svc.Seek(r.Context(), p, req.Time)
	h.respond(w, "seek", p, st, err)
}

// Preview handles GET /api/session/preview. With ?at= only the styles at
// that time are returned.
//
//	@Summary		Get the preview state and current styles
//	@Tags			preview
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Param			at		query		number	false	"Time to evaluate"
//	@Success		200		{object}	docservice.PreviewState
//	@Security		BearerAuth
//	@Router			/session/preview [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	p := sessionPath(r)
	if r.URL.Query().Has("at") {
		at, ok := floatQuery(r, "at", 0)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid at"))
			return
		}
		styles, err := h.svc.StyleAt(r.Context(), p, at)
		h.respond(w, "styles", p, map[string]any{"time": at, "styles": styles}, err)
		return
	}
	st, err := h.svc.Preview(r.Context(), p)
	h.respond(w, "preview", p, st, err)
}
