package hxfield

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pthm/hxfield/lib/store"
)

// Handler returns the HTTP handler for the field endpoints:
//
//	GET  <prefix>/field?f=<ref>   current snapshot
//	POST <prefix>/update          value change
//	POST <prefix>/meta            meta merge
//	POST <prefix>/undo            revert the last change
//
// Mount it at the host's prefix:
//
//	http.Handle("/_f/", host.Handler())
//
// Mutating requests must carry HX-Request: true, which cross-origin forms
// cannot set.
func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+h.route("field"), h.serveField)
	mux.HandleFunc("POST "+h.route("update"), h.serveUpdate)
	mux.HandleFunc("POST "+h.route("meta"), h.serveMeta)
	mux.HandleFunc("POST "+h.route("undo"), h.serveUndo)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead && !IsHTMX(r) {
			h.logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("rejected non-HTMX request")
			http.Error(w, "Forbidden: HTMX request required", http.StatusForbidden)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// request is a resolved field endpoint call.
type request struct {
	key  store.Key
	ff   *formField
	form url.Values
}

func (h *Host) resolve(r *http.Request) (*request, error) {
	var ref string
	var form url.Values
	if r.Method == http.MethodGet {
		ref = r.URL.Query().Get(RefParam)
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, ErrInvalidFormat
		}
		form = make(url.Values, len(r.PostForm))
		for k, v := range r.PostForm {
			if k != RefParam {
				form[k] = v
			}
		}
		ref = r.PostForm.Get(RefParam)
	}

	key, err := h.decodeRef(ref)
	if err != nil {
		return nil, err
	}
	_, ff, err := h.lookupField(key)
	if err != nil {
		return nil, err
	}
	return &request{key: key, ff: ff, form: form}, nil
}

func (h *Host) serveField(w http.ResponseWriter, r *http.Request) {
	req, err := h.resolve(r)
	if err != nil {
		h.OnError(w, r, err)
		return
	}
	h.respond(w, r, req, http.StatusOK, nil)
}

func (h *Host) serveUpdate(w http.ResponseWriter, r *http.Request) {
	req, err := h.resolve(r)
	if err != nil {
		h.OnError(w, r, err)
		return
	}

	fld, err := h.current(req)
	if err != nil {
		h.OnError(w, r, err)
		return
	}
	e, err := h.reg.Lookup(string(req.ff.handle))
	if err != nil {
		h.OnError(w, r, err)
		return
	}

	if ch, ok := e.UI.(ChangeHandler); ok {
		err = ch.Change(r.Context(), fld, req.form)
	} else {
		err = h.defaultChange(r.Context(), req.ff, fld, req.form)
	}
	if h.rejected(w, r, req, err) {
		return
	}

	h.triggered(w, req, EventUpdated)
	h.respond(w, r, req, http.StatusOK, nil)
}

// defaultChange stores the submitted "value", run through the definition's
// Process when it has one.
func (h *Host) defaultChange(ctx context.Context, ff *formField, fld Field, form url.Values) error {
	var v any = form.Get("value")
	if p, ok := ff.def.(Processor); ok {
		var err error
		if v, err = p.Process(ctx, ff.config.Clone(), v); err != nil {
			return err
		}
	}
	return fld.Update(ctx, v)
}

func (h *Host) serveMeta(w http.ResponseWriter, r *http.Request) {
	req, err := h.resolve(r)
	if err != nil {
		h.OnError(w, r, err)
		return
	}

	e, err := h.reg.Lookup(string(req.ff.handle))
	if err != nil {
		h.OnError(w, r, err)
		return
	}
	var accepted map[string]bool
	if mk, ok := e.UI.(MetaKeyer); ok {
		accepted = make(map[string]bool)
		for _, k := range mk.MetaKeys() {
			accepted[k] = true
		}
	}

	partial := make(Meta, len(req.form))
	for k, vs := range req.form {
		if accepted != nil && !accepted[k] {
			h.OnError(w, r, fmt.Errorf("%w: %q", ErrMetaKeyRejected, k))
			return
		}
		if len(vs) == 1 {
			partial[k] = vs[0]
		} else {
			partial[k] = append([]string(nil), vs...)
		}
	}
	if _, err := h.store.UpdateMeta(r.Context(), req.key, partial); err != nil {
		h.OnError(w, r, err)
		return
	}

	h.triggered(w, req, EventMetaUpdated)
	h.respond(w, r, req, http.StatusOK, nil)
}

func (h *Host) serveUndo(w http.ResponseWriter, r *http.Request) {
	req, err := h.resolve(r)
	if err != nil {
		h.OnError(w, r, err)
		return
	}

	if _, err := h.store.Undo(r.Context(), req.key); err != nil {
		if errors.Is(err, store.ErrNothingToUndo) {
			h.respond(w, r, req, http.StatusConflict, []Flash{{Level: FlashInfo, Message: "Nothing to undo"}})
			return
		}
		h.OnError(w, r, err)
		return
	}

	h.triggered(w, req, EventUndone)
	h.respond(w, r, req, http.StatusOK, nil)
}

func (h *Host) current(req *request) (Field, error) {
	st, ok := h.store.Get(req.key)
	if !ok {
		return Field{}, ErrUnknownField
	}
	return h.snapshot(req.ff, st), nil
}

// rejected answers a change that failed. Rejected values re-render the field
// with status 422 and the message as a toast.
func (h *Host) rejected(w http.ResponseWriter, r *http.Request, req *request, err error) bool {
	if err == nil {
		return false
	}
	if ve, ok := asValidationError(err, req.ff.name); ok {
		h.metrics.RecordValidationError(string(req.ff.handle))
		h.logger.Debug().Str("field", req.key.String()).Str("reason", ve.Message).Msg("value rejected")
		h.respond(w, r, req, http.StatusUnprocessableEntity, []Flash{flashFor(ve)})
		return true
	}
	h.OnError(w, r, err)
	return true
}

func (h *Host) triggered(w http.ResponseWriter, req *request, event string) {
	st, ok := h.store.Get(req.key)
	if !ok {
		return
	}
	w.Header().Set("HX-Trigger", BuildTriggerHeader(event, map[string]any{
		"form":    req.key.Form,
		"field":   req.key.Field,
		"version": st.Version,
	}))
}

func (h *Host) respond(w http.ResponseWriter, r *http.Request, req *request, status int, flashes []Flash) {
	fld, err := h.current(req)
	if err != nil {
		h.OnError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := h.renderField(req.ff, fld).Render(r.Context(), w); err != nil {
		h.logger.Error().Err(err).Str("field", req.key.String()).Msg("render failed")
		return
	}
	if oob := RenderFlashesOOB(flashes); oob != "" {
		_, _ = io.WriteString(w, oob)
	}
}

func (h *Host) defaultOnError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Info().Err(err).Str("path", r.URL.Path).Msg("field request failed")
	switch {
	case IsNotFound(err):
		http.Error(w, "Not found", http.StatusNotFound)
	case IsDecryptionError(err), errors.Is(err, ErrInvalidFormat), errors.Is(err, ErrMetaKeyRejected):
		http.Error(w, "Bad request", http.StatusBadRequest)
	case errors.Is(err, store.ErrClosed):
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
