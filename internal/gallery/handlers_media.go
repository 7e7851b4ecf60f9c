package gallery

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
)

// parseUpload reads the multipart form of a create request. A missing file
// yields an Upload with a nil Body so the Library reports it.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (Upload, func(), bool) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return Upload{}, nil, false
		}
		writeKindError(w, http.StatusBadRequest, "validation", "invalid form")
		return Upload{}, nil, false
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return Upload{}, cleanup, true
	}
	if err != nil {
		cleanup()
		writeKindError(w, http.StatusBadRequest, "validation", "invalid file")
		return Upload{}, nil, false
	}

	up := Upload{
		Body:        file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}
	return up, func() {
		_ = file.Close()
		cleanup()
	}, true
}

// GET /api/memories
func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	out, err := s.lib.ListMemories(r.Context())
	if err != nil {
		s.writeLibraryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/memories
func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	up, done, ok := s.parseUpload(w, r)
	if !ok {
		return
	}
	defer done()

	m, err := s.lib.AddMemory(r.Context(), up, r.FormValue("title"), r.FormValue("description"))
	if err != nil {
		s.writeLibraryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// DELETE /api/memories/{id}
func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	s.writeDeleteResult(w, r, s.lib.DeleteMemory(r.Context(), chi.URLParam(r, "id")))
}

// GET /api/tracks
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	out, err := s.lib.ListTracks(r.Context())
	if err != nil {
		s.writeLibraryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/tracks
func (s *Server) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	up, done, ok := s.parseUpload(w, r)
	if !ok {
		return
	}
	defer done()

	t, err := s.lib.AddTrack(r.Context(), up, r.FormValue("title"), r.FormValue("artist"))
	if err != nil {
		s.writeLibraryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// DELETE /api/tracks/{id}
func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	s.writeDeleteResult(w, r, s.lib.DeleteTrack(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) writeDeleteResult(w http.ResponseWriter, r *http.Request, err error) {
	var ce *CleanupError
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.As(err, &ce):
		writeJSON(w, http.StatusOK, map[string]string{
			"warning": "deleted, but the stored file could not be removed",
		})
	default:
		s.writeLibraryError(w, r, err)
	}
}

// GET /media/{bucket}/{name}
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	name := chi.URLParam(r, "name")

	f, err := s.opts.Media.Open(bucket, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	var modTime time.Time
	if st, err := f.Stat(); err == nil {
		modTime = st.ModTime()
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, name, modTime, f)
}
