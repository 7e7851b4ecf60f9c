package gallery

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"path"
	"strings"
)

//go:embed templates/*.gohtml
var tplFS embed.FS

//go:embed all:static
var staticFS embed.FS

// skeletonCards is how many placeholder cards the loading grid shows.
const skeletonCards = 6

// GridView is what the memories grid renders: the loading skeleton, the
// empty state, or the cards.
type GridView struct {
	Loading  bool
	Notice   string
	Memories []Memory
}

type PlaylistView struct {
	Notice string
	Tracks []Track
}

type pageData struct {
	Grid        GridView
	Playlist    PlaylistView
	MaxUploadMB int64
}

func parseTemplates() *template.Template {
	funcs := template.FuncMap{
		"duration": formatDuration,
		"skeleton": func() []int { return make([]int, skeletonCards) },
		"untitled": func(s string) string {
			if strings.TrimSpace(s) == "" {
				return "Sin título"
			}
			return s
		},
	}
	return template.Must(template.New("gallery").Funcs(funcs).ParseFS(tplFS, "templates/*.gohtml"))
}

func (s *Server) gridView(ctx context.Context) GridView {
	memories, err := s.lib.ListMemories(ctx)
	if err != nil {
		s.logger.Error("list memories", "err", err)
		return GridView{Loading: true, Notice: "No se pudieron cargar los recuerdos"}
	}
	return GridView{Memories: memories}
}

func (s *Server) playlistView(ctx context.Context) PlaylistView {
	tracks, err := s.lib.ListTracks(ctx)
	if err != nil {
		s.logger.Error("list tracks", "err", err)
		return PlaylistView{Notice: "No se pudo cargar la música"}
	}
	return PlaylistView{Tracks: tracks}
}

// GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "page", pageData{
		Grid:        s.gridView(r.Context()),
		Playlist:    s.playlistView(r.Context()),
		MaxUploadMB: s.opts.MaxUploadBytes >> 20,
	})
}

// GET /fragments/memories
func (s *Server) handleMemoriesFragment(w http.ResponseWriter, r *http.Request) {
	s.render(w, "grid", s.gridView(r.Context()))
}

// GET /fragments/playlist
func (s *Server) handlePlaylistFragment(w http.ResponseWriter, r *http.Request) {
	s.render(w, "playlist", s.playlistView(r.Context()))
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.tpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render", "template", name, "err", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// GET /static/*
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(r.URL.Path, "/static/")
	b, err := staticFS.ReadFile(path.Join("static", p))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	switch path.Ext(p) {
	case ".js":
		w.Header().Set("Content-Type", "application/javascript")
	case ".css":
		w.Header().Set("Content-Type", "text/css")
	case ".svg":
		w.Header().Set("Content-Type", "image/svg+xml")
	}
	_, _ = w.Write(b)
}

// formatDuration renders milliseconds as m:ss; unknown durations are blank.
func formatDuration(ms int) string {
	if ms <= 0 {
		return ""
	}
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
