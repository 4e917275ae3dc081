package server

import (
	"errors"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"hlscache/internal/logging"
	"hlscache/internal/rendition"
	"hlscache/internal/services"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/MP2T"
)

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(chi.URLParam(r, "*"), "/")
	dir, file := path.Split(rest)
	dir = strings.TrimSuffix(dir, "/")
	settings := s.factory.Settings()

	switch {
	case dir == "" || file == "":
		s.notFound(w, r, "bare media path")
	case file == settings.MasterPlaylistName && strings.HasSuffix(dir, csmilSuffix):
		s.serveCSMILMaster(w, r, strings.TrimSuffix(dir, csmilSuffix))
	case file == settings.MasterPlaylistName:
		s.serveSingleMaster(w, r, dir)
	case file == settings.MediaPlaylistName:
		s.serveMediaPlaylist(w, r, dir)
	case strings.HasSuffix(file, ".ts"):
		s.serveSegment(w, r, dir, file)
	default:
		s.notFound(w, r, "unrecognized media path")
	}
}

func (s *Server) serveSingleMaster(w http.ResponseWriter, r *http.Request, rendDir string) {
	parent, file := path.Split(rendDir)
	key := path.Join(sanitizeDir(parent), sanitizeFile(file))
	ctx := services.WithRendition(r.Context(), key)

	agg, err := s.factory.Aggregator(key, []string{key})
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	master, err := agg.Serve(ctx)
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	s.sendFile(w, r, master, playlistContentType)
}

func (s *Server) serveCSMILMaster(w http.ResponseWriter, r *http.Request, set string) {
	req, ok := parseCSMIL(set)
	if !ok {
		s.notFound(w, r, "csmil request without renditions")
		return
	}
	ctx := services.WithRendition(r.Context(), req.group)

	agg, err := s.factory.Aggregator(req.group, req.keys, rendition.WithMasterName(req.masterName))
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	master, err := agg.Serve(ctx)
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	s.sendFile(w, r, master, playlistContentType)
}

func (s *Server) serveMediaPlaylist(w http.ResponseWriter, r *http.Request, rendDir string) {
	key := sanitizeDir(rendDir)
	ctx := services.WithRendition(r.Context(), key)

	unit, err := s.factory.Unit(key)
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	manifest, err := unit.ServeManifest(ctx)
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	s.sendFile(w, r, manifest, playlistContentType)
}

func (s *Server) serveSegment(w http.ResponseWriter, r *http.Request, rendDir, file string) {
	key := sanitizeDir(rendDir)
	name := sanitizeFile(file)
	ctx := services.WithRendition(r.Context(), key)

	unit, err := s.factory.Unit(key)
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	segment, err := unit.ServeSegment(ctx, name)
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	s.sendFile(w, r, segment, segmentContentType)
}

func (s *Server) sendFile(w http.ResponseWriter, r *http.Request, filePath, contentType string) {
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = services.Wrap(services.ErrNotFound, "server", "send", filePath, err)
		}
		s.fail(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, path.Base(filePath), info.ModTime(), f)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request, reason string) {
	logging.WithContext(r.Context(), s.logger).Debug("media request not routable",
		logging.String("path", r.URL.Path),
		logging.String("reason", reason),
	)
	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.logger)
	attrs := []logging.Attr{
		logging.String("path", r.URL.Path),
		logging.Int("status", status),
		logging.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "media request failed", "request_failed", attrs...)
	} else {
		logger.Info("media request rejected", logging.Args(attrs...)...)
	}
	http.Error(w, http.StatusText(status), status)
}
