package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/menta2k/rx-reader/internal/utils"
	"github.com/menta2k/rx-reader/pkg/processing"
	"github.com/menta2k/rx-reader/pkg/types"
)

// uploadField is the multipart field holding the prescription image
const uploadField = "prescription"

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /read", s.handleReadPage)
	mux.HandleFunc("POST /api/read", s.handleReadAPI)
	mux.HandleFunc("GET /health", s.handleHealth)
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned by the JSON API on failure. Result carries the
// partial run when the failure happened after interpretation.
type ErrorResponse struct {
	Error  string        `json:"error"`
	Result *types.Result `json:"result,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, pageData{Formats: s.formats()})
}

func (s *Server) handleReadPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{Formats: s.formats()}

	upload, status, err := s.readUpload(w, r)
	if err != nil {
		data.Error = err.Error()
		s.renderPage(w, status, data)
		return
	}
	data.Filename = upload.filename

	result, err := s.reader.ReadBytes(r.Context(), upload.data, upload.filename)
	data.Result = result
	if err != nil {
		status = statusFor(err)
		data.Error = err.Error()
		s.logger.Error("prescription read failed", "file", upload.filename, "error", err)
		s.renderPage(w, status, data)
		return
	}
	s.renderPage(w, http.StatusOK, data)
}

func (s *Server) handleReadAPI(w http.ResponseWriter, r *http.Request) {
	upload, status, err := s.readUpload(w, r)
	if err != nil {
		writeJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := s.reader.ReadBytes(r.Context(), upload.data, upload.filename)
	if err != nil {
		s.logger.Error("prescription read failed", "file", upload.filename, "error", err)
		writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error(), Result: result})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type upload struct {
	filename string
	data     []byte
}

// readUpload extracts the prescription file from a multipart request and
// applies the upload size cap and the file type filter
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload, int, error) {
	// Leave room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return upload{}, http.StatusRequestEntityTooLarge,
				fmt.Errorf("upload exceeds %s", utils.FormatFileSize(s.maxUpload))
		}
		return upload{}, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err)
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return upload{}, http.StatusBadRequest, fmt.Errorf("missing %q file field", uploadField)
	}
	defer file.Close()

	name := utils.SanitizeFilename(filepath.Base(header.Filename))
	if !s.reader.Processor().Accepts(name) {
		return upload{}, http.StatusUnsupportedMediaType,
			fmt.Errorf("%w: %s", processing.ErrUnsupportedFormat, name)
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		return upload{}, http.StatusBadRequest, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxUpload {
		return upload{}, http.StatusRequestEntityTooLarge,
			fmt.Errorf("upload exceeds %s", utils.FormatFileSize(s.maxUpload))
	}
	return upload{filename: name, data: data}, http.StatusOK, nil
}

func (s *Server) formats() []string {
	return s.reader.Processor().Config().SupportedFormats
}

// statusFor maps a read error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, processing.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, processing.ErrImageTooSmall), errors.Is(err, processing.ErrInvalidImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, processing.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadGateway
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
