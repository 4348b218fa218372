package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/pqgram/internal/errs"
	"github.com/dgallion1/pqgram/internal/parser"
	"github.com/dgallion1/pqgram/internal/pipeline"
	"github.com/dgallion1/pqgram/internal/pqgram"
)

var errTooLarge = errors.New("file exceeds max size")

// readUploads reads every file sent under the given multipart fields.
func (s *Server) readUploads(r *http.Request, fields ...string) ([]pipeline.Document, error) {
	var docs []pipeline.Document
	for _, field := range fields {
		for _, fh := range r.MultipartForm.File[field] {
			filename := sanitizeFilename(fh.Filename)
			if !parser.IsSupportedExtension(filename) {
				return nil, errs.New(errs.CodeUnsupported, "unsupported file type: %s", filepath.Ext(filename))
			}

			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", filename, err)
			}
			data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", filename, err)
			}
			if int64(len(data)) > s.cfg.MaxUploadBytes {
				return nil, fmt.Errorf("%s: %w (%d bytes)", filename, errTooLarge, s.cfg.MaxUploadBytes)
			}
			docs = append(docs, pipeline.Document{Name: filename, Data: data})
		}
	}
	return docs, nil
}

// parseMultipart applies the batch body limit and parses the form.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// shapeParams reads p, q and leaf_grams, falling back to the configured
// defaults.
func (s *Server) shapeParams(r *http.Request) (p, q int, leafGrams bool, err error) {
	if p, err = formInt(r, "p", s.cfg.P); err != nil {
		return
	}
	if q, err = formInt(r, "q", s.cfg.Q); err != nil {
		return
	}
	if leafGrams, err = formBool(r, "leaf_grams", s.cfg.LeafGrams); err != nil {
		return
	}
	err = pqgram.ValidateShape(p, q)
	return
}

func formInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.FormValue(key)
	if v == "" {
		return fallback, nil
	}
	return formIntValue(key, v)
}

func formIntValue(key, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errs.New(errs.CodeInvalidInput, "%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func formBool(r *http.Request, key string, fallback bool) (bool, error) {
	v := r.FormValue(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errs.New(errs.CodeInvalidInput, "%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

// statusFor maps an error to an HTTP status by its code.
func statusFor(err error) int {
	if errors.Is(err, errTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch errs.GetCode(err) {
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeUnsupported:
		return http.StatusUnsupportedMediaType
	case errs.CodeInvalidInput, errs.CodeInvalidShape, errs.CodeMalformedInput,
		errs.CodeLabelExtraction, errs.CodeLabelCollision:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	if code := errs.GetCode(err); code != "" {
		body["code"] = string(code)
	}
	writeJSON(w, statusFor(err), body)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
