// Package api serves the collected datasets over HTTP as read-only JSON.
// The handlers expose the flat CSV layout directly: one route to list
// categories and their datasets, one to fetch a dataset's rows and a
// shortcut for the live snapshot.
package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Options configures a Handler.
type Options struct {
	Logger *log.Logger
}

// Handler serves dataset queries from a data directory.
type Handler struct {
	dataDir string
	logger  *log.Logger
}

// NewHandler creates a Handler rooted at dataDir.
func NewHandler(dataDir string, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{dataDir: dataDir, logger: logger}
}

// Routes returns the API route table.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/files", h.handleListFiles)
	mux.HandleFunc("GET /api/file/{category}/{name}", h.handleFile)
	mux.HandleFunc("GET /api/live", h.handleLive)
	mux.HandleFunc("GET /api/live_sentiment", h.handleLiveSentiment)
	return mux
}

// handleListFiles lists all CSV datasets grouped by category directory.
func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.dataDir)
	if err != nil {
		h.serverError(w, fmt.Errorf("read data dir: %w", err))
		return
	}

	structure := make(map[string][]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(h.dataDir, entry.Name()))
		if err != nil {
			h.serverError(w, fmt.Errorf("read category %s: %w", entry.Name(), err))
			return
		}
		names := []string{}
		for _, f := range files {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".csv") {
				names = append(names, f.Name())
			}
		}
		sort.Strings(names)
		structure[entry.Name()] = names
	}

	h.writeJSON(w, http.StatusOK, structure)
}

// handleFile returns one dataset's rows as JSON records.
func (h *Handler) handleFile(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	name := r.PathValue("name")

	if !validSegment(category) || !validSegment(name) {
		h.clientError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if !strings.HasSuffix(name, ".csv") {
		h.clientError(w, http.StatusBadRequest, "only .csv files are allowed")
		return
	}

	h.serveCSV(w, filepath.Join(h.dataDir, category, name), category+"/"+name)
}

// handleLive is a shortcut for the live snapshot dataset.
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	h.serveCSV(w, filepath.Join(h.dataDir, "live_data", "live_data.csv"), "live_data.csv")
}

// handleLiveSentiment serves the weighted sentiment summary snapshot.
func (h *Handler) handleLiveSentiment(w http.ResponseWriter, r *http.Request) {
	h.serveCSV(w, filepath.Join(h.dataDir, "live_data", "live_sentiment.csv"), "live_sentiment.csv")
}

func (h *Handler) serveCSV(w http.ResponseWriter, path, label string) {
	records, err := readRecords(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			h.clientError(w, http.StatusNotFound, label+" not found")
			return
		}
		h.serverError(w, fmt.Errorf("read %s: %w", label, err))
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}

// readRecords reads a CSV file into one JSON-ready map per data row, keyed
// by the header columns.
func readRecords(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err == io.EOF {
		return []map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	records := []map[string]string{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		record := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		records = append(records, record)
	}

	return records, nil
}

// validSegment rejects path segments that could escape the data directory.
func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Printf("api: encode response: %v", err)
	}
}

func (h *Handler) clientError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.logger.Printf("api: %v", err)
	h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}
