package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 1000
	storeTimeout       = 5 * time.Second
)

// StateSource exposes the cursor of the running job.
type StateSource interface {
	State() crawler.CrawlState
	Done() bool
}

// StatusHandler serves read-only views of the job.
type StatusHandler struct {
	state   StateSource
	records crawler.OutputStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewStatusHandler wires the state source, the Output Store, and the logger.
func NewStatusHandler(state StateSource, records crawler.OutputStore, logger *zap.Logger) *StatusHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusHandler{
		state:   state,
		records: records,
		timeout: storeTimeout,
		logger:  logger,
	}
}

type stateDTO struct {
	crawler.CrawlState
	Complete bool `json:"complete"`
}

// GetState handles GET /v1/state.
func (h *StatusHandler) GetState(w http.ResponseWriter, _ *http.Request) {
	if h.state == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "state unavailable")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stateDTO{CrawlState: h.state.State(), Complete: h.state.Done()})
}

// ListRecords handles GET /v1/records?failed=&limit=&offset=. It returns
// {"total": n, "records": [...]} where total counts the matching records
// before paging.
func (h *StatusHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "output store unavailable")
		return
	}
	failedOnly, err := parseBool(r, "failed")
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultRecordLimit, maxRecordLimit)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	records, err := h.records.List(ctx)
	if err != nil {
		h.logger.Error("list records failed", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "failed to list records")
		return
	}
	if failedOnly {
		records = filterFailed(records)
	}
	total := len(records)
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"total":   total,
		"records": page(records, limit, offset),
	})
}

func filterFailed(records []crawler.FieldRecord) []crawler.FieldRecord {
	out := make([]crawler.FieldRecord, 0)
	for _, rec := range records {
		if rec.Failed() {
			out = append(out, rec)
		}
	}
	return out
}

func page(records []crawler.FieldRecord, limit, offset int) []crawler.FieldRecord {
	if offset >= len(records) {
		return []crawler.FieldRecord{}
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}

func parseBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func parseLimitOffset(r *http.Request, defLimit, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := defLimit
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if v > maxLimit {
			v = maxLimit
		}
		limit = v
	}
	offset := 0
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = v
	}
	return limit, offset, nil
}
