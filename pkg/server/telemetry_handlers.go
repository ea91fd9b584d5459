package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"outpost-hq/warden/pkg/telemetry"
)

// summaryEventLimit bounds how many events per kind feed a summary. The
// summary is a view, recomputed on every request; this keeps it cheap on
// very large stores.
const summaryEventLimit = 10000

func (s *Server) handleIngestTelemetry(w http.ResponseWriter, r *http.Request) {
	var batch telemetry.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	saved := map[string]int{}

	if len(batch.SyscallEvents) > 0 {
		for i := range batch.SyscallEvents {
			if batch.SyscallEvents[i].AppID == "" {
				batch.SyscallEvents[i].AppID = batch.AppID
			}
			if batch.SyscallEvents[i].ID == "" {
				batch.SyscallEvents[i].ID = uuid.New().String()
			}
		}
		if err := s.deps.Store.SaveSyscallEvents(batch.SyscallEvents); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save syscall events", err.Error())
			return
		}
		saved["syscall_events"] = len(batch.SyscallEvents)
		s.recordIngest(string(telemetry.KindSyscall), len(batch.SyscallEvents))
	}

	if len(batch.NetworkEvents) > 0 {
		for i := range batch.NetworkEvents {
			if batch.NetworkEvents[i].AppID == "" {
				batch.NetworkEvents[i].AppID = batch.AppID
			}
			if batch.NetworkEvents[i].ID == "" {
				batch.NetworkEvents[i].ID = uuid.New().String()
			}
		}
		if err := s.deps.Store.SaveNetworkEvents(batch.NetworkEvents); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save network events", err.Error())
			return
		}
		saved["network_events"] = len(batch.NetworkEvents)
		s.recordIngest(string(telemetry.KindNetwork), len(batch.NetworkEvents))
	}

	if len(batch.FileEvents) > 0 {
		for i := range batch.FileEvents {
			if batch.FileEvents[i].AppID == "" {
				batch.FileEvents[i].AppID = batch.AppID
			}
			if batch.FileEvents[i].ID == "" {
				batch.FileEvents[i].ID = uuid.New().String()
			}
		}
		if err := s.deps.Store.SaveFileEvents(batch.FileEvents); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save file events", err.Error())
			return
		}
		saved["file_events"] = len(batch.FileEvents)
		s.recordIngest(string(telemetry.KindFile), len(batch.FileEvents))
	}

	writeJSON(w, http.StatusCreated, map[string]any{"status": "ingested", "saved": saved})
}

func (s *Server) recordIngest(kind string, count int) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordIngest(kind, count)
	}
}

func (s *Server) handleTelemetrySummary(w http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("app_id")

	syscalls, err := s.deps.Store.ListSyscallEvents(appID, summaryEventLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load syscall events", err.Error())
		return
	}
	network, err := s.deps.Store.ListNetworkEvents(appID, summaryEventLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load network events", err.Error())
		return
	}
	files, err := s.deps.Store.ListFileEvents(appID, summaryEventLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load file events", err.Error())
		return
	}

	summary := telemetry.Summarize(telemetry.Collect(syscalls, network, files), telemetry.SummaryOptions{
		AppID: appID,
		TopN:  s.cfg.Telemetry.SummaryTopN,
	})
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleNetworkEvents(w http.ResponseWriter, r *http.Request) {
	appID, limit := eventQuery(r)
	events, err := s.deps.Store.ListNetworkEvents(appID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get network events", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (s *Server) handleSyscallEvents(w http.ResponseWriter, r *http.Request) {
	appID, limit := eventQuery(r)
	events, err := s.deps.Store.ListSyscallEvents(appID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get syscall events", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (s *Server) handleFileEvents(w http.ResponseWriter, r *http.Request) {
	appID, limit := eventQuery(r)
	events, err := s.deps.Store.ListFileEvents(appID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get file events", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// eventQuery extracts the shared app_id and limit query parameters.
func eventQuery(r *http.Request) (string, int) {
	appID := r.URL.Query().Get("app_id")
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}
	return appID, limit
}
