package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/aristath/autodev/internal/agents"
	"github.com/aristath/autodev/internal/eventlog"
	"github.com/aristath/autodev/internal/orchestrator"
)

// maxStoryBytes bounds the POST /api/runs body.
const maxStoryBytes = 1 << 20

// AgentView is one row of GET /api/agents.
type AgentView struct {
	Name        string        `json:"name"`
	Address     string        `json:"address"`
	DisplayName string        `json:"display_name,omitempty"`
	Color       string        `json:"color,omitempty"`
	Icon        string        `json:"icon,omitempty"`
	Status      agents.Status `json:"status"`
}

// AgentsResponse is the body of GET /api/agents.
type AgentsResponse struct {
	Agents    []AgentView `json:"agents"`
	CheckedAt *time.Time  `json:"checked_at,omitempty"`
}

// RunAccepted is the body of a 202 from POST /api/runs.
type RunAccepted struct {
	StoryID   string `json:"story_id"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	statuses := map[string]agents.Status{}
	var resp AgentsResponse
	if s.cfg.Health != nil {
		statuses = s.cfg.Health.Snapshot()
		if t := s.cfg.Health.LastChecked(); !t.IsZero() {
			resp.CheckedAt = &t
		}
	}

	resp.Agents = []AgentView{}
	if s.cfg.Registry != nil {
		for _, d := range s.cfg.Registry.Agents() {
			resp.Agents = append(resp.Agents, AgentView{
				Name:        d.Name,
				Address:     d.Address,
				DisplayName: d.DisplayName,
				Color:       d.Color,
				Icon:        d.Icon,
				Status:      statuses[d.Name], // zero value is Unknown
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Pipeline.Status())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := []eventlog.Entry{}
	if s.cfg.Log != nil {
		entries = s.cfg.Log.Entries()
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result := s.cfg.Pipeline.Result()
	if result == nil {
		writeError(w, http.StatusNotFound, "no completed run")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var input orchestrator.StoryInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStoryBytes))
	if err := dec.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h, err := s.cfg.Pipeline.StartPipeline(s.cfg.RunContext, input)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrInvalidStory):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, orchestrator.ErrRunInProgress):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, RunAccepted{StoryID: h.StoryID, SessionID: h.SessionID})
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Pipeline.Cancel() {
		writeError(w, http.StatusConflict, "no run in progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARNING: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
