// Package http adapts the question bank use cases to a JSON REST API.
package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"qbank-service/internal/app"
	"qbank-service/internal/domain"
)

// maxLeaderboardEntries caps the rows returned to clients.
const maxLeaderboardEntries = 25

type Handler struct {
	service *app.Service
}

func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Register wires the API routes into mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/objectives", h.handleObjectives)
	mux.HandleFunc("/api/objectives/", h.handleQuiz)
	mux.HandleFunc("/api/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("/api/profile", h.handleProfile)
}

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type answersPayload struct {
	Answers map[string]string `json:"answers"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// POST /api/auth/register
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, domain.NotFound("endpoint not found"))
		return
	}
	var payload credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, domain.Invalid("invalid JSON payload"))
		return
	}
	username, err := h.service.Register(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": username})
}

// POST /api/auth/login
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, domain.NotFound("endpoint not found"))
		return
	}
	var payload credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, domain.Invalid("invalid JSON payload"))
		return
	}
	result, err := h.service.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /api/objectives
func (h *Handler) handleObjectives(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, domain.NotFound("endpoint not found"))
		return
	}
	summaries, err := h.service.ListObjectives(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GET  /api/objectives/{id}/quiz — generate an answer-free quiz
// POST /api/objectives/{id}/quiz — grade submitted answers (bearer token)
func (h *Handler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/objectives/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "quiz" {
		writeError(w, domain.NotFound("endpoint not found"))
		return
	}
	objectiveID := parts[0]

	switch r.Method {
	case http.MethodGet:
		sheet, err := h.service.GenerateQuiz(r.Context(), objectiveID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sheet)
	case http.MethodPost:
		var payload answersPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, domain.Invalid("invalid JSON payload"))
			return
		}
		report, err := h.service.GradeQuiz(r.Context(), bearerToken(r), objectiveID, payload.Answers)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	default:
		writeError(w, domain.NotFound("endpoint not found"))
	}
}

// GET /api/leaderboard
func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, domain.NotFound("endpoint not found"))
		return
	}
	entries, err := h.service.Leaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topEntries(entries))
}

// GET /api/profile
func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, domain.NotFound("endpoint not found"))
		return
	}
	profile, err := h.service.Profile(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func topEntries(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	if len(entries) > maxLeaderboardEntries {
		return entries[:maxLeaderboardEntries]
	}
	return entries
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForKind(domain.KindOf(err)), errorPayload{Error: err.Error()})
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindNoContent:
		return http.StatusUnprocessableEntity
	default:
		// malformed_data and anything unclassified are server-side failures.
		return http.StatusInternalServerError
	}
}
