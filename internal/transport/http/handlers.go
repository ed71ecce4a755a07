package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"campus-quiz-service/internal/app"
	"campus-quiz-service/internal/domain"
)

// Handler exposes the attempt engine's operations over JSON HTTP.
type Handler struct {
	attempts *app.AttemptService
	ranker   *app.Ranker
}

func NewHandler(attempts *app.AttemptService, ranker *app.Ranker) *Handler {
	return &Handler{attempts: attempts, ranker: ranker}
}

// Register wires the routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/quizzes/{id}/login", h.login)
	mux.HandleFunc("GET /api/quizzes/{id}/attempt", h.resume)
	mux.HandleFunc("GET /api/quizzes/{id}/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /api/quizzes/{id}/rank", h.rank)
	mux.HandleFunc("GET /api/attempts/{id}/questions", h.questions)
	mux.HandleFunc("PUT /api/attempts/{id}/answers/{questionId}", h.setAnswer)
	mux.HandleFunc("DELETE /api/attempts/{id}/answers/{questionId}", h.clearAnswer)
	mux.HandleFunc("POST /api/attempts/{id}/submit", h.submit)
}

type loginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing userId or password")
		return
	}
	attempt, err := h.attempts.Authenticate(r.Context(), r.PathValue("id"), req.UserID, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId")
		return
	}
	state, err := h.attempts.GetOrResume(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) questions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.attempts.Questions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

type answerRequest struct {
	OptionID string `json:"optionId"`
}

type answerResponse struct {
	Accepted bool `json:"accepted"`
	// DegradedSaves warns the client that recent autosaves have been
	// failing; navigation is never blocked, but state may be stale.
	DegradedSaves bool `json:"degradedSaves,omitempty"`
}

func (h *Handler) setAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OptionID == "" {
		writeError(w, http.StatusBadRequest, "missing optionId")
		return
	}
	err := h.attempts.SetAnswer(r.Context(), r.PathValue("id"), r.PathValue("questionId"), req.OptionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// Accepted, not persisted: the autosave channel applies it asynchronously.
	writeJSON(w, http.StatusAccepted, answerResponse{Accepted: true, DegradedSaves: h.attempts.AutosaveDegraded()})
}

func (h *Handler) clearAnswer(w http.ResponseWriter, r *http.Request) {
	err := h.attempts.ClearAnswer(r.Context(), r.PathValue("id"), r.PathValue("questionId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, answerResponse{Accepted: true, DegradedSaves: h.attempts.AutosaveDegraded()})
}

type submitRequest struct {
	Reason domain.SubmitReason `json:"reason"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid submit payload")
		return
	}
	if req.Reason != domain.SubmitTimeExpired {
		req.Reason = domain.SubmitManual
	}
	result, err := h.attempts.Submit(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	leaderboard, err := h.ranker.Leaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboard)
}

func (h *Handler) rank(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId")
		return
	}
	rank, err := h.ranker.Rank(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"rank": rank})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotYetOpen),
		errors.Is(err, domain.ErrEnded),
		errors.Is(err, domain.ErrAttemptLimitReached),
		errors.Is(err, domain.ErrAttemptFinished):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrOptionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("http: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
