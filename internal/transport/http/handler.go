package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// Handler exposes the quiz commands over HTTP JSON.
type Handler struct {
	service *app.QuizService
}

func NewHandler(service *app.QuizService) *Handler {
	return &Handler{service: service}
}

// Register wires all command routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /quizzes", h.createQuiz)
	mux.HandleFunc("POST /quizzes/{id}/questions", h.addQuestion)
	mux.HandleFunc("DELETE /quizzes/{id}/questions/{questionID}", h.removeQuestion)
	mux.HandleFunc("POST /quizzes/{id}/start", h.startQuiz)
	mux.HandleFunc("POST /quizzes/{id}/finish", h.finishQuiz)
	mux.HandleFunc("GET /quizzes/{id}/status", h.quizStatus)
	mux.HandleFunc("GET /quizzes/{id}/results", h.quizResults)
	mux.HandleFunc("POST /quizzes/{id}/participants/{participantID}/answers", h.submitAnswers)
	mux.HandleFunc("POST /join", h.join)
	mux.HandleFunc("GET /rooms/{code}", h.quizByCode)
	mux.HandleFunc("GET /rooms/{code}/participants/{participantID}/result", h.participantResult)
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req app.CreateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	quiz, err := h.service.CreateQuiz(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) addQuestion(w http.ResponseWriter, r *http.Request) {
	var req app.QuestionInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	quiz, err := h.service.AddQuestion(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) removeQuestion(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.RemoveQuestion(r.Context(), r.PathValue("id"), r.PathValue("questionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) startQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DurationSeconds *int `json:"duration_seconds"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
			return
		}
	}
	quiz, err := h.service.StartQuiz(r.Context(), r.PathValue("id"), req.DurationSeconds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) finishQuiz(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.FinishQuiz(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) quizStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) quizResults(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomCode string `json:"room_code"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	participant, err := h.service.Join(r.Context(), req.RoomCode, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (h *Handler) submitAnswers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers []domain.AnswerSubmission `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	result, err := h.service.SubmitAnswers(r.Context(), r.PathValue("id"), r.PathValue("participantID"), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) quizByCode(w http.ResponseWriter, r *http.Request) {
	quiz, timeRemaining, err := h.service.GetByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Quiz          *domain.Quiz `json:"quiz"`
		TimeRemaining int          `json:"time_remaining"`
	}{Quiz: quiz, TimeRemaining: timeRemaining})
}

func (h *Handler) participantResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ParticipantResult(r.Context(), r.PathValue("code"), r.PathValue("participantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var invalidState *domain.InvalidStateError
	var validation *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrChoiceNotFound),
		errors.Is(err, domain.ErrParticipantNotFound):
		status = http.StatusNotFound
	case errors.As(err, &invalidState), errors.As(err, &validation):
		status = http.StatusBadRequest
	default:
		log.Printf("http: internal error: %v", err)
	}

	writeJSON(w, status, struct {
		Detail string `json:"detail"`
	}{Detail: err.Error()})
}
