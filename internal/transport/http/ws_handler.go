package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"campus-quiz-service/internal/app"
	"campus-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler runs the per-session countdown over a websocket. The connection
// carries the gated-wait and active timers; both are advisory: every tick
// recomputes the authoritative value from the clock and persisted instants,
// so a suspended tab can neither stretch nor shrink the window.
type WSHandler struct {
	attempts *app.AttemptService
	upgrader websocket.Upgrader
}

func NewWSHandler(attempts *app.AttemptService) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type countdownPayload struct {
	Phase   app.ResumePhase `json:"phase"`
	Seconds int             `json:"seconds"`
	// Degraded flags a failing autosave streak so the client can warn the
	// learner without interrupting navigation.
	Degraded bool `json:"degraded,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives one attempt session until the
// attempt finishes or the client goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	attemptID := r.URL.Query().Get("attemptId")
	if attemptID == "" {
		http.Error(w, "missing attemptId", http.StatusBadRequest)
		return
	}

	state, err := h.attempts.SessionState(r.Context(), attemptID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	timerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: state}

	if state.Phase == app.ResumeTerminal {
		// Already finished: results-only session, no timers.
		close(closeSignals)
		close(send)
		<-writerDone
		return
	}

	go func() {
		defer close(timerDone)
		h.runTimers(state.Phase, attemptID, send, closeSignals)
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			if err := h.attempts.SetAnswer(r.Context(), attemptID, payload.QuestionID, payload.OptionID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "clear":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid clear payload"}}
				continue
			}
			if err := h.attempts.ClearAnswer(r.Context(), attemptID, payload.QuestionID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "submit":
			result, err := h.attempts.Submit(r.Context(), attemptID, domain.SubmitManual)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "submitted", Payload: result}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-timerDone
	close(send)
	<-writerDone
}

// runTimers owns the session's countdown. Only one timer exists at a time:
// the gated-wait ticker is stopped before the active ticker starts, so
// auto-submit can never double-fire across the transition.
func (h *WSHandler) runTimers(initial app.ResumePhase, attemptID string, send chan<- outboundMessage[any], closeSignals <-chan struct{}) {
	if initial == app.ResumeGatedWait {
		if !h.runPhase(app.ResumeGatedWait, attemptID, send, closeSignals) {
			return
		}
	}
	h.runPhase(app.ResumeActive, attemptID, send, closeSignals)
}

// runPhase ticks once per second until the phase is over. It returns true
// when the session should continue into the next phase.
func (h *WSHandler) runPhase(phase app.ResumePhase, attemptID string, send chan<- outboundMessage[any], closeSignals <-chan struct{}) bool {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		state, err := h.attempts.SessionState(context.Background(), attemptID)
		if err != nil {
			h.trySend(send, closeSignals, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return false
		}

		switch {
		case state.Phase == app.ResumeTerminal:
			// A manual submission (this tab or another) ended the attempt.
			return false
		case phase == app.ResumeGatedWait && state.Phase == app.ResumeActive:
			h.trySend(send, closeSignals, outboundMessage[any]{Type: "contentReleased", Payload: countdownPayload{Phase: state.Phase, Seconds: state.Seconds}})
			return true
		case state.Phase == app.ResumeActive && state.Seconds <= 0:
			result, err := h.attempts.Submit(context.Background(), attemptID, domain.SubmitTimeExpired)
			if err != nil {
				h.trySend(send, closeSignals, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				return false
			}
			h.trySend(send, closeSignals, outboundMessage[any]{Type: "autoSubmitted", Payload: result})
			return false
		default:
			h.trySend(send, closeSignals, outboundMessage[any]{Type: "countdown", Payload: countdownPayload{
				Phase:    state.Phase,
				Seconds:  state.Seconds,
				Degraded: h.attempts.AutosaveDegraded(),
			}})
		}

		select {
		case <-ticker.C:
		case <-closeSignals:
			return false
		}
	}
}

func (h *WSHandler) trySend(send chan<- outboundMessage[any], closeSignals <-chan struct{}, msg outboundMessage[any]) {
	select {
	case send <- msg:
	case <-closeSignals:
	}
}
