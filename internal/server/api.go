package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sjawhar/voice-tutor/internal/call"
	"github.com/sjawhar/voice-tutor/internal/storage"
	"github.com/sjawhar/voice-tutor/internal/tutor"
)

const maxUploadBytes = 10 << 20

var callIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type CallManager interface {
	StartCall(topic string) (*call.Session, error)
	Get(id string) (*call.Session, bool)
	Active() *call.Session
	EndCall(ctx context.Context, id string) error
}

type CallStore interface {
	GetCallsByDate(date string) ([]storage.Call, error)
	GetCall(id string) (storage.Call, error)
	GetDates() ([]string, error)
}

type TutorService interface {
	Ask(ctx context.Context, topic, message string) (string, error)
	Scenario(ctx context.Context, topic, scenario string) (string, error)
}

type QuizService interface {
	Generate(ctx context.Context, topic string) (tutor.Question, error)
}

type DocumentAnalyzer interface {
	Analyze(ctx context.Context, filename string, data []byte, topic string) (tutor.Analysis, error)
}

// Services are the backends behind the API. Any of them may be nil; the
// matching routes then answer 503.
type Services struct {
	Calls        CallManager
	Store        CallStore
	Tutor        TutorService
	Quiz         QuizService
	Analyzer     DocumentAnalyzer
	Topics       []string
	DefaultTopic string
	Warnings     func() []string
}

func registerAPIRoutes(mux *http.ServeMux, svc Services) {
	mux.HandleFunc("POST /api/calls", func(w http.ResponseWriter, r *http.Request) {
		if svc.Calls == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "voice calls not configured")
			return
		}

		var req struct {
			Topic string `json:"topic"`
		}
		if err := decodeOptionalJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		sess, err := svc.Calls.StartCall(req.Topic)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, call.ErrCallActive) {
				status = http.StatusConflict
			}
			writeJSONError(w, status, fmt.Sprintf("start call: %v", err))
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"id":    sess.ID(),
			"topic": sess.Topic(),
			"state": sess.State(),
		})
	})

	mux.HandleFunc("GET /api/calls", func(w http.ResponseWriter, r *http.Request) {
		if svc.Store == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "call history not configured")
			return
		}
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		calls, err := svc.Store.GetCallsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list calls: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, calls)
	})

	mux.HandleFunc("GET /api/calls/{id}", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validCallID(callID) {
			writeJSONError(w, http.StatusForbidden, "invalid call id")
			return
		}

		if svc.Calls != nil {
			if sess, ok := svc.Calls.Get(callID); ok {
				writeJSON(w, http.StatusOK, sess.Snapshot())
				return
			}
		}
		if svc.Store == nil {
			writeJSONError(w, http.StatusNotFound, "call not found")
			return
		}

		record, err := svc.Store.GetCall(callID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get call: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, record)
	})

	mux.HandleFunc("DELETE /api/calls/{id}", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validCallID(callID) {
			writeJSONError(w, http.StatusForbidden, "invalid call id")
			return
		}
		if svc.Calls == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "voice calls not configured")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := svc.Calls.EndCall(ctx, callID); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, call.ErrCallNotFound) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("end call: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		if svc.Store == nil {
			writeJSON(w, http.StatusOK, []string{})
			return
		}
		dates, err := svc.Store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("GET /api/topics", func(w http.ResponseWriter, r *http.Request) {
		topics := svc.Topics
		if topics == nil {
			topics = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"topics": topics, "default": svc.DefaultTopic})
	})

	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		if svc.Tutor == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "tutor not configured")
			return
		}
		var req struct {
			Message string `json:"message"`
			Topic   string `json:"topic"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeJSONError(w, http.StatusBadRequest, "message is required")
			return
		}

		reply, err := svc.Tutor.Ask(r.Context(), svc.topicOrDefault(req.Topic), req.Message)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("chat: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
	})

	mux.HandleFunc("POST /api/scenario", func(w http.ResponseWriter, r *http.Request) {
		if svc.Tutor == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "tutor not configured")
			return
		}
		var req struct {
			Scenario string `json:"scenario"`
			Topic    string `json:"topic"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Scenario) == "" {
			writeJSONError(w, http.StatusBadRequest, "scenario is required")
			return
		}

		reply, err := svc.Tutor.Scenario(r.Context(), svc.topicOrDefault(req.Topic), req.Scenario)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("scenario: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
	})

	mux.HandleFunc("POST /api/quiz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Quiz == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "quiz not configured")
			return
		}
		var req struct {
			Topic string `json:"topic"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		q, err := svc.Quiz.Generate(r.Context(), req.Topic)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, tutor.ErrTopicRequired) {
				status = http.StatusBadRequest
			}
			writeJSONError(w, status, fmt.Sprintf("quiz: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, q)
	})

	mux.HandleFunc("POST /api/analyser", func(w http.ResponseWriter, r *http.Request) {
		if svc.Analyzer == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "document analysis not configured")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid or oversized upload")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid or missing file")
			return
		}
		defer func() { _ = file.Close() }()

		data, err := io.ReadAll(file)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
			return
		}

		analysis, err := svc.Analyzer.Analyze(r.Context(), header.Filename, data, r.FormValue("topic"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, tutor.ErrUnsupportedDocument) || errors.Is(err, tutor.ErrTopicRequired) {
				status = http.StatusBadRequest
			}
			writeJSONError(w, status, fmt.Sprintf("analyse document: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, analysis)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var warnings []string
		if svc.Warnings != nil {
			warnings = svc.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}

		var active any
		if svc.Calls != nil {
			if sess := svc.Calls.Active(); sess != nil {
				active = map[string]any{"id": sess.ID(), "topic": sess.Topic(), "state": sess.State()}
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"warnings": warnings, "active_call": active})
	})
}

func (s Services) topicOrDefault(topic string) string {
	if topic = strings.TrimSpace(topic); topic != "" {
		return topic
	}
	return s.DefaultTopic
}

// decodeOptionalJSON accepts an empty body as the zero value.
func decodeOptionalJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func validCallID(id string) bool {
	return callIDPattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
