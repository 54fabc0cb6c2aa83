package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	arrhenius "github.com/ahurka/Arrhenius"
)

type ctxKey int

const requestIDKey ctxKey = 0

// requestID returns the id assigned to the request, or "" outside the
// logging middleware.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// statusRecorder captures the response code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLog assigns each request an id and logs method, path,
// status and duration on completion.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Fault     string `json:"fault"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError classifies err and answers with the matching status and
// message. Unclassified failures reveal nothing; the detail goes to
// the log only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	fault := arrhenius.Classify(err)

	var status int
	var msg string
	switch fault {
	case arrhenius.FaultClient:
		status = http.StatusBadRequest
		msg = err.Error()
	case arrhenius.FaultCapacity:
		status = http.StatusRequestEntityTooLarge
		msg = "the server has insufficient disk space to produce model output;" +
			" consider requesting fewer resources at a time to lighten the load"
	case arrhenius.FaultIO:
		status = http.StatusInternalServerError
		msg = "the server failed to perform disk IO; please report this error"
	default:
		status = http.StatusInternalServerError
		msg = "the server experienced an unexpected error; please report it"
	}

	if fault != arrhenius.FaultClient {
		s.logger.Error("request failed",
			"request_id", requestID(r.Context()),
			"fault", fault.String(),
			"error", err)
	}
	s.writeFaultStatus(w, r, status, fault, msg)
}

// writeFault answers a known fault without an underlying error.
func (s *Server) writeFault(w http.ResponseWriter, r *http.Request, fault arrhenius.Fault, msg string) {
	status := http.StatusInternalServerError
	if fault == arrhenius.FaultClient {
		status = http.StatusBadRequest
	}
	s.writeFaultStatus(w, r, status, fault, msg)
}

func (s *Server) writeFaultStatus(w http.ResponseWriter, r *http.Request, status int, fault arrhenius.Fault, msg string) {
	writeJSON(w, status, errorBody{
		Fault:     fault.String(),
		Message:   msg,
		RequestID: requestID(r.Context()),
	})
}
