package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"framecast/internal/api"
	"framecast/internal/logging"
	"framecast/internal/services"
)

const maxBodyBytes = 8 << 20

// listKeys are query parameters decoded as string lists, numericKeys as
// integers. Everything else is a string.
var (
	listKeys    = map[string]bool{"statuses": true}
	numericKeys = map[string]bool{"limit": true}
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	service *api.Service

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind, token string, d *Daemon, svc *api.Service, logger *slog.Logger) *apiServer {
	bind = strings.TrimSpace(bind)
	if bind == "" || svc == nil {
		return nil
	}
	srv := &apiServer{
		bind:    bind,
		logger:  logger,
		daemon:  d,
		service: svc,
	}
	srv.server = &http.Server{
		Handler:           authMiddleware(token, srv.routes()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/operations/{id}", s.handleOperation)
	mux.HandleFunc("POST /v1/{operation}", s.handleInvoke)
	mux.HandleFunc("GET /v1/{operation}", s.handleInvoke)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// addr is the bound address, useful when bind used port 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, api.Request{Method: http.MethodGet, Operation: api.OpHealth})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.daemon == nil {
		writeJSON(w, s.log(), http.StatusServiceUnavailable, api.ErrorResponse{
			ErrorKind: string(services.KindConfiguration),
			Message:   "daemon status unavailable",
		})
		return
	}
	writeJSON(w, s.log(), http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleOperation(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(api.OperationRequest{OperationID: r.PathValue("id")})
	if err != nil {
		writeJSON(w, s.log(), http.StatusInternalServerError, api.NewErrorResponse(err))
		return
	}
	s.dispatch(w, r, api.Request{Method: http.MethodGet, Operation: api.OpOperationStatus, Body: body})
}

func (s *apiServer) handleInvoke(w http.ResponseWriter, r *http.Request) {
	req := api.Request{Method: r.Method, Operation: r.PathValue("operation")}
	if r.Method == http.MethodGet {
		body, err := queryBody(r)
		if err != nil {
			writeJSON(w, s.log(), http.StatusBadRequest, api.ErrorResponse{ErrorKind: api.ErrorKindBadRequest, Message: err.Error()})
			return
		}
		req.Body = body
	} else {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, s.log(), http.StatusBadRequest, api.ErrorResponse{
				ErrorKind: api.ErrorKindBadRequest,
				Message:   fmt.Sprintf("read request body: %v", err),
			})
			return
		}
		req.Body = data
	}
	s.dispatch(w, r, req)
}

func (s *apiServer) dispatch(w http.ResponseWriter, r *http.Request, req api.Request) {
	ctx := r.Context()
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" {
		ctx = services.WithRequestID(ctx, id)
	}
	resp := s.service.Handle(ctx, req)
	writeJSON(w, s.log(), resp.Status, resp.Body)
}

// queryBody turns query parameters into the JSON body the api expects.
func queryBody(r *http.Request) ([]byte, error) {
	query := r.URL.Query()
	if len(query) == 0 {
		return nil, nil
	}
	fields := make(map[string]any, len(query))
	for key, values := range query {
		switch {
		case listKeys[key]:
			var list []string
			for _, v := range values {
				for _, part := range strings.Split(v, ",") {
					if part = strings.TrimSpace(part); part != "" {
						list = append(list, part)
					}
				}
			}
			fields[key] = list
		case numericKeys[key]:
			n, err := strconv.Atoi(strings.TrimSpace(values[0]))
			if err != nil {
				return nil, fmt.Errorf("query parameter %s must be an integer", key)
			}
			fields[key] = n
		default:
			fields[key] = values[0]
		}
	}
	return json.Marshal(fields)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
