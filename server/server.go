// Package server exposes the agent over a websocket chat endpoint, a JSON
// health endpoint and the gRPC health checking protocol.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/becomeliminal/nim-rag/agent"
	"github.com/becomeliminal/nim-rag/index"
)

// ServiceName is the gRPC health service name reported alongside the
// overall ("") status.
const ServiceName = "nimrag.Agent"

// Agent is the part of agent.Agent the server drives.
type Agent interface {
	Ask(ctx context.Context, question string) *agent.Answer
	UpdateSettings(temperature *float64, topK *int) error
	SetModel(ctx context.Context, model string) error
	ClearMemory()
	Status(ctx context.Context, sample int) (*agent.Status, error)
}

// Config configures the server.
type Config struct {
	Agent Agent

	// Addr is the HTTP listen address for /ws and /health.
	Addr string

	// GRPCAddr is the gRPC health listen address. Empty disables it.
	GRPCAddr string
}

// Server serves the agent.
type Server struct {
	agent    Agent
	addr     string
	grpcAddr string
	upgrader websocket.Upgrader
	health   *health.Server
	mux      *http.ServeMux
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("server: agent is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	s := &Server{
		agent:    cfg.Agent,
		addr:     cfg.Addr,
		grpcAddr: cfg.GRPCAddr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		health: health.NewServer(),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s, nil
}

// Handler returns the HTTP handler serving /ws and /health.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Health returns the gRPC health service.
func (s *Server) Health() *health.Server {
	return s.health
}

// Refresh updates the gRPC health status from the index state: SERVING once
// a document is loaded, NOT_SERVING otherwise.
func (s *Server) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	st, err := s.agent.Status(ctx, 0)
	if err == nil && st.State == index.StateReady {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.Refresh(ctx)

	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	var grpcSrv *grpc.Server
	if s.grpcAddr != "" {
		lis, err := net.Listen("tcp", s.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc %s: %w", s.grpcAddr, err)
		}
		grpcSrv = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcSrv, s.health)
		go func() {
			log.Printf("[SERVER] gRPC health listening on %s", s.grpcAddr)
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	go func() {
		log.Printf("[SERVER] Listening on %s (ws: /ws, health: /health)", s.addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	log.Printf("[SERVER] Shutting down")
	s.health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	return runErr
}

type healthResponse struct {
	Status string  `json:"status"`
	Index  string  `json:"index"`
	Chunks int     `json:"chunks"`
	Model  string  `json:"model"`
	TopK   int     `json:"top_k"`
	Temp   float64 `json:"temperature"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st, err := s.agent.Status(r.Context(), 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status: "ok",
		Index:  st.State.String(),
		Chunks: st.Chunks,
		Model:  st.Settings.Model,
		TopK:   st.Settings.TopK,
		Temp:   st.Settings.Temperature,
	})
}
