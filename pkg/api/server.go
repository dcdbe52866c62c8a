// Package api provides the HTTP control API of the bridge client.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meshcore-tools/meshbridge/pkg/bridge"
	"github.com/meshcore-tools/meshbridge/pkg/storage"
)

// Sender is the slice of the bridge client the API needs.
type Sender interface {
	SendGroupText(message string) (int, error)
	SendRawHex(s string) (int, error)
	Status() bridge.Status
}

// Server represents the HTTP API server
type Server struct {
	sender     Sender
	packetLog  *storage.PacketLog
	router     *gin.Engine
	port       int
	httpServer *http.Server
}

// Config holds server configuration
type Config struct {
	Port         int
	EnableCORS   bool
	RateLimit    int // Requests per minute
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		RateLimit:    120,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewServer creates a new HTTP API server. packetLog may be nil when
// history is disabled; the packets endpoint then reports an empty log.
func NewServer(sender Sender, packetLog *storage.PacketLog, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		sender:    sender,
		packetLog: packetLog,
		router:    router,
		port:      config.Port,
	}

	server.setupMiddleware(config)
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(config *Config) {
	if config.EnableCORS {
		s.router.Use(CORSMiddleware())
	}

	s.router.Use(RateLimitMiddleware(config.RateLimit))
	s.router.Use(LoggingMiddleware())
	s.router.Use(gin.Recovery())
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/messages", s.handleSendMessage)
		v1.POST("/packets", s.handleSendPacket)
		v1.GET("/packets", s.handleListPackets)
		v1.GET("/status", s.handleStatus)
	}
}

// Start starts the HTTP server, blocking until it fails or shuts down.
func (s *Server) Start(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
