package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/embeddings"
	"github.com/solacelabs/solace/pkg/eventstream"
	"github.com/solacelabs/solace/pkg/lifecycle"
	"github.com/solacelabs/solace/pkg/recognize"
	"github.com/solacelabs/solace/pkg/whisper"
)

// EventSource hands out live subscriptions to person events, backing the
// /events SSE feed.
type EventSource interface {
	Subscribe() (<-chan *eventstream.PersonEvent, func())
}

// Server is the API server for the recognition and caregiver surfaces.
type Server struct {
	config     Config
	recognizer *recognize.Recognizer
	people     *lifecycle.Service
	whisperer  *whisper.Composer
	faces      embeddings.FaceEmbedder
	feed       EventSource
	logger     *zap.Logger
	app        *fiber.App
}

// NewServer creates a new API server. Services are injected so the worker
// and API can share one wiring.
func NewServer(
	config Config,
	recognizer *recognize.Recognizer,
	people *lifecycle.Service,
	whisperer *whisper.Composer,
	faces embeddings.FaceEmbedder,
	feed EventSource,
	logger *zap.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             32 * 1024 * 1024, // frame batches are large
	})

	if config.ContextMemoryLimit <= 0 {
		config.ContextMemoryLimit = 20
	}

	s := &Server{
		config:     config,
		recognizer: recognizer,
		people:     people,
		whisperer:  whisperer,
		faces:      faces,
		feed:       feed,
		logger:     logger,
		app:        app,
	}

	app.Get("/ping", s.handlePing)

	app.Post("/recognize", s.handleRecognize)

	app.Post("/caregiver/enroll", s.handleEnroll)
	app.Get("/caregiver/pending", s.handleListPending)
	app.Get("/caregiver/confirmed", s.handleListConfirmed)
	app.Post("/caregiver/confirm", s.handleConfirm)
	app.Delete("/caregiver/person/:id", s.handleDeletePerson)
	app.Get("/caregiver/face-image/:id", s.handleFaceImage)

	app.Post("/memory/save", s.handleSaveMemory)

	app.Get("/whisper/:id", s.handleWhisper)
	app.Get("/context/:id", s.handleContext)

	if feed != nil {
		app.Get("/events", s.handleEvents)
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
