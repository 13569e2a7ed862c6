package api

import (
	"encoding/base64"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/lifecycle"
	"github.com/solacelabs/solace/pkg/recognize"
	"github.com/solacelabs/solace/pkg/storage"
	"github.com/solacelabs/solace/pkg/whisper"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RecognizeRequest is a batch of camera frames, base64-encoded JPEG.
type RecognizeRequest struct {
	Frames []string `json:"frames"`
}

// RecognizeResponse reports the outcome of a recognition batch.
type RecognizeResponse struct {
	Recognized bool    `json:"recognized"`
	PersonID   string  `json:"person_id,omitempty"`
	Status     string  `json:"status,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`

	// Whisper is present only when a confirmed person was recognized.
	Whisper *whisper.Whisper `json:"whisper,omitempty"`
}

// EnrollRequest is a caregiver-initiated enrollment.
type EnrollRequest struct {
	Name           string `json:"name"`
	Relation       string `json:"relation"`
	ContextualNote string `json:"contextual_note"`
	Photo          string `json:"photo"` // base64 JPEG
}

// ConfirmRequest identifies a temporary person.
type ConfirmRequest struct {
	PersonID       string `json:"person_id"`
	Name           string `json:"name"`
	Relation       string `json:"relation"`
	ContextualNote string `json:"contextual_note"`
}

// SaveMemoryRequest captures a conversation transcript.
type SaveMemoryRequest struct {
	PersonID   string `json:"person_id"`
	Transcript string `json:"transcript"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleRecognize runs the multi-frame matcher. Unknown faces mint a
// temporary identity; a matched temporary person gets a fresh sighting;
// a confirmed match additionally gets a whisper.
func (s *Server) handleRecognize(c *fiber.Ctx) error {
	var req RecognizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	frames := make([][]byte, 0, len(req.Frames))
	for _, f := range req.Frames {
		data, err := base64.StdEncoding.DecodeString(f)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "frames must be base64-encoded"})
		}
		frames = append(frames, data)
	}

	ctx := c.Context()
	result, err := s.recognizer.Recognize(ctx, frames)
	if err != nil {
		if errors.Is(err, identity.ErrNoFrames) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "at least one frame is required"})
		}
		s.logger.Error("recognition failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "recognition failed"})
	}

	resp := RecognizeResponse{
		Recognized: result.Recognized,
		PersonID:   result.PersonID,
		Status:     string(result.Status),
		Confidence: result.Confidence,
		Reason:     string(result.Reason),
	}

	switch result.Reason {
	case recognize.ReasonMatched, recognize.ReasonUnconfirmed:
		if err := s.people.RecordSighting(ctx, result.PersonID, result.BestEmbedding); err != nil {
			s.logger.Warn("recording sighting failed",
				zap.String("person_id", result.PersonID), zap.Error(err))
		}

	case recognize.ReasonNoMatch:
		var thumbnail []byte
		if len(frames) > 0 {
			thumbnail = frames[0]
		}
		person, err := s.people.CreateTemporary(ctx, result.BestEmbedding, thumbnail)
		if err != nil {
			s.logger.Error("creating temporary person failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to register unknown face"})
		}
		resp.PersonID = person.ID
		resp.Status = string(person.Status)
	}

	if result.Recognized {
		w, err := s.whisperer.Compose(ctx, result.PersonID)
		if err != nil {
			// Recognition stands even when the whisper cannot be built.
			s.logger.Warn("whisper composition failed",
				zap.String("person_id", result.PersonID), zap.Error(err))
		} else {
			resp.Whisper = w
		}
	}

	return c.JSON(resp)
}

// handleEnroll creates a confirmed person from a caregiver's photo.
func (s *Server) handleEnroll(c *fiber.Ctx) error {
	var req EnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "name is required"})
	}
	if req.Photo == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "photo is required"})
	}

	photo, err := base64.StdEncoding.DecodeString(req.Photo)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "photo must be base64-encoded"})
	}

	ctx := c.Context()
	embedding, err := s.faces.EmbedFace(ctx, photo)
	if err != nil {
		if errors.Is(err, identity.ErrNoFace) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: "no face found in photo"})
		}
		s.logger.Error("face embedding failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "face embedding failed"})
	}

	person, err := s.people.Enroll(ctx, lifecycle.EnrollRequest{
		Name:           req.Name,
		Relation:       req.Relation,
		ContextualNote: req.ContextualNote,
		Embedding:      embedding,
		Thumbnail:      photo,
	})
	if err != nil {
		s.logger.Error("enrollment failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "enrollment failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(person)
}

// handleListPending returns temporary persons awaiting review.
func (s *Server) handleListPending(c *fiber.Ctx) error {
	pending, err := s.people.ListPending(c.Context())
	if err != nil {
		s.logger.Error("listing pending persons failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list pending persons"})
	}
	return c.JSON(fiber.Map{
		"count":   len(pending),
		"pending": pending,
	})
}

// handleListConfirmed returns confirmed persons.
func (s *Server) handleListConfirmed(c *fiber.Ctx) error {
	confirmed, err := s.people.ListConfirmed(c.Context())
	if err != nil {
		s.logger.Error("listing confirmed persons failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list confirmed persons"})
	}
	return c.JSON(fiber.Map{
		"count":     len(confirmed),
		"confirmed": confirmed,
	})
}

// handleConfirm promotes a temporary person.
func (s *Server) handleConfirm(c *fiber.Ctx) error {
	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.PersonID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "person_id is required"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "name is required"})
	}

	person, err := s.people.Confirm(c.Context(), lifecycle.ConfirmRequest{
		PersonID:       req.PersonID,
		Name:           req.Name,
		Relation:       req.Relation,
		ContextualNote: req.ContextualNote,
	})
	if err != nil {
		switch {
		case isNotFound(err):
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "person not found"})
		case errors.Is(err, identity.ErrAlreadyConfirmed):
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: "person is already confirmed"})
		default:
			s.logger.Error("confirmation failed",
				zap.String("person_id", req.PersonID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "confirmation failed"})
		}
	}

	return c.JSON(person)
}

// handleDeletePerson removes a person and all their data.
func (s *Server) handleDeletePerson(c *fiber.Ctx) error {
	personID := c.Params("id")
	if personID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	if err := s.people.Delete(c.Context(), personID); err != nil {
		if isNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "person not found"})
		}
		s.logger.Error("deletion failed", zap.String("person_id", personID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "deletion failed"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleFaceImage serves the enrollment thumbnail.
func (s *Server) handleFaceImage(c *fiber.Ctx) error {
	personID := c.Params("id")
	if personID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	image, err := s.people.FaceImage(c.Context(), personID)
	if err != nil {
		if isNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "person not found"})
		}
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "face image not found"})
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(image)
}

// handleSaveMemory stores a conversation memory for a person.
func (s *Server) handleSaveMemory(c *fiber.Ctx) error {
	var req SaveMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.PersonID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "person_id is required"})
	}
	if req.Transcript == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "transcript is required"})
	}

	memory, err := s.people.SaveMemory(c.Context(), req.PersonID, req.Transcript)
	if err != nil {
		if isNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "person not found"})
		}
		s.logger.Error("saving memory failed",
			zap.String("person_id", req.PersonID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "saving memory failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(memory)
}

// handleWhisper composes the reassurance line for a confirmed person.
func (s *Server) handleWhisper(c *fiber.Ctx) error {
	personID := c.Params("id")
	if personID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	w, err := s.whisperer.Compose(c.Context(), personID)
	if err != nil {
		if isNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "person not found"})
		}
		s.logger.Error("whisper composition failed",
			zap.String("person_id", personID), zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(w)
}

// handleContext assembles the full caregiver view of a person.
func (s *Server) handleContext(c *fiber.Ctx) error {
	personID := c.Params("id")
	if personID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	pc, err := s.people.Context(c.Context(), personID, s.config.ContextMemoryLimit)
	if err != nil {
		if isNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "person not found"})
		}
		s.logger.Error("loading person context failed",
			zap.String("person_id", personID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "loading person context failed"})
	}

	return c.JSON(pc)
}

func isNotFound(err error) bool {
	var nf storage.NotFoundError
	return errors.As(err, &nf)
}
