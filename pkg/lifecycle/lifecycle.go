// Package lifecycle owns the person state machine. Every identity starts
// TEMPORARY, created either by a caregiver or by an unknown-face sighting,
// and becomes CONFIRMED only through caregiver review. The service keeps
// the entity store and the vector index consistent across transitions.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/embeddings"
	"github.com/solacelabs/solace/pkg/eventstream"
	"github.com/solacelabs/solace/pkg/faceimages"
	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/keylock"
	"github.com/solacelabs/solace/pkg/llm"
	"github.com/solacelabs/solace/pkg/storage"
	"github.com/solacelabs/solace/pkg/vector"
)

// Service coordinates identity transitions across the entity store, the
// vector index, the thumbnail store, and the event stream.
type Service struct {
	store  storage.Store
	index  vector.Index
	text   embeddings.TextEmbedder
	assist *llm.Assist
	images *faceimages.Store
	events eventstream.Publisher
	locks  *keylock.KeyLock
	logger *zap.Logger
}

// NewService wires the lifecycle service. images may be nil when thumbnail
// storage is disabled.
func NewService(
	store storage.Store,
	index vector.Index,
	text embeddings.TextEmbedder,
	assist *llm.Assist,
	images *faceimages.Store,
	events eventstream.Publisher,
	locks *keylock.KeyLock,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:  store,
		index:  index,
		text:   text,
		assist: assist,
		images: images,
		events: events,
		locks:  locks,
		logger: logger,
	}
}

// CreateTemporary mints a new TEMPORARY identity from an unknown face. The
// embedding is indexed immediately so repeat sightings bind to the same
// identity, and the frame is kept as the caregiver review thumbnail.
func (s *Service) CreateTemporary(ctx context.Context, embedding []float32, thumbnail []byte) (*identity.Person, error) {
	now := time.Now().UTC()
	person := &identity.Person{
		ID:         uuid.NewString(),
		Status:     identity.StatusTemporary,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := s.store.CreatePerson(ctx, person); err != nil {
		return nil, fmt.Errorf("creating temporary person: %w", err)
	}

	if err := s.indexFace(ctx, person.ID, person.Status, embedding); err != nil {
		// The person row exists but carries no face point; roll back so
		// the next sighting starts clean.
		if delErr := s.store.DeletePerson(ctx, person.ID); delErr != nil {
			s.logger.Error("rollback of orphaned person failed",
				zap.String("person_id", person.ID), zap.Error(delErr))
		}
		return nil, err
	}

	s.saveThumbnail(person.ID, thumbnail)
	s.publish(ctx, eventstream.EventTypePersonEnrolled, person)

	s.logger.Info("created temporary person", zap.String("person_id", person.ID))
	return person, nil
}

// RecordSighting binds a fresh embedding to an existing identity and
// touches last-seen. Used when recognition matched above threshold.
func (s *Service) RecordSighting(ctx context.Context, personID string, embedding []float32) error {
	person, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		return err
	}

	if err := s.indexFace(ctx, personID, person.Status, embedding); err != nil {
		return err
	}

	if err := s.store.TouchLastSeen(ctx, personID, time.Now().UTC()); err != nil {
		return err
	}
	return nil
}

// EnrollRequest is a caregiver-initiated enrollment.
type EnrollRequest struct {
	Name           string
	Relation       string
	ContextualNote string

	// Embedding is the face embedding extracted from the enrollment
	// photo.
	Embedding []float32

	// Thumbnail is the enrollment photo, kept for later review.
	Thumbnail []byte
}

// Enroll creates a CONFIRMED identity directly. Caregivers vouch for the
// person, so the temporary stage is skipped.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*identity.Person, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	now := time.Now().UTC()
	person := &identity.Person{
		ID:             uuid.NewString(),
		Status:         identity.StatusConfirmed,
		Name:           req.Name,
		Relation:       req.Relation,
		ContextualNote: req.ContextualNote,
		CreatedAt:      now,
		ConfirmedAt:    &now,
		LastSeenAt:     now,
	}

	if err := s.store.CreatePerson(ctx, person); err != nil {
		return nil, fmt.Errorf("creating person: %w", err)
	}

	if err := s.indexFace(ctx, person.ID, person.Status, req.Embedding); err != nil {
		if delErr := s.store.DeletePerson(ctx, person.ID); delErr != nil {
			s.logger.Error("rollback of orphaned person failed",
				zap.String("person_id", person.ID), zap.Error(delErr))
		}
		return nil, err
	}

	s.saveThumbnail(person.ID, req.Thumbnail)
	s.publish(ctx, eventstream.EventTypePersonEnrolled, person)

	s.logger.Info("enrolled person",
		zap.String("person_id", person.ID),
		zap.String("name", req.Name))
	return person, nil
}

// ConfirmRequest carries the caregiver's identification of a temporary
// person.
type ConfirmRequest struct {
	PersonID       string
	Name           string
	Relation       string
	ContextualNote string
}

// Confirm promotes a TEMPORARY person to CONFIRMED. Confirming an already
// confirmed person returns identity.ErrAlreadyConfirmed. The entity store
// is updated first; if the vector index then fails to sync, the error is
// surfaced so the caller retries, and recognition stays conservative in the
// meantime because the stale face points still read as temporary.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*identity.Person, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	s.locks.Lock(req.PersonID)
	defer s.locks.Unlock(req.PersonID)

	person, err := s.store.GetPerson(ctx, req.PersonID)
	if err != nil {
		return nil, err
	}
	if person.Status == identity.StatusConfirmed {
		return nil, identity.ErrAlreadyConfirmed
	}

	now := time.Now().UTC()
	confirmed := identity.StatusConfirmed
	upd := storage.PersonUpdate{
		Name:        &req.Name,
		Relation:    &req.Relation,
		Status:      &confirmed,
		ConfirmedAt: &now,
	}
	if req.ContextualNote != "" {
		upd.ContextualNote = &req.ContextualNote
	}
	if err := s.store.UpdatePerson(ctx, req.PersonID, upd); err != nil {
		return nil, fmt.Errorf("confirming person: %w", err)
	}

	if err := s.index.SetPersonStatus(ctx, req.PersonID, identity.StatusConfirmed); err != nil {
		return nil, fmt.Errorf("syncing face index after confirm: %w", err)
	}

	person, err = s.store.GetPerson(ctx, req.PersonID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, eventstream.EventTypePersonConfirmed, person)

	s.logger.Info("confirmed person",
		zap.String("person_id", person.ID),
		zap.String("name", person.Name))
	return person, nil
}

// SyncVectorStatus re-drives the confirmed status onto the face index for
// every confirmed person. It repairs a confirm whose index sync failed after
// the entity store had already committed; until repaired, those face points
// still read as temporary and recognition stays conservative.
func (s *Service) SyncVectorStatus(ctx context.Context) (int, error) {
	confirmed, err := s.store.ListConfirmed(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing confirmed persons: %w", err)
	}

	synced := 0
	var lastErr error
	for _, person := range confirmed {
		if err := s.index.SetPersonStatus(ctx, person.ID, identity.StatusConfirmed); err != nil {
			lastErr = err
			s.logger.Warn("status sync failed",
				zap.String("person_id", person.ID), zap.Error(err))
			continue
		}
		synced++
	}

	if synced > 0 {
		s.logger.Info("face index status synced", zap.Int("persons", synced))
	}
	return synced, lastErr
}

// Delete removes a person everywhere. The entity store row goes first so
// the identity stops resolving immediately; vector points and the
// thumbnail are cleaned up best-effort afterward.
func (s *Service) Delete(ctx context.Context, personID string) error {
	s.locks.Lock(personID)
	defer s.locks.Unlock(personID)

	person, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		return err
	}

	if err := s.store.DeletePerson(ctx, personID); err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}

	if err := s.index.DeletePerson(ctx, personID); err != nil {
		s.logger.Error("deleting vector points failed, index has orphans",
			zap.String("person_id", personID), zap.Error(err))
	}

	if s.images != nil {
		if err := s.images.Delete(personID); err != nil {
			s.logger.Warn("deleting face image failed",
				zap.String("person_id", personID), zap.Error(err))
		}
	}

	event := eventstream.NewPersonEvent(eventstream.EventTypePersonDeleted, uuid.NewString(), personID)
	event.Name = person.Name
	if err := s.events.PublishPerson(ctx, event); err != nil {
		s.logger.Warn("publishing event failed",
			zap.String("event_type", event.EventType), zap.Error(err))
	}

	s.logger.Info("deleted person", zap.String("person_id", personID))
	return nil
}

// SaveMemory distills a transcript into a memory for the person, indexes
// it, and nudges familiarity. The memory row is the durable record; a
// failed vector upsert is logged, not fatal.
func (s *Service) SaveMemory(ctx context.Context, personID, transcript string) (*identity.Memory, error) {
	person, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}

	summary := s.assist.SummarizeMemory(ctx, person.Name, transcript)

	now := time.Now().UTC()
	memory := &identity.Memory{
		ID:             uuid.NewString(),
		PersonID:       personID,
		Summary:        summary.Summary,
		EmotionalTone:  summary.EmotionalTone,
		ImportantEvent: summary.ImportantEvent,
		RawTranscript:  transcript,
		CreatedAt:      now,
	}
	if err := s.store.CreateMemory(ctx, memory); err != nil {
		return nil, fmt.Errorf("saving memory: %w", err)
	}

	if emb, err := s.text.Embed(ctx, memory.Summary); err != nil {
		s.logger.Warn("memory embedding failed, skipping vector index",
			zap.String("memory_id", memory.ID), zap.Error(err))
	} else {
		point := vector.MemoryPoint{
			ID:            memory.ID,
			PersonID:      personID,
			Summary:       memory.Summary,
			EmotionalTone: memory.EmotionalTone,
			Vector:        emb,
		}
		if err := s.index.UpsertMemory(ctx, point); err != nil {
			s.logger.Warn("memory vector upsert failed",
				zap.String("memory_id", memory.ID), zap.Error(err))
		}
	}

	if err := s.store.BumpFamiliarity(ctx, personID, identity.FamiliarityIncrement); err != nil {
		s.logger.Warn("familiarity bump failed", zap.String("person_id", personID), zap.Error(err))
	}
	if err := s.store.TouchLastSeen(ctx, personID, now); err != nil {
		s.logger.Warn("last-seen touch failed", zap.String("person_id", personID), zap.Error(err))
	}
	if err := s.store.MarkMemorySaved(ctx, personID, now); err != nil {
		s.logger.Warn("memory-saved mark failed", zap.String("person_id", personID), zap.Error(err))
	}

	event := eventstream.NewPersonEvent(eventstream.EventTypeMemorySaved, uuid.NewString(), personID)
	event.MemoryID = memory.ID
	if err := s.events.PublishPerson(ctx, event); err != nil {
		s.logger.Warn("publishing event failed",
			zap.String("event_type", event.EventType), zap.Error(err))
	}

	return memory, nil
}

// ListPending returns temporary persons awaiting caregiver review.
func (s *Service) ListPending(ctx context.Context) ([]storage.PendingPerson, error) {
	return s.store.ListPending(ctx)
}

// ListConfirmed returns confirmed persons.
func (s *Service) ListConfirmed(ctx context.Context) ([]*identity.Person, error) {
	return s.store.ListConfirmed(ctx)
}

// PersonContext is the full picture of a person for caregiver tooling.
type PersonContext struct {
	Person   *identity.Person    `json:"person"`
	Memories []*identity.Memory  `json:"memories"`
	Routines []*identity.Routine `json:"routines"`
}

// Context assembles a person with their recent memories and routines.
func (s *Service) Context(ctx context.Context, personID string, memoryLimit int) (*PersonContext, error) {
	person, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	memories, err := s.store.RecentMemories(ctx, personID, memoryLimit)
	if err != nil {
		return nil, fmt.Errorf("loading memories: %w", err)
	}
	routines, err := s.store.Routines(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("loading routines: %w", err)
	}
	return &PersonContext{Person: person, Memories: memories, Routines: routines}, nil
}

// FaceImage returns the stored review thumbnail.
func (s *Service) FaceImage(ctx context.Context, personID string) ([]byte, error) {
	if _, err := s.store.GetPerson(ctx, personID); err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, fmt.Errorf("face image storage is disabled")
	}
	return s.images.Read(personID)
}

func (s *Service) indexFace(ctx context.Context, personID string, status identity.Status, embedding []float32) error {
	point := vector.FacePoint{
		ID:       uuid.NewString(),
		PersonID: personID,
		Status:   status,
		Vector:   embedding,
	}
	if err := s.index.UpsertFace(ctx, point); err != nil {
		return fmt.Errorf("indexing face: %w", err)
	}
	return nil
}

func (s *Service) saveThumbnail(personID string, thumbnail []byte) {
	if s.images == nil || len(thumbnail) == 0 {
		return
	}
	if err := s.images.Save(personID, thumbnail); err != nil {
		s.logger.Warn("saving face image failed",
			zap.String("person_id", personID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, eventType string, person *identity.Person) {
	event := eventstream.NewPersonEvent(eventType, uuid.NewString(), person.ID)
	event.Status = string(person.Status)
	event.Name = person.Name
	if err := s.events.PublishPerson(ctx, event); err != nil {
		s.logger.Warn("publishing event failed",
			zap.String("event_type", eventType), zap.Error(err))
	}
}
