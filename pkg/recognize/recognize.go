// Package recognize implements multi-frame face matching. A batch of
// camera frames is embedded and searched against the face index; the best
// score across frames decides the outcome.
package recognize

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/embeddings"
	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/vector"
)

// DefaultThreshold is the minimum cosine score for a match.
const DefaultThreshold = 0.8

// Reason explains a non-recognition outcome.
type Reason string

const (
	ReasonMatched     Reason = "matched"
	ReasonUnconfirmed Reason = "known_but_unconfirmed"
	ReasonNoMatch     Reason = "no_match"
	ReasonNoFace      Reason = "no_face_in_frames"
)

// Result is the outcome of a recognition batch.
type Result struct {
	// Recognized is true only when the best confirmed candidate clears
	// the threshold. Non-confirmed candidates never compete with it.
	Recognized bool

	// PersonID is set whenever the best match cleared the threshold,
	// confirmed or not. Callers use it to bind new sightings to an
	// existing temporary identity instead of minting a duplicate.
	PersonID string

	Status     identity.Status
	Confidence float64
	Reason     Reason

	// BestEmbedding is the embedding of the frame that produced the best
	// match, or the first usable frame when nothing matched. Callers use
	// it to enroll unknown faces.
	BestEmbedding []float32

	// FramesWithFace counts frames that yielded a usable embedding.
	FramesWithFace int
}

// Config holds recognizer tuning.
type Config struct {
	// Threshold is the minimum score for a match. Defaults to
	// DefaultThreshold when zero.
	Threshold float64
}

// Recognizer embeds frames and searches the face index.
type Recognizer struct {
	embedder  embeddings.FaceEmbedder
	index     vector.Index
	threshold float64
	logger    *zap.Logger
}

// New creates a recognizer.
func New(cfg Config, embedder embeddings.FaceEmbedder, index vector.Index, logger *zap.Logger) *Recognizer {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Recognizer{
		embedder:  embedder,
		index:     index,
		threshold: threshold,
		logger:    logger,
	}
}

// candidate accumulates the best match seen so far for one search scope.
type candidate struct {
	score     float64
	personID  string
	status    identity.Status
	embedding []float32
}

func (c *candidate) consider(match *vector.FaceMatch, emb []float32) {
	if match == nil || match.Score <= c.score {
		return
	}
	c.score = match.Score
	c.personID = match.PersonID
	c.status = match.Status
	c.embedding = emb
}

// Recognize runs the batch. Frames that fail embedding or searching are
// skipped; a batch where no frame yields a face is a no-face result, not an
// error. Confirmed candidates are reduced separately from the rest so that
// a high-scoring temporary hit can never displace a confirmed one.
func (r *Recognizer) Recognize(ctx context.Context, frames [][]byte) (*Result, error) {
	if len(frames) == 0 {
		return nil, identity.ErrNoFrames
	}

	result := &Result{Reason: ReasonNoFace}
	var confirmed, anyone candidate

	for i, frame := range frames {
		emb, err := r.embedder.EmbedFace(ctx, frame)
		if err != nil {
			if errors.Is(err, identity.ErrNoFace) {
				r.logger.Debug("no face in frame", zap.Int("frame", i))
			} else {
				r.logger.Warn("frame embedding failed", zap.Int("frame", i), zap.Error(err))
			}
			continue
		}
		result.FramesWithFace++
		if result.BestEmbedding == nil {
			result.BestEmbedding = emb
		}

		match, err := r.index.SearchFace(ctx, vector.FaceQuery{Vector: emb, ConfirmedOnly: true})
		if err != nil {
			r.logger.Warn("face search failed", zap.Int("frame", i), zap.Error(err))
			continue
		}
		confirmed.consider(match, emb)

		match, err = r.index.SearchFace(ctx, vector.FaceQuery{Vector: emb})
		if err != nil {
			r.logger.Warn("face search failed", zap.Int("frame", i), zap.Error(err))
			continue
		}
		anyone.consider(match, emb)
	}

	if result.FramesWithFace == 0 {
		return result, nil
	}

	switch {
	case confirmed.score >= r.threshold:
		result.Recognized = true
		result.Reason = ReasonMatched
		result.PersonID = confirmed.personID
		result.Status = confirmed.status
		result.Confidence = confirmed.score
		result.BestEmbedding = confirmed.embedding
	case anyone.score >= r.threshold:
		result.Reason = ReasonUnconfirmed
		result.PersonID = anyone.personID
		result.Status = anyone.status
		result.Confidence = anyone.score
		result.BestEmbedding = anyone.embedding
	default:
		// Below threshold the candidate identity is noise; keep the score
		// for observability but let callers enroll a fresh temporary person.
		result.Reason = ReasonNoMatch
		result.Confidence = anyone.score
	}

	r.logger.Debug("recognition complete",
		zap.Bool("recognized", result.Recognized),
		zap.String("person_id", result.PersonID),
		zap.Float64("confidence", result.Confidence),
		zap.String("reason", string(result.Reason)),
		zap.Int("frames_with_face", result.FramesWithFace))

	return result, nil
}
