// Package qdrant provides the Qdrant vector index driver.
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/vector"
)

// Config holds Qdrant driver configuration.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool

	// FaceCollection and MemoryCollection override the default collection
	// names when set.
	FaceCollection   string
	MemoryCollection string
}

// Driver is a Qdrant-backed vector index.
type Driver struct {
	client   *qdrant.Client
	faces    string
	memories string
	logger   *zap.Logger
}

// NewDriver connects to Qdrant and ensures both collections exist.
func NewDriver(ctx context.Context, cfg Config, logger *zap.Logger) (*Driver, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	d := &Driver{
		client:   client,
		faces:    cfg.FaceCollection,
		memories: cfg.MemoryCollection,
		logger:   logger,
	}
	if d.faces == "" {
		d.faces = string(vector.Faces)
	}
	if d.memories == "" {
		d.memories = string(vector.Memories)
	}

	if err := d.ensureCollection(ctx, d.faces, vector.FaceDimensions); err != nil {
		client.Close()
		return nil, err
	}
	if err := d.ensureCollection(ctx, d.memories, vector.MemoryDimensions); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("qdrant index ready",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port))

	return d, nil
}

func (d *Driver) ensureCollection(ctx context.Context, name string, dims uint64) error {
	exists, err := d.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dims,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	d.logger.Info("created collection", zap.String("name", name), zap.Uint64("dimensions", dims))
	return nil
}

// UpsertFace stores a face embedding tagged with person id and status.
func (d *Driver) UpsertFace(ctx context.Context, point vector.FacePoint) error {
	if len(point.Vector) != vector.FaceDimensions {
		return fmt.Errorf("%w: face embedding has %d dimensions, want %d",
			vector.ErrDimensionMismatch, len(point.Vector), vector.FaceDimensions)
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.faces,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"person_id": point.PersonID,
				"status":    string(point.Status),
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("upserting face point: %w", err)
	}
	return nil
}

// SearchFace returns the nearest face point, honoring the confirmed-only
// filter. A miss (empty collection or nothing passing the filter) returns
// nil with no error.
func (d *Driver) SearchFace(ctx context.Context, query vector.FaceQuery) (*vector.FaceMatch, error) {
	if len(query.Vector) != vector.FaceDimensions {
		return nil, fmt.Errorf("%w: face embedding has %d dimensions, want %d",
			vector.ErrDimensionMismatch, len(query.Vector), vector.FaceDimensions)
	}

	req := &qdrant.QueryPoints{
		CollectionName: d.faces,
		Query:          qdrant.NewQuery(query.Vector...),
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if query.ConfirmedOnly {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("status", string(identity.StatusConfirmed)),
			},
		}
	}

	points, err := d.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("querying face collection: %w", err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	top := points[0]
	return &vector.FaceMatch{
		PersonID: top.Payload["person_id"].GetStringValue(),
		Status:   identity.Status(top.Payload["status"].GetStringValue()),
		Score:    float64(top.Score),
	}, nil
}

// UpsertMemory stores a memory embedding with its summary payload.
func (d *Driver) UpsertMemory(ctx context.Context, point vector.MemoryPoint) error {
	if len(point.Vector) != vector.MemoryDimensions {
		return fmt.Errorf("%w: memory embedding has %d dimensions, want %d",
			vector.ErrDimensionMismatch, len(point.Vector), vector.MemoryDimensions)
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.memories,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"person_id":      point.PersonID,
				"summary":        point.Summary,
				"emotional_tone": point.EmotionalTone,
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("upserting memory point: %w", err)
	}
	return nil
}

// SearchMemories returns a person's nearest memory points.
func (d *Driver) SearchMemories(ctx context.Context, personID string, vec []float32, limit int) ([]vector.MemoryPoint, error) {
	if len(vec) != vector.MemoryDimensions {
		return nil, fmt.Errorf("%w: memory embedding has %d dimensions, want %d",
			vector.ErrDimensionMismatch, len(vec), vector.MemoryDimensions)
	}
	if limit <= 0 {
		limit = 5
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.memories,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("person_id", personID),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying memory collection: %w", err)
	}

	out := make([]vector.MemoryPoint, 0, len(points))
	for _, p := range points {
		out = append(out, vector.MemoryPoint{
			PersonID:      p.Payload["person_id"].GetStringValue(),
			Summary:       p.Payload["summary"].GetStringValue(),
			EmotionalTone: p.Payload["emotional_tone"].GetStringValue(),
		})
	}
	return out, nil
}

// SetPersonStatus rewrites the status payload on all of the person's face
// points.
func (d *Driver) SetPersonStatus(ctx context.Context, personID string, status identity.Status) error {
	_, err := d.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: d.faces,
		Wait:           qdrant.PtrOf(true),
		Payload: qdrant.NewValueMap(map[string]any{
			"status": string(status),
		}),
		PointsSelector: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("person_id", personID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("updating face status payload: %w", err)
	}
	return nil
}

// DeletePerson removes the person's points from both collections.
func (d *Driver) DeletePerson(ctx context.Context, personID string) error {
	selector := func() *qdrant.PointsSelector {
		return qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("person_id", personID),
			},
		})
	}

	for _, collection := range []string{d.faces, d.memories} {
		_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         selector(),
		})
		if err != nil {
			return fmt.Errorf("deleting points from %s: %w", collection, err)
		}
	}
	return nil
}

// Ping verifies the Qdrant connection.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	return nil
}

// Close releases the grpc connection.
func (d *Driver) Close() error {
	return d.client.Close()
}
