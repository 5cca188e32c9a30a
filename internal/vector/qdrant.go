// Package vector wraps the qdrant gRPC API as the service's vector index:
// batched upserts, deletes by id, and nearest-neighbour search with payloads.
package vector

import (
	"context"
	"fmt"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/docassist/docassist/models"
)

// Point is one entry to upsert: a chunk id, its embedding and metadata.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// Hit is one search result.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]interface{}
}

// Client talks to one qdrant collection.
type Client struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	collection  string
}

// Dial connects to the qdrant gRPC endpoint (host:port).
func Dial(addr, collection string) (*Client, error) {
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}
	return &Client{
		conn:        conn,
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Collection returns the collection name this client writes to.
func (c *Client) Collection() string { return c.collection }

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// EnsureCollection creates the collection with cosine distance if missing.
func (c *Client) EnsureCollection(ctx context.Context, dim int) error {
	list, err := c.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, col := range list.GetCollections() {
		if col.GetName() == c.collection {
			return nil
		}
	}
	_, err = c.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dim),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", c.collection, err)
	}
	return nil
}

// Upsert writes all points in one batch call.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &qdrant.PointStruct{
			Id: pointID(p.ID),
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: p.Vector},
				},
			},
			Payload: toPayload(p.Payload),
		}
	}
	wait := true
	_, err := c.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points:         structs,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %d points: %v", models.ErrVectorStore, len(points), err)
	}
	return nil
}

// Delete removes points by id.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(id)
	}
	wait := true
	_, err := c.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
		Wait: &wait,
	})
	if err != nil {
		return fmt.Errorf("%w: delete %d points: %v", models.ErrVectorStore, len(ids), err)
	}
	return nil
}

// Search returns the k nearest points with payloads.
func (c *Client) Search(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	resp, err := c.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: c.collection,
		Vector:         vec,
		Limit:          uint64(k),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", models.ErrVectorStore, err)
	}
	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hits = append(hits, Hit{
			ID:      p.GetId().GetUuid(),
			Score:   p.GetScore(),
			Payload: fromPayload(p.GetPayload()),
		})
	}
	return hits, nil
}

func pointID(id string) *qdrant.PointId {
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}
}

func toPayload(m map[string]interface{}) map[string]*qdrant.Value {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		out[k] = toValue(v)
	}
	return out
}

func toValue(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(val)}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

func fromPayload(m map[string]*qdrant.Value) map[string]interface{} {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qdrant.Value) interface{} {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	default:
		return nil
	}
}
