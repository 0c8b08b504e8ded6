// Package qdrant serves the semantic side of a search from a Qdrant collection.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kailas-cloud/newsdex/internal/db"
	"github.com/kailas-cloud/newsdex/internal/domain/search/filter"
)

// KeyField is the payload field holding the document key.
const KeyField = "doc_key"

// pointsSearcher is the slice of pb.PointsClient the store needs.
type pointsSearcher interface {
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// Store runs KNN queries against one Qdrant collection.
type Store struct {
	conn       *grpc.ClientConn
	points     pointsSearcher
	collection string
}

// New connects to Qdrant at the given gRPC address.
func New(addr, collection string) (*Store, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrant: collection is required")
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	return &Store{
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: collection,
	}, nil
}

// NewWithClient builds a store over an existing points client.
func NewWithClient(points pointsSearcher, collection string) *Store {
	return &Store{points: points, collection: collection}
}

// Close closes the gRPC connection, if the store owns one.
func (s *Store) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// SearchKNN runs a similarity search. q.IndexName is ignored: the store is
// bound to its collection. Scores are similarities in the metric's direction.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: vector is required", db.ErrInvalidQuery)
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", db.ErrInvalidQuery)
	}

	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         q.Vector,
		Limit:          uint64(q.K),
		WithPayload:    payloadSelector(q.ReturnFields),
		Filter:         buildFilter(q.Filters),
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, &db.Error{Op: "qdrant.Search", Err: err}
	}

	entries := make([]db.SearchEntry, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		fields := make(map[string]string, len(p.GetPayload()))
		for k, v := range p.GetPayload() {
			text, err := valueString(v)
			if err != nil {
				return nil, &db.Error{
					Op:  "qdrant.Search",
					Err: fmt.Errorf("%w: payload %s: %w", db.ErrMalformedReply, k, err),
				}
			}
			fields[k] = text
		}

		key := fields[KeyField]
		delete(fields, KeyField)
		if key == "" {
			key = pointID(p.GetId())
		}
		if key == "" {
			return nil, &db.Error{Op: "qdrant.Search", Err: fmt.Errorf("%w: point without id", db.ErrMalformedReply)}
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  similarity(q.Metric, float64(p.GetScore())),
			Fields: fields,
		})
	}

	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

// similarity maps a Qdrant score onto [0,1]. Cosine and dot scores are
// already similarities; Euclid scores are distances.
func similarity(m db.DistanceMetric, score float64) float64 {
	if m == db.DistanceL2 {
		return db.DistanceL2.Similarity(score)
	}
	if score < 0 {
		return 0
	}
	return score
}

func payloadSelector(fields []string) *pb.WithPayloadSelector {
	if len(fields) == 0 {
		return &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}}
	}
	include := append(append([]string{}, fields...), KeyField)
	return &pb.WithPayloadSelector{
		SelectorOptions: &pb.WithPayloadSelector_Include{
			Include: &pb.PayloadIncludeSelector{Fields: include},
		},
	}
}

func pointID(id *pb.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	if _, ok := id.GetPointIdOptions().(*pb.PointId_Num); ok {
		return strconv.FormatUint(id.GetNum(), 10)
	}
	return ""
}

// valueString flattens a payload value into the same text form the Redis
// hash stores: scalar lists become comma-separated, objects and lists of
// objects become JSON.
func valueString(v *pb.Value) (string, error) {
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue, nil
	case *pb.Value_IntegerValue:
		return strconv.FormatInt(k.IntegerValue, 10), nil
	case *pb.Value_DoubleValue:
		return strconv.FormatFloat(k.DoubleValue, 'f', -1, 64), nil
	case *pb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue), nil
	case *pb.Value_StructValue:
		return marshalValue(v)
	case *pb.Value_ListValue:
		items := k.ListValue.GetValues()
		if slices.ContainsFunc(items, isNested) {
			return marshalValue(v)
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			s, _ := valueString(item)
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	}
	return "", nil
}

func isNested(v *pb.Value) bool {
	switch v.GetKind().(type) {
	case *pb.Value_StructValue, *pb.Value_ListValue:
		return true
	}
	return false
}

func marshalValue(v *pb.Value) (string, error) {
	b, err := json.Marshal(plainValue(v))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// plainValue converts a payload value into encoding/json friendly Go values.
func plainValue(v *pb.Value) any {
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_IntegerValue:
		return k.IntegerValue
	case *pb.Value_DoubleValue:
		return k.DoubleValue
	case *pb.Value_BoolValue:
		return k.BoolValue
	case *pb.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for name, f := range k.StructValue.GetFields() {
			out[name] = plainValue(f)
		}
		return out
	case *pb.Value_ListValue:
		out := make([]any, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			out = append(out, plainValue(item))
		}
		return out
	}
	return nil
}

// buildFilter translates filter.Expression into a Qdrant payload filter.
func buildFilter(expr filter.Expression) *pb.Filter {
	if expr.IsEmpty() {
		return nil
	}
	return &pb.Filter{
		Must:    conditions(expr.Must()),
		Should:  conditions(expr.Should()),
		MustNot: conditions(expr.MustNot()),
	}
}

func conditions(conds []filter.Condition) []*pb.Condition {
	if len(conds) == 0 {
		return nil
	}
	out := make([]*pb.Condition, 0, len(conds))
	for _, c := range conds {
		fc := &pb.FieldCondition{Key: c.Key()}
		switch {
		case c.IsMatch():
			fc.Match = &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: c.Match()}}
		case c.IsRange():
			r := c.Range()
			fc.Range = &pb.Range{Gt: r.GT(), Gte: r.GTE(), Lt: r.LT(), Lte: r.LTE()}
		case c.IsGeo():
			g := c.Geo()
			fc.GeoRadius = &pb.GeoRadius{
				Center: &pb.GeoPoint{Lat: g.Lat(), Lon: g.Lon()},
				Radius: float32(g.Km() * 1000),
			}
		default:
			continue
		}
		out = append(out, &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: fc}})
	}
	return out
}
