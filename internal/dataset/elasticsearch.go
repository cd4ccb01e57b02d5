package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"

	"college-predictor/internal/common/logger"
	"college-predictor/internal/cutoff"
)

const defaultSearchSize = 10000

// ESStore reads round tables from one Elasticsearch index per round. Each
// document is a row with the institution, program and category fields.
type ESStore struct {
	client  *elasticsearch.Client
	indices map[cutoff.Round]string
	layout  Layout
	logger  logger.Logger
}

func NewESStore(client *elasticsearch.Client, layout Layout, log logger.Logger) (*ESStore, error) {
	indices, err := layout.roundNames()
	if err != nil {
		return nil, err
	}
	return &ESStore{
		client:  client,
		indices: indices,
		layout:  layout,
		logger:  log.WithFields(map[string]interface{}{"backend": "elasticsearch"}),
	}, nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ESStore) searchBody(category cutoff.Category) ([]byte, error) {
	size := s.layout.MaxRows
	if size <= 0 {
		size = defaultSearchSize
	}
	field := string(category)
	return json.Marshal(map[string]interface{}{
		"size":             size,
		"track_total_hits": true,
		"_source":          []string{s.layout.InstitutionColumn, s.layout.ProgramColumn, field},
		"sort":             []string{"_doc"},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"exists": map[string]interface{}{"field": field}},
				},
			},
		},
	})
}

func (s *ESStore) ScanRound(ctx context.Context, round cutoff.Round, category cutoff.Category) ([]cutoff.CutoffRecord, error) {
	index, ok := s.indices[round]
	if !ok {
		return nil, fmt.Errorf("no index configured for %s round", round)
	}
	if !s.layout.Categories.Contains(category) {
		return nil, fmt.Errorf("%w: %q", cutoff.ErrInvalidCategory, category)
	}

	body, err := s.searchBody(category)
	if err != nil {
		return nil, fmt.Errorf("encode search for %s round: %w", round, err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", index, res.Status())
	}

	var parsed searchResponse
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search %s: %w", index, err)
	}
	if total := parsed.Hits.Total.Value; total > len(parsed.Hits.Hits) {
		return nil, fmt.Errorf("%w: %s round %s matched %d documents, returned %d", ErrRoundTooLarge, round, index, total, len(parsed.Hits.Hits))
	}

	records := make([]cutoff.CutoffRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		institution := sourceString(hit.Source[s.layout.InstitutionColumn])
		program := sourceString(hit.Source[s.layout.ProgramColumn])
		if institution == "" || program == "" {
			continue
		}
		records = append(records, cutoff.NewRecord(institution, program, sourceString(hit.Source[string(category)])))
	}

	s.logger.Debug("Scanned round", map[string]interface{}{
		"round":    round.String(),
		"index":    index,
		"category": category.String(),
		"rows":     len(records),
	})
	return records, nil
}

func sourceString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := val.Float64(); err == nil && f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
