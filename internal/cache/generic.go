package cache

import (
	"context"
	"encoding/json"
)

// Get decodes a single cached payload into T. The second result is false
// when the record is absent or its payload does not decode into T.
func Get[T any](ctx context.Context, s *Service, collection, id string) (T, bool) {
	var value T

	data := s.Get(ctx, collection, id)
	if data == nil {
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		s.logger.Warn(ctx, "cached payload does not decode",
			"collection", collection, "id", id, "error", err)
		return value, false
	}
	return value, true
}

// List decodes all cached payloads of a collection into T, skipping
// payloads that do not decode.
func List[T any](ctx context.Context, s *Service, collection string) []T {
	raw := s.List(ctx, collection, nil)

	result := make([]T, 0, len(raw))
	for _, data := range raw {
		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			s.logger.Warn(ctx, "cached payload does not decode",
				"collection", collection, "error", err)
			continue
		}
		result = append(result, value)
	}
	return result
}

// Set encodes value and writes it through the façade.
func Set[T any](ctx context.Context, s *Service, collection, id string, value T, syncRemote bool) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, collection, id, data, syncRemote)
}
