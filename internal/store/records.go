package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ticket-service/internal/models"
	"ticket-service/internal/util"

	"go.uber.org/zap"
)

// loadArray decodes the JSON array stored under namespace.
// A missing record and a malformed record both yield an empty collection; only a
// failure of the store itself is returned.
func loadArray[T any](ctx context.Context, records RecordStore, namespace string, logger *zap.Logger) ([]T, error) {
	data, err := records.Load(ctx, namespace)
	if errors.Is(err, models.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		util.StoreReadFailuresTotal.WithLabelValues(namespace, "read_error").Inc()
		return nil, fmt.Errorf("failed to read %s: %w", namespace, err)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		logger.Warn("Malformed stored data, using empty collection",
			zap.String("namespace", namespace),
			zap.Error(err))
		util.StoreReadFailuresTotal.WithLabelValues(namespace, "malformed").Inc()
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func saveArray[T any](ctx context.Context, records RecordStore, namespace string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", namespace, err)
	}
	if err := records.Save(ctx, namespace, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", namespace, err)
	}
	return nil
}
