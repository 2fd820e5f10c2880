package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/username/school-status/internal/calendar"
	"go.uber.org/zap"
)

// FallbackStore reads from primary and falls back to fallback when primary fails
type FallbackStore struct {
	primary  Store
	fallback Store
	logger   *zap.Logger
}

// NewFallbackStore creates a new FallbackStore
func NewFallbackStore(primary, fallback Store, logger *zap.Logger) *FallbackStore {
	return &FallbackStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Path returns the primary location of key
func (s *FallbackStore) Path(key Key) string {
	return s.primary.Path(key)
}

// Read tries primary first, then fallback
func (s *FallbackStore) Read(ctx context.Context, key Key) ([]byte, error) {
	data, err := s.primary.Read(ctx, key)
	if err == nil {
		return data, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	s.logger.Warn("Primary store failed, falling back",
		zap.String("document", key.String()),
		zap.Error(err))

	data, fallbackErr := s.fallback.Read(ctx, key)
	if fallbackErr != nil {
		return nil, fmt.Errorf("primary and fallback both failed: primary=%v, fallback=%w", err, fallbackErr)
	}
	return data, nil
}

// ListYears returns the years known to either store
func (s *FallbackStore) ListYears(ctx context.Context, calendarType calendar.CalendarType) ([]int, error) {
	primary, primaryErr := s.primary.ListYears(ctx, calendarType)
	if primaryErr != nil {
		s.logger.Warn("Primary store failed to list years, falling back",
			zap.String("calendar_type", string(calendarType)),
			zap.Error(primaryErr))
	}

	fallback, fallbackErr := s.fallback.ListYears(ctx, calendarType)
	if primaryErr != nil && fallbackErr != nil {
		return nil, fmt.Errorf("primary and fallback both failed: primary=%v, fallback=%w", primaryErr, fallbackErr)
	}

	seen := make(map[int]bool)
	var years []int
	for _, year := range append(primary, fallback...) {
		if !seen[year] {
			seen[year] = true
			years = append(years, year)
		}
	}
	sort.Ints(years)
	return years, nil
}
