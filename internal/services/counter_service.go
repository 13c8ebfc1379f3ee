package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autexline/api/internal/platform/observability"
	"github.com/autexline/api/internal/repositories"
)

// ErrCounterInvalidInput indicates the caller supplied an unusable counter key.
var ErrCounterInvalidInput = errors.New("counter: invalid input")

// Counter keys used by the review pipeline.
const (
	CounterKeyPartRef = "part_ref"
	CounterKeyVehicle = "veh"
)

// CounterServiceDeps bundles collaborators required to construct a counter service instance.
type CounterServiceDeps struct {
	Repository repositories.CounterRepository
	Clock      func() time.Time
}

type counterService struct {
	repo  repositories.CounterRepository
	clock func() time.Time
}

// NewCounterService constructs a service that allocates reference numbers on top of the repository.
func NewCounterService(deps CounterServiceDeps) (CounterService, error) {
	if deps.Repository == nil {
		return nil, errors.New("counter service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &counterService{
		repo: deps.Repository,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// NextRefNo allocates the next reference number for the given counter key.
// Counter failures degrade to a clock-derived reference instead of failing the
// caller; the result is marked Degraded and logged.
func (s *counterService) NextRefNo(ctx context.Context, key string) (RefNo, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return RefNo{}, fmt.Errorf("%w: key is required", ErrCounterInvalidInput)
	}

	seq, err := s.repo.Next(ctx, key)
	if err != nil {
		var counterErr *repositories.CounterError
		if errors.As(err, &counterErr) && counterErr.Code == repositories.CounterErrorInvalidInput {
			return RefNo{}, fmt.Errorf("%w: %s", ErrCounterInvalidInput, counterErr.Message)
		}

		fallback := s.clock().UnixMilli() % 1_000_000
		observability.FromContext(ctx).Warn("counter allocation degraded",
			zap.String("counter_key", key),
			zap.Int64("fallback_seq", fallback),
			zap.Error(err),
		)
		return RefNo{
			Value:    FormatRefNo(key, fallback),
			Seq:      fallback,
			Degraded: true,
		}, nil
	}

	return RefNo{Value: FormatRefNo(key, seq), Seq: seq}, nil
}

// FormatRefNo renders a sequence value as a display reference. Pure.
func FormatRefNo(key string, seq int64) string {
	prefix := strings.ToUpper(strings.TrimSpace(key))
	switch strings.ToLower(strings.TrimSpace(key)) {
	case CounterKeyPartRef:
		prefix = "APT"
	case CounterKeyVehicle, "vhl":
		prefix = "VEH"
	}
	return fmt.Sprintf("%s-%06d", prefix, seq)
}
