package service

import (
	"context"
	"fmt"

	"github.com/hqanh/qbank/internal/dto"
	"github.com/hqanh/qbank/internal/repository"
	"github.com/rs/zerolog/log"
)

// PoolService computes the set of eligible question ids for a new test.
// Pure read; randomization for final selection happens in the caller so
// the resolver result stays deterministic and testable.
type PoolService interface {
	ResolveEligiblePool(ctx context.Context, payload dto.PoolResolveDTO) (*dto.PoolResolveResponseDTO, error)
}

type poolService struct {
	questionRepo repository.QuestionRepository
}

func NewPoolService(questionRepo repository.QuestionRepository) PoolService {
	return &poolService{questionRepo: questionRepo}
}

func (s *poolService) ResolveEligiblePool(ctx context.Context, payload dto.PoolResolveDTO) (*dto.PoolResolveResponseDTO, error) {
	universe, err := s.questionRepo.CountPublished(ctx, payload.ProductID)
	if err != nil {
		return nil, fmt.Errorf("count published questions: %w", err)
	}

	ids, err := s.questionRepo.ResolveEligible(ctx, payload.UserID, payload.ProductID, repository.PoolFilters{
		Subjects:    payload.Filters.Subjects,
		Systems:     payload.Filters.Systems,
		UsageStates: payload.Filters.UsageStates,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve eligible pool: %w", err)
	}

	log.Debug().Str("userID", payload.UserID).Str("productID", payload.ProductID).Int("eligible", len(ids)).Int64("universe", universe).Msg("Resolved question pool")
	return &dto.PoolResolveResponseDTO{
		QuestionIDs:   ids,
		EligibleCount: len(ids),
		UniverseCount: int(universe),
	}, nil
}
