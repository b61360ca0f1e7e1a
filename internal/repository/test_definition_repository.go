package repository

import (
	"context"
	"time"

	"github.com/hqanh/qbank/internal/model"
	"gorm.io/gorm"
)

// TestAttemptStats is the aggregate of a finished attempt's answer rows,
// attached to history list rows.
type TestAttemptStats struct {
	AttemptID  string
	FinishedAt *time.Time
	Correct    int
	Incorrect  int
	Omitted    int
	Flagged    int
}

type TestDefinitionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, def *model.TestDefinition) error
	Save(ctx context.Context, tx *gorm.DB, def *model.TestDefinition) error
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.TestDefinition, error)
	// UpdateBookkeeping overwrites only the mutable session fields; the
	// question ordering and mode are fixed at creation.
	UpdateBookkeeping(ctx context.Context, tx *gorm.DB, def *model.TestDefinition) error
	ListForUser(ctx context.Context, userID, productID string) ([]model.TestDefinition, error)
	// LatestFinishedStats returns, per test definition id, the aggregate
	// stats of the most recently finished attempt.
	LatestFinishedStats(ctx context.Context, userID, productID string) (map[string]TestAttemptStats, error)
	// ClearSuspension unsets the suspended flag; called when an attempt
	// finishes the test.
	ClearSuspension(ctx context.Context, tx *gorm.DB, id string) error
	Archive(ctx context.Context, id, userID string) error
}

type testDefinitionRepository struct {
	db *gorm.DB
}

func NewTestDefinitionRepository(db *gorm.DB) TestDefinitionRepository {
	return &testDefinitionRepository{db: db}
}

func (r *testDefinitionRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *testDefinitionRepository) Create(ctx context.Context, tx *gorm.DB, def *model.TestDefinition) error {
	return r.getDB(tx).WithContext(ctx).Create(def).Error
}

func (r *testDefinitionRepository) Save(ctx context.Context, tx *gorm.DB, def *model.TestDefinition) error {
	return r.getDB(tx).WithContext(ctx).Save(def).Error
}

func (r *testDefinitionRepository) FindByIDAndUser(ctx context.Context, id, userID string) (*model.TestDefinition, error) {
	var def model.TestDefinition
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&def).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *testDefinitionRepository) UpdateBookkeeping(ctx context.Context, tx *gorm.DB, def *model.TestDefinition) error {
	return r.getDB(tx).WithContext(ctx).Model(def).
		Select("is_suspended", "current_index", "elapsed_seconds", "marked_ids", "answer_mirror").
		Updates(def).Error
}

func (r *testDefinitionRepository) ListForUser(ctx context.Context, userID, productID string) ([]model.TestDefinition, error) {
	var defs []model.TestDefinition
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Order("created_at DESC").
		Find(&defs).Error
	return defs, err
}

func (r *testDefinitionRepository) LatestFinishedStats(ctx context.Context, userID, productID string) (map[string]TestAttemptStats, error) {
	// Most recent finished attempt per test definition.
	var latest []model.Attempt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND finished_at IS NOT NULL", userID, productID).
		Where(`finished_at = (SELECT MAX(a2.finished_at) FROM attempts a2
			WHERE a2.test_definition_id = attempts.test_definition_id
			AND a2.finished_at IS NOT NULL AND a2.deleted_at IS NULL)`).
		Find(&latest).Error
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return map[string]TestAttemptStats{}, nil
	}

	attemptIDs := make([]string, 0, len(latest))
	byAttempt := make(map[string]string, len(latest)) // attempt id -> test id
	for _, a := range latest {
		attemptIDs = append(attemptIDs, a.ID)
		byAttempt[a.ID] = a.TestDefinitionID
	}

	var rows []struct {
		AttemptID string
		Correct   int
		Incorrect int
		Omitted   int
		Flagged   int
	}
	err = r.db.WithContext(ctx).Model(&model.Answer{}).
		Select(`attempt_id,
			COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0) AS correct,
			COALESCE(SUM(CASE WHEN NOT is_correct THEN 1 ELSE 0 END), 0) AS incorrect,
			COALESCE(SUM(CASE WHEN selected IS NULL THEN 1 ELSE 0 END), 0) AS omitted,
			COALESCE(SUM(CASE WHEN flagged THEN 1 ELSE 0 END), 0) AS flagged`).
		Where("attempt_id IN ?", attemptIDs).
		Group("attempt_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	statsByAttempt := make(map[string]TestAttemptStats, len(rows))
	for _, row := range rows {
		statsByAttempt[row.AttemptID] = TestAttemptStats{
			AttemptID: row.AttemptID,
			Correct:   row.Correct,
			Incorrect: row.Incorrect,
			Omitted:   row.Omitted,
			Flagged:   row.Flagged,
		}
	}

	result := make(map[string]TestAttemptStats, len(latest))
	for _, a := range latest {
		stats := statsByAttempt[a.ID]
		stats.AttemptID = a.ID
		stats.FinishedAt = a.FinishedAt
		result[a.TestDefinitionID] = stats
	}
	return result, nil
}

func (r *testDefinitionRepository) ClearSuspension(ctx context.Context, tx *gorm.DB, id string) error {
	return r.getDB(tx).WithContext(ctx).Model(&model.TestDefinition{}).
		Where("id = ?", id).
		Update("is_suspended", false).Error
}

func (r *testDefinitionRepository) Archive(ctx context.Context, id, userID string) error {
	// Soft delete: history purges archive, they never hard-delete.
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.TestDefinition{}).Error
}
