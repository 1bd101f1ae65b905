package matching

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/zulandar/leadyard/internal/background"
	"github.com/zulandar/leadyard/internal/models"
	"github.com/zulandar/leadyard/internal/notify"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Trigger runs contractor matching for submitted projects.
type Trigger struct {
	DB       *gorm.DB
	Scorer   Scorer
	Runner   *background.Runner
	Notifier notify.Notifier // optional
	Limit    int
}

// Dispatch starts matching for a project on the background runner. It
// never blocks on or reports the outcome.
func (t *Trigger) Dispatch(projectID string) {
	if t == nil || t.Runner == nil {
		return
	}
	t.Runner.Go("matching "+projectID, func(ctx context.Context) error {
		_, err := t.Run(ctx, projectID)
		return err
	})
}

// Run scores contractors for a project and upserts a proposed match for
// each candidate. It returns the number of candidates materialized.
func (t *Trigger) Run(ctx context.Context, projectID string) (int, error) {
	var p models.Project
	if err := t.DB.WithContext(ctx).Where("id = ?", projectID).First(&p).Error; err != nil {
		return 0, fmt.Errorf("matching: load project %s: %w", projectID, err)
	}
	skills, err := ProjectSkills(t.DB.WithContext(ctx), projectID)
	if err != nil {
		return 0, err
	}

	limit := t.Limit
	if limit <= 0 {
		limit = DefaultCandidates
	}
	candidates, err := t.Scorer.Score(ctx, Criteria{
		City:    p.City,
		ZipCode: p.ZipCode,
		Skills:  skills,
		Limit:   limit,
	})
	if err != nil {
		return 0, fmt.Errorf("matching: score project %s: %w", projectID, err)
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	for _, c := range candidates {
		m := models.Match{
			ID:           uuid.NewString(),
			ProjectID:    projectID,
			ContractorID: c.ContractorID,
			Score:        c.Score,
			Status:       models.MatchProposed,
		}
		err := t.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "contractor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
		}).Create(&m).Error
		if err != nil {
			return 0, fmt.Errorf("matching: upsert match %s/%s: %w", projectID, c.ContractorID, err)
		}
	}

	log.Printf("matching: project %s: %d skill(s), %d candidate(s)", projectID, len(skills), len(candidates))
	if t.Notifier != nil {
		if err := t.Notifier.Notify(ctx, notify.FormatMatches(projectID, skills, len(candidates))); err != nil {
			log.Printf("matching: notify project %s: %v", projectID, err)
		}
	}
	return len(candidates), nil
}

// ProjectSkills derives the required skills from every recommendation on
// the project's assessments.
func ProjectSkills(db *gorm.DB, projectID string) ([]string, error) {
	var details []string
	err := db.Model(&models.AssessmentRecommendation{}).
		Joins("JOIN assessments ON assessments.id = assessment_recommendations.assessment_id").
		Where("assessments.project_id = ?", projectID).
		Order("assessment_recommendations.id ASC").
		Pluck("assessment_recommendations.detail", &details).Error
	if err != nil {
		return nil, fmt.Errorf("matching: load recommendations for %s: %w", projectID, err)
	}
	return RequiredSkills(details), nil
}
