package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
)

// DefaultCandidates caps the number of contractors proposed per project.
const DefaultCandidates = 5

// Criteria describes what a project needs.
type Criteria struct {
	City    string
	ZipCode string
	Skills  []string
	Limit   int
}

// Candidate is a scored contractor.
type Candidate struct {
	ContractorID string
	Score        float64
}

// Scorer ranks contractors for a project.
type Scorer interface {
	Score(ctx context.Context, c Criteria) ([]Candidate, error)
}

// Score weights used by StoreScorer.
const (
	skillWeight = 10.0
	cityWeight  = 5.0
	zipWeight   = 3.0
)

// StoreScorer ranks contractor profiles from the store by skill overlap,
// location and rating.
type StoreScorer struct {
	DB *gorm.DB
}

// Score implements Scorer. Contractors sharing no required skill are
// skipped when skills are given.
func (s StoreScorer) Score(ctx context.Context, c Criteria) ([]Candidate, error) {
	var profiles []models.Profile
	if err := s.DB.WithContext(ctx).Where("role = ?", models.RoleContractor).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("matching: load contractors: %w", err)
	}

	var out []Candidate
	for _, p := range profiles {
		score, ok := scoreProfile(&p, c)
		if !ok {
			continue
		}
		out = append(out, Candidate{ContractorID: p.ID, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ContractorID < out[j].ContractorID
	})

	limit := c.Limit
	if limit <= 0 {
		limit = DefaultCandidates
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func scoreProfile(p *models.Profile, c Criteria) (float64, bool) {
	var have []string
	if p.Skills != "" {
		if err := json.Unmarshal([]byte(p.Skills), &have); err != nil {
			log.Printf("matching: profile %s: decode skills: %v", p.ID, err)
			have = nil
		}
	}
	overlap := 0
	for _, want := range c.Skills {
		for _, h := range have {
			if strings.EqualFold(want, h) {
				overlap++
				break
			}
		}
	}
	if len(c.Skills) > 0 && overlap == 0 {
		return 0, false
	}

	score := float64(overlap) * skillWeight
	if c.City != "" && strings.EqualFold(p.City, c.City) {
		score += cityWeight
	}
	if c.ZipCode != "" && p.ZipCode == c.ZipCode {
		score += zipWeight
	}
	return score + p.Rating, true
}
