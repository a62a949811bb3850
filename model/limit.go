package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// ModelLimit carries the per-model rate ceilings enforced by the coil service.
// The gateway only reads them and forwards them as limit parameters.
type ModelLimit struct {
	Id                int    `json:"id"`
	ActiveModel       string `json:"active_model" gorm:"uniqueIndex"`
	MaxRequestsPerMin int64  `json:"max_requests_per_min" gorm:"bigint;default:0"`
	MaxTokensPerMin   int64  `json:"max_tokens_per_min" gorm:"bigint;default:0"`
}

func (ModelLimit) TableName() string {
	return "model_limits"
}

// GetModelLimit returns the limits row for activeModel. A missing row yields
// zero limits, which the coil service treats as unlimited.
func GetModelLimit(activeModel string) (*ModelLimit, error) {
	var limit ModelLimit
	err := DB.Where("active_model = ?", activeModel).First(&limit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ModelLimit{ActiveModel: activeModel}, nil
		}
		return nil, errors.Wrap(err, "query model limit")
	}
	return &limit, nil
}
