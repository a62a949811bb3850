package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// UserKey is one locally authorized API key.
type UserKey struct {
	Id      int    `json:"id"`
	UserKey string `json:"user_key" gorm:"column:user_key;type:char(64);uniqueIndex"`
}

func (UserKey) TableName() string {
	return "user_keys"
}

// UserKeyModel authorizes one (key, model) pair for local auth mode.
type UserKeyModel struct {
	Id          int    `json:"id"`
	UserKey     string `json:"user_key" gorm:"column:user_key;index:idx_key_model,unique"`
	ActiveModel string `json:"active_model" gorm:"index:idx_key_model,unique"`
}

func (UserKeyModel) TableName() string {
	return "user_key_models"
}

// IsUserKeyValid reports whether key exists in the credential store.
func IsUserKeyValid(key string) (bool, error) {
	var row UserKey
	err := DB.Where("user_key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "query user key")
	}
	return true, nil
}

// IsKeyModelAllowed reports whether the (key, model) pair is authorized.
func IsKeyModelAllowed(key, activeModel string) (bool, error) {
	var row UserKeyModel
	err := DB.Where("user_key = ? AND active_model = ?", key, activeModel).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "query user key model")
	}
	return true, nil
}
