package model

import (
	"math/rand"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

const (
	ServiceStatusEnabled  = 1 // don't use 0, 0 is the default value!
	ServiceStatusDisabled = 2
)

// Service is one registered upstream inference backend. Several rows may
// advertise the same ActiveModel; together they form a replica set.
type Service struct {
	Id          int    `json:"id"`
	ServiceType string `json:"servicetype" gorm:"column:servicetype;index"`
	Status      int    `json:"status" gorm:"default:1"`
	// Url is the full upstream endpoint, e.g. http://host:8000/v1/chat/completions.
	Url string `json:"url"`
	// UpstreamModelName is the identifier the backend expects in request bodies.
	UpstreamModelName string `json:"upstream_model_name"`
	// ActiveModel is the externally advertised model id.
	ActiveModel string `json:"active_model" gorm:"index"`
	CreatedAt   int64  `json:"created_at" gorm:"bigint;autoCreateTime"`
	UpdatedAt   int64  `json:"updated_at" gorm:"bigint;autoUpdateTime"`
}

func (Service) TableName() string {
	return "services"
}

var ErrUnsupportedModel = errors.New("unsupported model")

// GetServicesByModel returns every enabled replica advertising activeModel.
func GetServicesByModel(activeModel string) ([]*Service, error) {
	var services []*Service
	err := DB.Where("active_model = ? AND status = ?", activeModel, ServiceStatusEnabled).
		Find(&services).Error
	if err != nil {
		return nil, errors.Wrap(err, "query services by model")
	}
	return services, nil
}

// PickServiceByModel resolves activeModel to one backend, uniformly at random
// among its replicas.
func PickServiceByModel(activeModel string) (*Service, error) {
	services, err := GetServicesByModel(activeModel)
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, errors.Wrapf(ErrUnsupportedModel, "model %s", activeModel)
	}
	if len(services) == 1 {
		return services[0], nil
	}
	return services[rand.Intn(len(services))], nil
}

// ListActiveModels returns the distinct advertised model ids of enabled services.
func ListActiveModels() ([]string, error) {
	var models []string
	err := DB.Model(&Service{}).
		Where("status = ?", ServiceStatusEnabled).
		Distinct("active_model").
		Order("active_model").
		Pluck("active_model", &models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list active models")
	}
	return models, nil
}

// GetServiceById fetches one service row, mainly for admin cache-bust paths.
func GetServiceById(id int) (*Service, error) {
	var service Service
	if err := DB.First(&service, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(err, "service %d not found", id)
		}
		return nil, errors.Wrap(err, "query service by id")
	}
	return &service, nil
}
