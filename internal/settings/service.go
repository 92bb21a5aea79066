// Package settings reads global configuration settings stored in the
// database.
package settings

import (
	"context"
	"strconv"

	"github.com/juju/errors"
	"gorm.io/gorm"

	"lmis-backend/internal/database"
	"lmis-backend/internal/models"
)

// SkipAuthorization disables the authorize step of the requisition
// workflow when set to true.
const SkipAuthorization = "skipAuthorization"

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetStringValue returns the value stored for key, or an error satisfying
// errors.NotFound.
func (s *Service) GetStringValue(ctx context.Context, key string) (string, error) {
	var setting models.ConfigurationSetting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if database.IsNotFound(err) {
		return "", errors.NotFoundf("configuration setting %q", key)
	}
	if err != nil {
		return "", errors.Annotatef(err, "reading configuration setting %q", key)
	}
	return setting.Value, nil
}

// GetBoolValue reports the boolean value of key. A missing key is false.
func (s *Service) GetBoolValue(ctx context.Context, key string) (bool, error) {
	value, err := s.GetStringValue(ctx, key)
	if errors.Is(err, errors.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Trace(err)
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.NotValidf("boolean configuration setting %q value %q", key, value)
	}
	return b, nil
}
