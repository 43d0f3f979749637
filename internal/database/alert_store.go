package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// AlertStore owns persistence and simple filtered queries for health alerts.
// Every mutation runs inside a single transaction; on error the transaction
// rolls back before the error is returned to the caller.
type AlertStore struct {
	db *gorm.DB
}

// NewAlertStore creates a new AlertStore
func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

// Create persists a new alert and assigns its ID and created_at timestamp.
// UpdatedAt stays nil until the first mutation.
func (s *AlertStore) Create(alert *HealthAlert) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(alert).Error
	})
}

// GetByID retrieves an alert by ID. Returns (nil, nil) when the ID is absent.
func (s *AlertStore) GetByID(id uint) (*HealthAlert, error) {
	var alert HealthAlert
	if err := s.db.First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// List returns a page of alerts in insertion order
func (s *AlertStore) List(offset, limit int) ([]HealthAlert, error) {
	var alerts []HealthAlert
	if err := s.db.Order("id asc").Offset(offset).Limit(limit).Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// ListUnresolved returns all alerts with is_resolved = false
func (s *AlertStore) ListUnresolved() ([]HealthAlert, error) {
	var alerts []HealthAlert
	if err := s.db.Where("is_resolved = ?", false).Order("id asc").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// ListUncategorized returns all alerts that have no AI categorization yet
func (s *AlertStore) ListUncategorized() ([]HealthAlert, error) {
	var alerts []HealthAlert
	if err := s.db.Where("ai_category IS NULL").Order("id asc").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// ListByCategory returns all alerts with the given raw category
func (s *AlertStore) ListByCategory(category string) ([]HealthAlert, error) {
	var alerts []HealthAlert
	if err := s.db.Where("category = ?", category).Order("id asc").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// Update applies a partial update to an alert and touches updated_at.
// Returns (nil, nil) when the ID is absent; unmentioned fields keep their
// prior values.
func (s *AlertStore) Update(id uint, updates map[string]interface{}) (*HealthAlert, error) {
	var alert HealthAlert
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&alert, id).Error; err != nil {
			return err
		}
		updates["updated_at"] = time.Now()
		if err := tx.Model(&alert).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&alert, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// SetResolved flips the is_resolved flag. Returns (nil, nil) when absent.
func (s *AlertStore) SetResolved(id uint, resolved bool) (*HealthAlert, error) {
	return s.Update(id, map[string]interface{}{"is_resolved": resolved})
}

// Delete removes an alert row. Returns false when no row existed.
func (s *AlertStore) Delete(id uint) (bool, error) {
	var deleted bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&HealthAlert{}, id)
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// CountAll returns the total number of alerts
func (s *AlertStore) CountAll() (int64, error) {
	var count int64
	err := s.db.Model(&HealthAlert{}).Count(&count).Error
	return count, err
}

// CountUnresolved returns the number of alerts with is_resolved = false
func (s *AlertStore) CountUnresolved() (int64, error) {
	var count int64
	err := s.db.Model(&HealthAlert{}).Where("is_resolved = ?", false).Count(&count).Error
	return count, err
}

// CountByAIPriority returns the number of alerts with the given AI priority
func (s *AlertStore) CountByAIPriority(priority string) (int64, error) {
	var count int64
	err := s.db.Model(&HealthAlert{}).Where("ai_priority = ?", priority).Count(&count).Error
	return count, err
}

// CountUncategorized returns the number of alerts with no AI category set
func (s *AlertStore) CountUncategorized() (int64, error) {
	var count int64
	err := s.db.Model(&HealthAlert{}).Where("ai_category IS NULL").Count(&count).Error
	return count, err
}

// CountByCategory returns the number of alerts with the given raw category
func (s *AlertStore) CountByCategory(category string) (int64, error) {
	var count int64
	err := s.db.Model(&HealthAlert{}).Where("category = ?", category).Count(&count).Error
	return count, err
}

// AICategoryCount is one row of the dynamic ai_category grouping
type AICategoryCount struct {
	AICategory string
	Count      int64
}

// CountGroupedByAICategory returns counts grouped by ai_category,
// skipping alerts that have not been categorized
func (s *AlertStore) CountGroupedByAICategory() ([]AICategoryCount, error) {
	var rows []AICategoryCount
	err := s.db.Model(&HealthAlert{}).
		Select("ai_category, count(id) as count").
		Where("ai_category IS NOT NULL").
		Group("ai_category").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
