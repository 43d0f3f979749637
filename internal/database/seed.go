package database

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// seedAlert mirrors HealthAlert for the YAML fixture format
type seedAlert struct {
	Title            string `yaml:"title"`
	Description      string `yaml:"description"`
	Category         string `yaml:"category"`
	SourceSystem     string `yaml:"source_system"`
	RawData          string `yaml:"raw_data"`
	AICategory       string `yaml:"ai_category"`
	AIPriority       string `yaml:"ai_priority"`
	AISummary        string `yaml:"ai_summary"`
	AIRecommendation string `yaml:"ai_recommendation"`
	IsResolved       bool   `yaml:"is_resolved"`
}

type seedFile struct {
	Alerts []seedAlert `yaml:"alerts"`
}

// SeedFromFile loads mock alerts from a YAML fixture into an empty database.
// It is a no-op when the health_alerts table already has rows, so restarting
// the service never duplicates seed data. Returns the number of alerts created.
func SeedFromFile(db *gorm.DB, path string) (int, error) {
	var count int64
	if err := db.Model(&HealthAlert{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count existing alerts: %w", err)
	}
	if count > 0 {
		log.Printf("Seed skipped: %d alerts already present", count)
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	created := 0
	for _, sa := range file.Alerts {
		alert := HealthAlert{
			Title:        sa.Title,
			Description:  sa.Description,
			Category:     sa.Category,
			SourceSystem: sa.SourceSystem,
			RawData:      sa.RawData,
			IsResolved:   sa.IsResolved,
		}
		if sa.AICategory != "" {
			alert.AICategory = &sa.AICategory
		}
		if sa.AIPriority != "" {
			alert.AIPriority = &sa.AIPriority
		}
		if sa.AISummary != "" {
			alert.AISummary = &sa.AISummary
		}
		if sa.AIRecommendation != "" {
			alert.AIRecommendation = &sa.AIRecommendation
		}

		if err := db.Create(&alert).Error; err != nil {
			return created, fmt.Errorf("failed to seed alert %q: %w", sa.Title, err)
		}
		created++
	}

	log.Printf("Seeded database with %d alerts from %s", created, path)
	return created, nil
}
