package infrastructure

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/media-fetch-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// filterColumns are the request columns FindAll accepts as filters
var filterColumns = map[string]bool{
	"state":        true,
	"kind":         true,
	"resource_id":  true,
	"failure_kind": true,
}

// SQLiteRequestRepository implements RequestRepository using SQLite
type SQLiteRequestRepository struct {
	db *gorm.DB
}

// NewSQLiteRequestRepository creates a new SQLite repository
func NewSQLiteRequestRepository(dbPath string) (*SQLiteRequestRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Request{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteRequestRepository{db: db}, nil
}

// Create creates a new request
func (r *SQLiteRequestRepository) Create(req *domain.Request) error {
	return r.db.Create(req).Error
}

// Update updates an existing request
func (r *SQLiteRequestRepository) Update(req *domain.Request) error {
	return r.db.Save(req).Error
}

// Delete deletes a request by ID
func (r *SQLiteRequestRepository) Delete(id string) error {
	result := r.db.Delete(&domain.Request{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID finds a request by ID. Returns nil if not found.
func (r *SQLiteRequestRepository) FindByID(id string) (*domain.Request, error) {
	var req domain.Request
	err := r.db.First(&req, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// FindOpen finds the oldest unfinished request for a resource and kind.
// Returns nil if there is none.
func (r *SQLiteRequestRepository) FindOpen(resourceID domain.ResourceID, kind domain.RequestKind) (*domain.Request, error) {
	open := append([]domain.RequestState{domain.StateRequested}, domain.ActiveStates...)

	var req domain.Request
	err := r.db.Where("resource_id = ? AND kind = ? AND state IN ?", resourceID, kind, open).
		Order("created_at ASC").
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// FindPending finds all requests waiting for a worker, oldest first
func (r *SQLiteRequestRepository) FindPending() ([]*domain.Request, error) {
	var requests []*domain.Request
	err := r.db.Where("state = ?", domain.StateRequested).
		Order("created_at ASC").
		Find(&requests).Error
	return requests, err
}

// FindAll finds all requests with optional filters, newest first
func (r *SQLiteRequestRepository) FindAll(filters map[string]interface{}) ([]*domain.Request, error) {
	var requests []*domain.Request
	query := r.db

	for key, value := range filters {
		if !filterColumns[key] {
			return nil, fmt.Errorf("unsupported filter: %s", key)
		}
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}

	err := query.Order("created_at DESC").Find(&requests).Error
	return requests, err
}

// ResetOrphaned fails requests left in an active state by a previous
// process. Their work directories are gone, so they cannot resume.
func (r *SQLiteRequestRepository) ResetOrphaned() (int64, error) {
	now := time.Now()
	result := r.db.Model(&domain.Request{}).
		Where("state IN ?", domain.ActiveStates).
		Updates(map[string]interface{}{
			"state":         domain.StateFailed,
			"failure_kind":  domain.ErrTransferFailed,
			"error_message": "interrupted by shutdown",
			"completed_at":  now,
			"updated_at":    now,
		})
	return result.RowsAffected, result.Error
}

// GetStats returns request statistics
func (r *SQLiteRequestRepository) GetStats() (*domain.RequestStats, error) {
	stats := &domain.RequestStats{}

	if err := r.db.Model(&domain.Request{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	stateCounts := []struct {
		State domain.RequestState
		Count int64
	}{}

	if err := r.db.Model(&domain.Request{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&stateCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range stateCounts {
		switch sc.State {
		case domain.StateRequested:
			stats.Requested = sc.Count
		case domain.StateDelivered:
			stats.Delivered = sc.Count
		case domain.StateFailed:
			stats.Failed = sc.Count
		case domain.StateCancelled:
			stats.Cancelled = sc.Count
		default:
			stats.Active += sc.Count
		}
	}

	if err := r.db.Model(&domain.Request{}).
		Where("state = ?", domain.StateDelivered).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&stats.BytesTotal).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteRequestRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
