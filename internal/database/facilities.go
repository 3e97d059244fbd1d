package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"campusbook/internal/models"
)

// SeedFacilities mirrors the configured facility list into the database and
// the in-memory cache. Existing rows are updated in place so IDs stay stable
// across restarts.
func (db *DB) SeedFacilities(ctx context.Context, facilities []models.Facility) error {
	now := time.Now()
	query := `INSERT INTO facilities (id, name, location, capacity, sort_order, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  name = excluded.name,
                  location = excluded.location,
                  capacity = excluded.capacity,
                  sort_order = excluded.sort_order,
                  is_active = excluded.is_active,
                  updated_at = excluded.updated_at`

	for _, f := range facilities {
		if _, err := db.ExecContext(ctx, query, f.ID, f.Name, f.Location, f.Capacity, f.SortOrder, f.IsActive, now, now); err != nil {
			return fmt.Errorf("failed to seed facility %d: %w", f.ID, err)
		}
	}

	db.mu.Lock()
	db.facilitiesCache = make(map[int64]models.Facility, len(facilities))
	for _, f := range facilities {
		db.facilitiesCache[f.ID] = f
	}
	db.mu.Unlock()

	return nil
}

// SeedEquipment mirrors the configured equipment catalog, same contract as
// SeedFacilities.
func (db *DB) SeedEquipment(ctx context.Context, equipment []models.Equipment) error {
	now := time.Now()
	query := `INSERT INTO equipment (id, name, description, total_quantity, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  name = excluded.name,
                  description = excluded.description,
                  total_quantity = excluded.total_quantity,
                  is_active = excluded.is_active,
                  updated_at = excluded.updated_at`

	for _, e := range equipment {
		if _, err := db.ExecContext(ctx, query, e.ID, e.Name, e.Description, e.TotalQuantity, e.IsActive, now, now); err != nil {
			return fmt.Errorf("failed to seed equipment %d: %w", e.ID, err)
		}
	}

	db.mu.Lock()
	db.equipmentCache = make(map[int64]models.Equipment, len(equipment))
	for _, e := range equipment {
		db.equipmentCache[e.ID] = e
	}
	db.mu.Unlock()

	return nil
}

func (db *DB) GetFacilityByID(id int64) (*models.Facility, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	f, ok := db.facilitiesCache[id]
	if !ok {
		return nil, ErrFacilityNotFound
	}
	return &f, nil
}

func (db *DB) GetEquipmentByID(id int64) (*models.Equipment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.equipmentCache[id]
	if !ok {
		return nil, ErrEquipmentNotFound
	}
	return &e, nil
}

func (db *DB) GetActiveFacilities() []models.Facility {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.Facility, 0, len(db.facilitiesCache))
	for _, f := range db.facilitiesCache {
		if f.IsActive {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder == out[j].SortOrder {
			return out[i].ID < out[j].ID
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}
