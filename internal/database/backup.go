package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"campusbook/internal/config"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// snapshotPrefix marks files the backup service owns; cleanup never touches
// anything else in the storage directory.
const snapshotPrefix = "bookings_"

// BackupService snapshots the booking database on a schedule. Bookings,
// signatory decisions and the mail outbox live only in sqlite, so a lost
// database file means lost approval history.
type BackupService struct {
	dbPath string
	config config.BackupConfig
	logger *zerolog.Logger
}

func NewBackupService(dbPath string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		dbPath: dbPath,
		config: cfg,
		logger: logger,
	}
}

// Start runs the snapshot loop until ctx is canceled. An unparsable schedule
// falls back to daily.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Booking database backups disabled")
		return
	}

	interval := 24 * time.Hour
	if s.config.Schedule != "" {
		if d, err := time.ParseDuration(s.config.Schedule); err == nil {
			interval = d
		} else {
			s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("Bad backup schedule, using 24h")
		}
	}

	s.logger.Info().Dur("interval", interval).Str("dir", s.config.StoragePath).Msg("Booking database backups started")

	// снимок сразу при старте, не дожидаясь первого тика
	if err := s.Snapshot(); err != nil {
		s.logger.Error().Err(err).Msg("Startup snapshot failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Snapshot(); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled snapshot failed")
			}
			s.PruneSnapshots()
		}
	}
}

// Snapshot writes a timestamped copy of the booking database into the
// storage directory. VACUUM INTO gives a consistent snapshot while the
// service keeps writing; a raw file copy is the fallback.
func (s *BackupService) Snapshot() error {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")
	target := filepath.Join(s.config.StoragePath, snapshotPrefix+stamp+".db")

	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("open booking database: %w", err)
	}
	defer db.Close()

	if _, err = db.Exec(fmt.Sprintf("VACUUM INTO '%s'", target)); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, copying the database file instead")
		if err := s.copySnapshot(target); err != nil {
			return err
		}
	}

	s.logger.Info().Str("path", target).Msg("Booking database snapshot written")
	return nil
}

func (s *BackupService) copySnapshot(target string) error {
	source, err := os.Open(s.dbPath)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(target)
	if err != nil {
		return err
	}
	defer destination.Close()

	// копия без VACUUM может поймать базу посреди записи
	_, err = io.Copy(destination, source)
	return err
}

// PruneSnapshots removes snapshots older than the retention window. Only
// files carrying the snapshot prefix are candidates.
func (s *BackupService) PruneSnapshots() {
	if s.config.RetentionDays <= 0 {
		return
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), snapshotPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", entry.Name()).Msg("Pruning expired snapshot")
			os.Remove(filepath.Join(s.config.StoragePath, entry.Name()))
		}
	}
}
