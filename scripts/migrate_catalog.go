package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"campusbook/internal/config"
	"campusbook/internal/database"
	"campusbook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type catalogConfig struct {
	Facilities []models.Facility  `yaml:"facilities"`
	Equipment  []models.Equipment `yaml:"equipment"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/campusbook.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var catalog catalogConfig
	if err = yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(catalog.Facilities) == 0 {
		return fmt.Errorf("no facilities in yaml")
	}

	if err = config.ValidateFacilities(catalog.Facilities); err != nil {
		return fmt.Errorf("validate facilities: %w", err)
	}
	if err = config.ValidateEquipment(catalog.Equipment); err != nil {
		return fmt.Errorf("validate equipment: %w", err)
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err = db.SeedFacilities(ctx, catalog.Facilities); err != nil {
		return fmt.Errorf("seed facilities: %w", err)
	}
	if err = db.SeedEquipment(ctx, catalog.Equipment); err != nil {
		return fmt.Errorf("seed equipment: %w", err)
	}

	fmt.Printf("done: facilities=%d equipment=%d\n", len(catalog.Facilities), len(catalog.Equipment))
	return nil
}
