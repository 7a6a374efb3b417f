package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/newsbot/core/config"
	coredatabase "github.com/m3rciful/newsbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunRequiresConfig(t *testing.T) {
	if _, err := Run(Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunMemoryDriverSkipsDatabase(t *testing.T) {
	connected := false
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverMemory},
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, errors.New("unexpected connect")
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if connected {
		t.Fatal("memory driver must not open a connection")
	}
	if res.DB != nil {
		t.Fatal("memory driver must not return a DB handle")
	}
}

func TestRunConnectAndMigrate(t *testing.T) {
	var migrated *sqlx.DB
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ":memory:"},
		LoggerInit: noLogger,
		Migrate: func(_ coredatabase.Config, db *sqlx.DB) error {
			migrated = db
			return nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer res.DB.Close()
	if migrated == nil || migrated != res.DB {
		t.Fatal("migrations must run on the opened handle")
	}
}

func TestRunMigrationFailureCloses(t *testing.T) {
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ":memory:"},
		LoggerInit: noLogger,
		Migrate: func(coredatabase.Config, *sqlx.DB) error {
			return errors.New("dirty")
		},
	})
	if err == nil {
		t.Fatal("expected migration error")
	}
}
