package core

import (
	"fmt"
	"os"

	"casecore/internal/infra/persistence/memory"
	"casecore/internal/infra/persistence/postgres"
	"casecore/internal/infra/persistence/sqlite"
	"casecore/pkg/domain"
)

// StorageDriver identifies a concrete backend implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenBackend selects a backend using environment variables. Defaults to
// sqlite when unset.
//
//	CASECORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	CASECORE_SQLITE_PATH: path to sqlite file (default ./casecore.db)
//	CASECORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenBackend() (domain.Backend, error) {
	driver := os.Getenv("CASECORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.New(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("CASECORE_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("CASECORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
