package main

import (
	"fmt"

	"github.com/ardentforge/branchctl/pkg/storage"
)

// runMigrateCommand opens the configured storage DSN, which itself runs any
// pending schema migrations, then reports the resulting schema version.
func runMigrateCommand(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return withExitCode(err, 2)
	}

	store, err := storage.New(cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	version, err := store.GetSchemaVersion()
	if err != nil {
		return err
	}

	fmt.Printf("schema at version %d (%s)\n", version, cfg.Storage.DSN)
	return nil
}
