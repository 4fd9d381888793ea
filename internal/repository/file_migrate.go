package repository

import (
	"errors"
	"fmt"
	"os"

	"github.com/atinyakov/GTDKeeper/internal/passhash"
)

// BackupSuffix is appended to the users file name for the pre-migration copy.
const BackupSuffix = ".backup"

// PasswordMigration summarizes a MigratePasswords run.
type PasswordMigration struct {
	Migrated      []string
	AlreadyHashed []string
	// Pending lists accounts without a password, waiting for setup.
	Pending []string
	Backup  string
}

// MigratePasswords rewrites every plaintext password in the users file at
// path as a salted hash. The original file is copied to path+BackupSuffix
// first. Fields it does not know about are preserved.
func MigratePasswords(path string) (PasswordMigration, error) {
	var res PasswordMigration

	raw, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	res.Backup = path + BackupSuffix
	if err := os.WriteFile(res.Backup, raw, 0o600); err != nil {
		return res, fmt.Errorf("write backup: %w", err)
	}

	users := map[string]map[string]any{}
	found, err := readJSON(path, &users)
	if err != nil {
		return res, err
	}
	if !found {
		return res, errors.New("users file disappeared during migration")
	}

	for name, rec := range users {
		pw, ok := rec["password"].(string)
		switch {
		case !ok || pw == "":
			res.Pending = append(res.Pending, name)
		case passhash.IsHashed(pw):
			res.AlreadyHashed = append(res.AlreadyHashed, name)
		default:
			h, err := passhash.Hash(pw)
			if err != nil {
				return res, err
			}
			rec["password"] = h
			res.Migrated = append(res.Migrated, name)
		}
	}

	if len(res.Migrated) == 0 {
		return res, nil
	}
	return res, writeJSON(path, users)
}
