package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atinyakov/GTDKeeper/internal/models"
	"github.com/atinyakov/GTDKeeper/internal/repository"
	"github.com/atinyakov/GTDKeeper/internal/service"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResetAdmin_FileBackend(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	creds := repository.NewFileCredentialRepository(dir)
	sessions := repository.NewFileSessionRepository(dir)
	auth := service.NewAuthService(creds, sessions, repository.NewFileTaskRepository(dir), nil)
	if err := auth.Init(ctx, "forgotten"); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "reset-admin", "--data", dir); err != nil {
		t.Fatalf("reset-admin: %v", err)
	}

	res, err := auth.Login(ctx, "admin", "")
	if err != nil || !res.NeedsSetup {
		t.Fatalf("login after reset = %+v, %v; want NeedsSetup", res, err)
	}
	if _, err := auth.SetPassword(ctx, "admin", "fresh"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
}

func TestResetAdmin_RecreatesMissingAdmin(t *testing.T) {
	creds := repository.NewFileCredentialRepository(t.TempDir())

	if err := resetAdmin(context.Background(), creds); err != nil {
		t.Fatalf("resetAdmin: %v", err)
	}
	acc, err := creds.GetAccount(context.Background(), models.AdminUsername)
	if err != nil || acc == nil || !acc.IsAdmin || !acc.NeedsPasswordReset {
		t.Errorf("admin = %+v, %v", acc, err)
	}
}

func TestResetAdmin_FlagErrors(t *testing.T) {
	if _, err := run(t, "reset-admin"); err == nil {
		t.Error("expected error without a backend")
	}
	if _, err := run(t, "reset-admin", "--data", "x", "--dsn", "y"); err == nil {
		t.Error("expected error with both backends")
	}
}

func TestMigratePasswordsCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(`{"alice": {"password": "pw", "isAdmin": false}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "migrate-passwords", "--users", path)
	if err != nil {
		t.Fatalf("migrate-passwords: %v", err)
	}
	if !strings.Contains(out, "Migrated:       1 (alice)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(path + repository.BackupSuffix); err != nil {
		t.Errorf("backup missing: %v", err)
	}
}

func TestCertgenCmd(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")

	out, err := run(t, "certgen", "--dir", dir, "--host", "localhost", "--host", "127.0.0.1")
	if err != nil {
		t.Fatalf("certgen: %v", err)
	}
	for _, f := range []string{"server.crt", "server.key"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("%s not written: %v", f, err)
		}
	}
	if !strings.Contains(out, "server.crt") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
