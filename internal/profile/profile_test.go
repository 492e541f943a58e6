package profile

import (
	"testing"
)

func setupTestConfig(t *testing.T) func() {
	t.Helper()
	tmpDir := t.TempDir()
	origFunc := configDirFunc
	configDirFunc = func() (string, error) {
		return tmpDir, nil
	}
	return func() {
		configDirFunc = origFunc
	}
}

func TestAdd_NewProfile(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	err := Add(Profile{Name: "prod", ConnStr: "postgres://localhost/prod"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	profiles, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	if profiles[0].Name != "prod" {
		t.Errorf("Name = %q, want prod", profiles[0].Name)
	}
	if profiles[0].ConnStr != "postgres://localhost/prod" {
		t.Errorf("ConnStr = %q", profiles[0].ConnStr)
	}
}

func TestAdd_UpdateExisting(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://localhost/prod_v1"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := Add(Profile{Name: "prod", ConnStr: "postgres://localhost/prod_v2", SlowThresholdMs: 500}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	profiles, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile after update, got %d", len(profiles))
	}
	if profiles[0].ConnStr != "postgres://localhost/prod_v2" {
		t.Errorf("ConnStr not updated: %q", profiles[0].ConnStr)
	}
	if profiles[0].SlowThresholdMs != 500 {
		t.Errorf("SlowThresholdMs not updated: %v", profiles[0].SlowThresholdMs)
	}
}

func TestAdd_MultipleProfiles(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://prod-host/db"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := Add(Profile{Name: "dev", ConnStr: "postgres://localhost/db"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := Add(Profile{Name: "staging", ConnStr: "postgres://staging-host/db"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	profiles, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 3 {
		t.Errorf("expected 3 profiles, got %d", len(profiles))
	}
}

func TestAdd_OfflineProfile(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	err := Add(Profile{Name: "local", ThresholdsPath: "rank.yaml", SlowThresholdMs: 2000})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	p, err := Resolve("local")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.ConnStr != "" {
		t.Errorf("ConnStr = %q, want empty", p.ConnStr)
	}
	if p.ThresholdsPath != "rank.yaml" {
		t.Errorf("ThresholdsPath = %q", p.ThresholdsPath)
	}
}

func TestRemove_Existing(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://localhost/prod"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := Add(Profile{Name: "dev", ConnStr: "postgres://localhost/dev"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	err := Remove("prod")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	profiles, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile after remove, got %d", len(profiles))
	}
	if profiles[0].Name != "dev" {
		t.Errorf("remaining profile = %q, want dev", profiles[0].Name)
	}
}

func TestRemove_NonExistent(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://localhost/prod"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	err := Remove("staging")
	if err == nil {
		t.Fatal("expected error when removing non-existent profile")
	}
}

func TestRemove_ClearsDefault(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://localhost/prod"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := SetDefault("prod"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	if err := Remove("prod"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	defaultName, err := GetDefault()
	if err != nil {
		t.Fatalf("GetDefault failed: %v", err)
	}
	if defaultName != "" {
		t.Errorf("default = %q, want empty after remove", defaultName)
	}
}

func TestResolve_ExistingProfile(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://prod-host/db"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	p, err := Resolve("prod")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.ConnStr != "postgres://prod-host/db" {
		t.Errorf("ConnStr = %q", p.ConnStr)
	}
}

func TestResolve_NonExistent(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	_, err := Resolve("nonexistent")
	if err == nil {
		t.Fatal("expected error for non-existent profile")
	}
}

func TestResolve_NoConfigFile(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	_, err := Resolve("anything")
	if err == nil {
		t.Fatal("expected error when no config file exists")
	}
}

func TestActive_ExplicitName(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", SlowThresholdMs: 250}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := Add(Profile{Name: "dev", SlowThresholdMs: 5000}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := SetDefault("dev"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	p, err := Active("prod")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if p.Name != "prod" {
		t.Errorf("Name = %q, want prod", p.Name)
	}
}

func TestActive_DefaultFallback(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "dev", SlowThresholdMs: 5000}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := SetDefault("dev"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	p, err := Active("")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if p.Name != "dev" {
		t.Errorf("Name = %q, want dev", p.Name)
	}
}

func TestActive_NoConfig(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	p, err := Active("")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if p.Name != "" || p.ConnStr != "" {
		t.Errorf("expected zero profile, got %+v", p)
	}
}

func TestSetDefault(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://prod-host/db"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := Add(Profile{Name: "dev", ConnStr: "postgres://localhost/db"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	err := SetDefault("prod")
	if err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	defaultName, err := GetDefault()
	if err != nil {
		t.Fatalf("GetDefault failed: %v", err)
	}
	if defaultName != "prod" {
		t.Errorf("default = %q, want prod", defaultName)
	}
}

func TestSetDefault_NonExistent(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	err := SetDefault("nonexistent")
	if err == nil {
		t.Fatal("expected error when setting non-existent profile as default")
	}
}

func TestClearDefault(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://prod-host/db"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := SetDefault("prod"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	err := ClearDefault()
	if err != nil {
		t.Fatalf("ClearDefault failed: %v", err)
	}

	defaultName, err := GetDefault()
	if err != nil {
		t.Fatalf("GetDefault failed: %v", err)
	}
	if defaultName != "" {
		t.Errorf("default = %q, want empty", defaultName)
	}
}

func TestResolveConnStr_DbFlag(t *testing.T) {
	connStr, err := ResolveConnStr("postgres://direct/db", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if connStr != "postgres://direct/db" {
		t.Errorf("ConnStr = %q", connStr)
	}
}

func TestResolveConnStr_ProfileFlag(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://prod-host/db"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	connStr, err := ResolveConnStr("", "prod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if connStr != "postgres://prod-host/db" {
		t.Errorf("ConnStr = %q", connStr)
	}
}

func TestResolveConnStr_DefaultFallback(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://prod-host/db"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := SetDefault("prod"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	connStr, err := ResolveConnStr("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if connStr != "postgres://prod-host/db" {
		t.Errorf("ConnStr = %q, want prod connection", connStr)
	}
}

func TestResolveConnStr_NoFlags_NoDefault(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	connStr, err := ResolveConnStr("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if connStr != "" {
		t.Errorf("ConnStr = %q, want empty", connStr)
	}
}

func TestWriteTemplate(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	path, err := WriteTemplate(false)
	if err != nil {
		t.Fatalf("WriteTemplate failed: %v", err)
	}
	if path == "" {
		t.Fatal("expected non-empty path")
	}

	_, err = WriteTemplate(false)
	if err == nil {
		t.Fatal("expected error when config already exists")
	}

	if _, err := WriteTemplate(true); err != nil {
		t.Fatalf("WriteTemplate with force failed: %v", err)
	}
}

func TestList_EmptyConfig(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	profiles, err := List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profiles != nil {
		t.Errorf("expected nil profiles, got %v", profiles)
	}
}
