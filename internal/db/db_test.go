package db

import (
	"strings"
	"testing"

	"github.com/zulandar/sponsormatch/internal/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		database string
		want     string
	}{
		{
			name:     "default local",
			cfg:      config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root"},
			database: "sponsormatch",
			want:     "root@tcp(127.0.0.1:3306)/sponsormatch?parseTime=true",
		},
		{
			name:     "with password",
			cfg:      config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, User: "app", Password: "pw"},
			database: "sm_prod",
			want:     "app:pw@tcp(10.0.0.5:3307)/sm_prod?parseTime=true",
		},
		{
			name:     "admin without database",
			cfg:      config.DatabaseConfig{Host: "db.internal", Port: 3306, User: "root"},
			database: "",
			want:     "root@tcp(db.internal:3306)/?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 8 {
		t.Errorf("len(AllModels()) = %d, want 8", got)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), `unsupported driver "oracle"`) {
		t.Errorf("error = %q", err.Error())
	}
}

func TestAutoMigrateAndSeed_SQLite(t *testing.T) {
	gdb, err := ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("ConnectSQLite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	cfg, err := config.Parse([]byte("database: {driver: sqlite, path: ':memory:'}"))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	if err := SeedRolePairs(gdb, cfg); err != nil {
		t.Fatalf("SeedRolePairs: %v", err)
	}
	// Seeding twice is an upsert.
	cfg.Roles.BSide = "venue"
	if err := SeedRolePairs(gdb, cfg); err != nil {
		t.Fatalf("SeedRolePairs (again): %v", err)
	}

	pairs, err := RolePairs(gdb)
	if err != nil {
		t.Fatalf("RolePairs: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("len(pairs) = %d, want 2", len(pairs))
	}
	if pairs[0].Kind != "connection" || pairs[1].Kind != "interest" {
		t.Errorf("kinds = %q, %q", pairs[0].Kind, pairs[1].Kind)
	}
	for _, p := range pairs {
		if p.ASideRole != "brand" || p.BSideRole != "venue" {
			t.Errorf("pair %q roles = %q/%q", p.Kind, p.ASideRole, p.BSideRole)
		}
	}
}
