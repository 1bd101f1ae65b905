package db

import (
	"strings"
	"testing"

	"github.com/zulandar/leadyard/internal/config"
	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		host     string
		port     int
		database string
		want     string
	}{
		{
			name:     "default local",
			user:     "root",
			host:     "127.0.0.1",
			port:     3306,
			database: "leadyard",
			want:     "root@tcp(127.0.0.1:3306)/leadyard?parseTime=true",
		},
		{
			name:     "with password",
			user:     "leadyard",
			password: "pw",
			host:     "10.0.0.5",
			port:     3307,
			database: "leadyard_prod",
			want:     "leadyard:pw@tcp(10.0.0.5:3307)/leadyard_prod?parseTime=true",
		},
		{
			name: "admin no database",
			user: "root",
			host: "db.internal",
			port: 3306,
			want: "root@tcp(db.internal:3306)/?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.user, tt.password, tt.host, tt.port, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, false)
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unsupported driver")
	}
}

func TestConnect_Error(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := Connect(config.DatabaseConfig{User: "root", Host: "127.0.0.1", Port: 1, Name: "nonexistent"}, false)
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: connect to")
	}
}

func TestConnectAdmin_Error(t *testing.T) {
	_, err := ConnectAdmin(config.DatabaseConfig{User: "root", Host: "127.0.0.1", Port: 1})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: admin connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: admin connect to")
	}
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir() + "/leadyard.db"}, false)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestAutoMigrate_SQLite(t *testing.T) {
	db := openSQLite(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, table := range []string{
		"profiles", "projects", "assessments", "assessment_recommendations",
		"leads", "lead_events", "lead_purchases", "project_matches",
	} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("table %q not created", table)
		}
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 8 {
		t.Errorf("AllModels() returned %d models, want 8", got)
	}
}

func TestSeedProfiles_Upserts(t *testing.T) {
	db := openSQLite(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	seed := []SeedProfile{
		{ID: "c-1", Role: models.RoleContractor, FullName: "Ramp Co", City: "Austin", Skills: []string{"Ramp Installation"}},
		{ID: "h-1", Role: models.RoleHomeowner, FullName: "Dana"},
	}
	if err := SeedProfiles(db, seed); err != nil {
		t.Fatalf("SeedProfiles: %v", err)
	}

	seed[0].City = "Dallas"
	if err := SeedProfiles(db, seed[:1]); err != nil {
		t.Fatalf("SeedProfiles again: %v", err)
	}

	var count int64
	db.Model(&models.Profile{}).Count(&count)
	if count != 2 {
		t.Errorf("profile count = %d, want 2", count)
	}

	var p models.Profile
	if err := db.First(&p, "id = ?", "c-1").Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if p.City != "Dallas" {
		t.Errorf("City = %q, want Dallas after upsert", p.City)
	}
	if p.Skills != `["Ramp Installation"]` {
		t.Errorf("Skills = %q", p.Skills)
	}
}

func TestSeedProfiles_EmptySlice(t *testing.T) {
	if err := SeedProfiles(nil, []SeedProfile{}); err != nil {
		t.Errorf("SeedProfiles(nil, []) = %v, want nil", err)
	}
}

func TestMarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{name: "nil returns empty", input: nil, want: ""},
		{name: "string slice", input: []string{"Ramp Installation", "Grab Bars"}, want: `["Ramp Installation","Grab Bars"]`},
		{name: "map", input: map[string]interface{}{"idempotency_key": "k1"}, want: `{"idempotency_key":"k1"}`},
		{name: "empty slice", input: []string{}, want: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalJSON(tt.input)
			if err != nil {
				t.Fatalf("MarshalJSON() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("MarshalJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarshalJSON_Error(t *testing.T) {
	if _, err := MarshalJSON(make(chan int)); err == nil {
		t.Fatal("expected error marshaling channel")
	}
}
