package config

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_MODE", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.True(t, cfg.Commission.DefaultSaleRate.Equal(DefaultCommissionConfig().DefaultSaleRate))
	assert.True(t, cfg.Commission.CapRentals)
	assert.Equal(t, 3, cfg.Commission.RequiredDocuments)
	assert.Equal(t, "PV", cfg.Voucher.Prefix)
	assert.Equal(t, 7*24*time.Hour, cfg.Notification.TTL)
	assert.Equal(t, "*", cfg.GetAllowedOrigins())
	assert.Same(t, cfg, AppConfig)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_MODE", "prod")
	t.Setenv("PROD_DB_HOST", "db.internal")
	t.Setenv("COMMISSION_DEFAULT_SALE_RATE", "2.75")
	t.Setenv("COMMISSION_CAP_RENTALS", "false")
	t.Setenv("VOUCHER_TEMPLATE", "receipt")
	t.Setenv("NOTIFICATION_TTL_DAYS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "2.75", cfg.Commission.DefaultSaleRate.String())
	assert.False(t, cfg.Commission.CapRentals)
	assert.Equal(t, "receipt", cfg.Voucher.Template)
	assert.Equal(t, 30*24*time.Hour, cfg.Notification.TTL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"mode", map[string]string{"APP_MODE": "staging"}},
		{"template", map[string]string{"VOUCHER_TEMPLATE": "fancy"}},
		{"rate", map[string]string{"COMMISSION_DEFAULT_SALE_RATE": "three"}},
		{"caps", map[string]string{"COMMISSION_MIN": "60000", "COMMISSION_MAX": "50000"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("APP_MODE", "dev")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestBuildDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", DBName: "estate"}

	assert.Equal(t, "u:p@tcp(h:5432)/estate?charset=utf8mb4&parseTime=True&loc=Local", buildMySQLDSN(d))
	assert.Contains(t, buildPostgresDSN(d), "dbname=estate")
	assert.Contains(t, buildPostgresDSN(d), "TimeZone=UTC")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestSeeder(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:seeder?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	t.Setenv("SEED_ADMIN_USERNAME", "root")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	seeder := NewSeeder(db, &Config{AppMode: "dev"}, log)

	// Seeding twice is a no-op the second time
	require.NoError(t, seeder.Run())
	require.NoError(t, seeder.Run())

	var admins []models.User
	require.NoError(t, db.Where("role = ?", domain.RoleAdmin).Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "root", admins[0].Username)

	var projects, units int64
	db.Model(&models.Project{}).Count(&projects)
	db.Model(&models.Unit{}).Count(&units)
	assert.Equal(t, int64(2), projects)
	assert.Equal(t, int64(4), units)
}

func TestSeeder_ProdRequiresPassword(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:seeder_prod?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	seeder := NewSeeder(db, &Config{AppMode: "prod"}, log)
	require.NoError(t, seeder.Run())

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.Zero(t, count)
}
