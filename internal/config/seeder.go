package config

import (
	"context"
	"errors"
	"log/slog"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/core/domain"
	"estate-commission/internal/pkg/password"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db  *gorm.DB
	cfg *Config
	log *slog.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, cfg *Config, log *slog.Logger) *Seeder {
	return &Seeder{db: db, cfg: cfg, log: log.With(slog.String("component", "seeder"))}
}

// Run executes all seeders. Failures are logged and skipped.
func (s *Seeder) Run() error {
	s.log.Info("running database seeders")

	if err := s.seedAdminUser(); err != nil {
		s.log.Warn("admin seeder skipped", slog.Any("error", err))
	}

	if s.cfg.IsDev() {
		if err := s.seedProjects(); err != nil {
			s.log.Warn("project seeder skipped", slog.Any("error", err))
		}
	}

	s.log.Info("database seeding completed")
	return nil
}

// seedAdminUser creates the first admin when none exists.
// In production SEED_ADMIN_PASSWORD must be set explicitly.
func (s *Seeder) seedAdminUser() error {
	users := repositories.NewUserRepository(s.db)
	count, err := users.CountByRole(context.Background(), string(domain.RoleAdmin))
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	pass := getEnv("SEED_ADMIN_PASSWORD", "")
	if pass == "" {
		if s.cfg.IsProd() {
			return errors.New("SEED_ADMIN_PASSWORD is not set")
		}
		pass = "admin123456"
	}

	hashed, err := password.Hash(pass)
	if err != nil {
		return err
	}

	admin := &models.User{
		Username: getEnv("SEED_ADMIN_USERNAME", "admin"),
		Email:    getEnv("SEED_ADMIN_EMAIL", "admin@estate.local"),
		Password: hashed,
		Role:     domain.RoleAdmin,
		IsActive: true,
	}
	if err := users.Create(context.Background(), admin); err != nil {
		return err
	}

	s.log.Info("admin user created", slog.String("username", admin.Username))
	return nil
}

// seedProjects adds a demo project with one overriding unit
func (s *Seeder) seedProjects() error {
	projects := []struct {
		project models.Project
		units   []models.Unit
	}{
		{
			project: models.Project{
				Code:           "RIVERSIDE",
				Name:           "Riverside Residence",
				CommissionRate: decimal.NewNullDecimal(decimal.RequireFromString("2.5")),
			},
			units: []models.Unit{
				{UnitNo: "A-101"},
				{UnitNo: "PH-01", CommissionRate: decimal.NewNullDecimal(decimal.RequireFromString("4"))},
			},
		},
		{
			project: models.Project{Code: "PARKVIEW", Name: "Parkview Townhomes"},
			units:   []models.Unit{{UnitNo: "T-01"}, {UnitNo: "T-02"}},
		},
	}

	for _, p := range projects {
		var existing models.Project
		err := s.db.Where("code = ?", p.project.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			project := p.project
			if err := tx.Create(&project).Error; err != nil {
				return err
			}
			for _, u := range p.units {
				u.ProjectID = project.ID
				if err := tx.Create(&u).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		s.log.Info("project created", slog.String("code", p.project.Code), slog.Int("units", len(p.units)))
	}
	return nil
}
