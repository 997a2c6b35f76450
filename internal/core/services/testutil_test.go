package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/config"
	"estate-commission/internal/core/domain"
	"estate-commission/internal/pkg/mailer"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	adminActor = domain.Actor{UserID: 1, Role: domain.RoleAdmin}
	bg         = context.Background()
)

func agentActor(agentID uint) domain.Actor {
	return domain.Actor{UserID: 100 + agentID, AgentID: &agentID, Role: domain.RoleAgent}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func uintPtr(v uint) *uint {
	return &v
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMailer records messages and fails when err is set
type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// memCache is an in-process SummaryCache
type memCache struct {
	mu    sync.Mutex
	items map[uint]*CommissionSummary
}

func newMemCache() *memCache {
	return &memCache{items: map[uint]*CommissionSummary{}}
}

func (c *memCache) Get(_ context.Context, id uint) (*CommissionSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[id]
	return s, ok
}

func (c *memCache) Set(_ context.Context, s *CommissionSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[s.AgentID] = s
}

func (c *memCache) Invalidate(_ context.Context, ids ...uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.items, id)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

type testEnv struct {
	db    *gorm.DB
	cfg   *config.Config
	mail  *fakeMailer
	cache *memCache

	agentRepo        *repositories.AgentRepository
	projectRepo      *repositories.ProjectRepository
	submissionRepo   *repositories.SubmissionRepository
	documentRepo     *repositories.DocumentRepository
	payableRepo      *repositories.PayableRepository
	calcRepo         *repositories.CalculationRepository
	voucherRepo      *repositories.VoucherRepository
	notificationRepo *repositories.NotificationRepository

	resolver      *RateResolver
	hierarchy     *HierarchyService
	distribution  *DistributionService
	vouchers      *VoucherService
	notifications *NotificationService
	payments      *PaymentService
	submissions   *SubmissionService
	agents        *AgentService
	summaries     *SummaryService
}

func testConfig() *config.Config {
	return &config.Config{
		AppMode:    "dev",
		JWT:        config.JWTConfig{Secret: "test-secret", AccessTokenMins: 15},
		Commission: config.DefaultCommissionConfig(),
		Voucher: config.VoucherConfig{
			Prefix:       "PV",
			AutoGenerate: true,
			AutoEmail:    true,
			Template:     "detailed",
			CompanyName:  "Test Realty",
		},
		Notification: config.NotificationConfig{TTL: 7 * 24 * time.Hour},
		Cron:         config.CronConfig{PurgeSpec: "@hourly", EmailRetrySpec: "@every 15m", EmailRetryBatch: 10},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, testConfig())
}

func newTestEnvWith(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := discardLogger()

	e := &testEnv{
		db:               db,
		cfg:              cfg,
		mail:             &fakeMailer{},
		cache:            newMemCache(),
		agentRepo:        repositories.NewAgentRepository(db),
		projectRepo:      repositories.NewProjectRepository(db),
		submissionRepo:   repositories.NewSubmissionRepository(db),
		documentRepo:     repositories.NewDocumentRepository(db),
		payableRepo:      repositories.NewPayableRepository(db),
		calcRepo:         repositories.NewCalculationRepository(db),
		voucherRepo:      repositories.NewVoucherRepository(db),
		notificationRepo: repositories.NewNotificationRepository(db),
	}

	e.resolver = NewRateResolver(cfg.Commission)
	e.hierarchy = NewHierarchyService(db, e.agentRepo, log)
	e.distribution = NewDistributionService(db, e.submissionRepo, e.agentRepo, e.projectRepo, e.payableRepo, e.calcRepo, e.hierarchy, e.resolver, e.cache, cfg.Commission, log)
	e.vouchers = NewVoucherService(e.voucherRepo, e.mail, cfg.Voucher, log)
	e.notifications = NewNotificationService(e.notificationRepo, e.agentRepo, e.voucherRepo, e.mail, cfg.Notification, log)
	e.payments = NewPaymentService(db, e.payableRepo, e.agentRepo, e.submissionRepo, e.vouchers, e.notifications, e.cache, cfg, log)
	e.submissions = NewSubmissionService(db, e.submissionRepo, e.documentRepo, e.projectRepo, e.agentRepo, e.distribution, e.notifications, e.cache, cfg.Commission, log)
	e.agents = NewAgentService(db, e.agentRepo, e.payableRepo, e.hierarchy, cfg.Commission, log)
	e.summaries = NewSummaryService(e.agentRepo, e.payableRepo, e.cache)
	return e
}

// newAgent stores an agent with the given rates and direct upline
func (e *testEnv) newAgent(t *testing.T, code, self, direct, indirect string, upline *uint) *models.Agent {
	t.Helper()
	a := &models.Agent{
		Code:               code,
		FullName:           "Agent " + code,
		Email:              strings.ToLower(code) + "@estate.test",
		SelfRate:           dec(self),
		DirectUplineRate:   dec(direct),
		IndirectUplineRate: dec(indirect),
		IsActive:           true,
	}
	require.NoError(t, e.agentRepo.Create(bg, a))
	if upline != nil {
		_, err := e.hierarchy.AssignDirectUpline(bg, adminActor, a.ID, upline)
		require.NoError(t, err)
	}
	got, err := e.agentRepo.GetByID(bg, a.ID)
	require.NoError(t, err)
	return got
}

// newSubmission stores a submission directly in the given status
func (e *testEnv) newSubmission(t *testing.T, agentID uint, kind domain.TransactionKind, price string, status domain.SubmissionStatus) *models.Submission {
	t.Helper()
	s := &models.Submission{
		AgentID:         agentID,
		CustomerName:    "Customer",
		PropertyAddress: "99 Sukhumvit Rd",
		Kind:            kind,
		Price:           dec(price),
		Status:          status,
	}
	require.NoError(t, e.submissionRepo.Create(bg, s))
	return s
}

func (e *testEnv) reloadAgent(t *testing.T, id uint) *models.Agent {
	t.Helper()
	a, err := e.agentRepo.GetByID(bg, id)
	require.NoError(t, err)
	return a
}

func sumAmounts(records []*models.PayableRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

func findShare(records []*models.PayableRecord, t domain.ShareType) *models.PayableRecord {
	for _, r := range records {
		if r.ShareType == t {
			return r
		}
	}
	return nil
}

var errSMTPDown = errors.New("smtp: connection refused")
