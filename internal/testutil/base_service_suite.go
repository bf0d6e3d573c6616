package testutil

import (
	"context"
	"time"

	"github.com/relaycrm/billing/internal/config"
	"github.com/relaycrm/billing/internal/domain/audit"
	"github.com/relaycrm/billing/internal/domain/client"
	"github.com/relaycrm/billing/internal/domain/invoice"
	"github.com/relaycrm/billing/internal/domain/plan"
	"github.com/relaycrm/billing/internal/domain/subscription"
	"github.com/relaycrm/billing/internal/domain/usage"
	"github.com/relaycrm/billing/internal/logger"
	"github.com/relaycrm/billing/internal/types"
	"github.com/relaycrm/billing/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SubscriptionRepo subscription.Repository
	PlanRepo         plan.Repository
	InvoiceRepo      invoice.Repository
	ClientRepo       client.Repository
	UsageRepo        usage.Repository
	AuditLogger      audit.Logger
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	logger *logger.Logger
	config *config.Configuration
	now    time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()

	var err error
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
	s.ctx = context.WithValue(s.ctx, types.CtxTenantID, types.DefaultTenantID)
	s.ctx = context.WithValue(s.ctx, types.CtxUserID, types.DefaultUserID)
	s.ctx = context.WithValue(s.ctx, types.CtxRequestID, types.GenerateUUID())
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		PlanRepo:         NewInMemoryPlanStore(),
		InvoiceRepo:      NewInMemoryInvoiceStore(),
		ClientRepo:       NewInMemoryClientStore(),
		UsageRepo:        NewInMemoryUsageStore(),
		AuditLogger:      NewInMemoryAuditLogger(),
	}
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.PlanRepo.(*InMemoryPlanStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.ClientRepo.(*InMemoryClientStore).Clear()
	s.stores.UsageRepo.(*InMemoryUsageStore).Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the timestamp taken at test setup
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// GetAuditLogger returns the recording audit logger
func (s *BaseServiceTestSuite) GetAuditLogger() *InMemoryAuditLogger {
	return s.stores.AuditLogger.(*InMemoryAuditLogger)
}
