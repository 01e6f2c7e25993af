package attemptrepo_test

import (
	"context"
	"testing"
	"time"

	"courierhub/internal/adapters/out/postgres/attemptrepo"
	"courierhub/internal/adapters/out/postgres/orderrepo"
	"courierhub/internal/adapters/out/postgres/pgtest"
	"courierhub/internal/core/application/dispatch/dispatchtest"
	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/pkg/errs"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

type noopTracker struct{}

func (noopTracker) TrackAggregate(kernel.UUID, any) {}

type AttemptRepositoryIntegrationTestSuite struct {
	suite.Suite
	container  *postgres.PostgresContainer
	db         *gorm.DB
	repository *attemptrepo.GormAttemptRepository
	orders     *orderrepo.GormOrderRepository
}

func (suite *AttemptRepositoryIntegrationTestSuite) SetupSuite() {
	container, db, err := pgtest.Start(context.Background())
	suite.container = container
	suite.Require().NoError(err)
	suite.db = db
	suite.repository = attemptrepo.NewGormAttemptRepository(db)
	suite.orders = orderrepo.NewGormOrderRepository(db, noopTracker{})
}

func (suite *AttemptRepositoryIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(pgtest.Truncate(suite.db))
}

func (suite *AttemptRepositoryIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		err := suite.container.Terminate(context.Background())
		suite.Require().NoError(err)
	}
}

func (suite *AttemptRepositoryIntegrationTestSuite) pendingOrder() *order.Order {
	o := dispatchtest.PendingOrder(suite.T(), dispatchtest.Now)
	suite.Require().NoError(suite.orders.Add(context.Background(), o))
	return o
}

func (suite *AttemptRepositoryIntegrationTestSuite) newAttempt(o *order.Order, seq, tier int, window time.Duration, candidates ...kernel.UUID) *attempt.Attempt {
	a, err := attempt.NewAttempt(o.ID(), seq, tier, candidates, dispatchtest.Now, window)
	suite.Require().NoError(err)
	return a
}

func (suite *AttemptRepositoryIntegrationTestSuite) TestRecordIsIdempotent() {
	ctx := context.Background()
	o := suite.pendingOrder()
	first, second := kernel.NewUUID(), kernel.NewUUID()
	a := suite.newAttempt(o, 1, 0, time.Minute, first, second)

	fresh, err := suite.repository.Record(ctx, a)
	suite.Require().NoError(err)
	suite.True(fresh)

	again := suite.newAttempt(o, 1, 1, 2*time.Minute, kernel.NewUUID())
	fresh, err = suite.repository.Record(ctx, again)
	suite.Require().NoError(err)
	suite.False(fresh)

	stored, err := suite.repository.Get(ctx, o.ID(), 1)
	suite.Require().NoError(err)
	suite.Equal(0, stored.Tier())
	suite.Equal([]kernel.UUID{first, second}, stored.Candidates())
	suite.True(stored.ExpiresAt().Equal(dispatchtest.Now.Add(time.Minute)))
}

func (suite *AttemptRepositoryIntegrationTestSuite) TestEmptyCandidatesRoundTrip() {
	ctx := context.Background()
	o := suite.pendingOrder()
	_, err := suite.repository.Record(ctx, suite.newAttempt(o, 1, 0, time.Minute))
	suite.Require().NoError(err)

	stored, err := suite.repository.Get(ctx, o.ID(), 1)
	suite.Require().NoError(err)
	suite.True(stored.IsEmpty())
}

func (suite *AttemptRepositoryIntegrationTestSuite) TestGetLatest() {
	ctx := context.Background()
	o := suite.pendingOrder()
	for seq := 1; seq <= 2; seq++ {
		_, err := suite.repository.Record(ctx, suite.newAttempt(o, seq, seq-1, time.Minute, kernel.NewUUID()))
		suite.Require().NoError(err)
	}

	latest, err := suite.repository.GetLatest(ctx, o.ID())
	suite.Require().NoError(err)
	suite.Equal(2, latest.Seq())
	suite.Equal(1, latest.Tier())

	_, err = suite.repository.GetLatest(ctx, kernel.NewUUID())
	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
	_, err = suite.repository.Get(ctx, o.ID(), 7)
	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *AttemptRepositoryIntegrationTestSuite) TestGetExpiredReturnsCurrentAttemptsOnly() {
	ctx := context.Background()

	// Escalated: seq 1 is superseded by seq 2, which is still open.
	escalated := suite.pendingOrder()
	_, err := suite.repository.Record(ctx, suite.newAttempt(escalated, 1, 0, time.Minute, kernel.NewUUID()))
	suite.Require().NoError(err)
	_, err = escalated.AdvanceAttempt()
	suite.Require().NoError(err)
	suite.Require().NoError(suite.orders.Update(ctx, escalated))
	_, err = suite.repository.Record(ctx, suite.newAttempt(escalated, 2, 1, 10*time.Minute, kernel.NewUUID()))
	suite.Require().NoError(err)

	expired := suite.pendingOrder()
	_, err = suite.repository.Record(ctx, suite.newAttempt(expired, 1, 0, time.Minute, kernel.NewUUID()))
	suite.Require().NoError(err)

	accepted := suite.pendingOrder()
	_, err = suite.repository.Record(ctx, suite.newAttempt(accepted, 1, 0, time.Minute, kernel.NewUUID()))
	suite.Require().NoError(err)
	suite.Require().NoError(accepted.Accept(kernel.NewUUID(), 1, dispatchtest.Now))
	suite.Require().NoError(suite.orders.Update(ctx, accepted))

	due, err := suite.repository.GetExpired(ctx, dispatchtest.Now.Add(2*time.Minute), 10)
	suite.Require().NoError(err)
	suite.Require().Len(due, 1)
	suite.Equal(expired.ID(), due[0].OrderID())
	suite.Equal(1, due[0].Seq())

	none, err := suite.repository.GetExpired(ctx, dispatchtest.Now.Add(30*time.Second), 10)
	suite.Require().NoError(err)
	suite.Empty(none)
}

func TestAttemptRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(AttemptRepositoryIntegrationTestSuite))
}
