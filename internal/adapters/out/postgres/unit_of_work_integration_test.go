package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	postgres_adapter "courierhub/internal/adapters/out/postgres"
	"courierhub/internal/adapters/out/postgres/pgtest"
	"courierhub/internal/core/application/dispatch"
	"courierhub/internal/core/application/dispatch/dispatchtest"
	"courierhub/internal/core/application/usecases/commands"
	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/clock"
	"courierhub/internal/pkg/errs"
	"courierhub/internal/pkg/retry"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

type UnitOfWorkIntegrationTestSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *gorm.DB
	factory   *postgres_adapter.GormUnitOfWorkFactory
}

func (suite *UnitOfWorkIntegrationTestSuite) SetupSuite() {
	container, db, err := pgtest.Start(context.Background())
	suite.container = container
	suite.Require().NoError(err)
	suite.db = db
	suite.factory = postgres_adapter.NewGormUnitOfWorkFactory(db)
}

func (suite *UnitOfWorkIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(pgtest.Truncate(suite.db))
}

func (suite *UnitOfWorkIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		err := suite.container.Terminate(context.Background())
		suite.Require().NoError(err)
	}
}

func (suite *UnitOfWorkIntegrationTestSuite) TestTransactionLifecycle() {
	ctx := context.Background()
	uow := suite.factory.Create()

	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.Begin(ctx), "second Begin is a no-op")
	suite.Require().NoError(uow.Commit(ctx))

	suite.Require().Error(uow.Commit(ctx), "commit without transaction")
	suite.Require().Error(uow.Rollback(ctx), "rollback without transaction")
}

func (suite *UnitOfWorkIntegrationTestSuite) TestCommitSpansRepositories() {
	ctx := context.Background()
	t := suite.T()

	o := dispatchtest.PendingOrder(t, dispatchtest.Now)
	c := dispatchtest.CourierNear(t, "Ayse", 1, 4.5)
	a, err := attempt.NewAttempt(o.ID(), 1, 0, []kernel.UUID{c.ID()}, dispatchtest.Now, time.Minute)
	suite.Require().NoError(err)

	uow := suite.factory.CreateGorm()
	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.OrderRepository().Add(ctx, o))
	suite.Require().NoError(uow.CourierRepository().Save(ctx, c))
	fresh, err := uow.AttemptRepository().Record(ctx, a)
	suite.Require().NoError(err)
	suite.True(fresh)

	suite.Require().NoError(o.Accept(c.ID(), 1, dispatchtest.Now.Add(time.Second)))
	suite.Require().NoError(uow.OrderRepository().Update(ctx, o))
	suite.Require().NoError(uow.CourierRepository().IncrementActive(ctx, c.ID(), 3))
	suite.Require().NoError(uow.Commit(ctx))

	tracked := uow.TrackedAggregates()
	suite.Require().Len(tracked, 3)
	suite.Equal(o.ID(), tracked[0].ID)
	suite.Equal(c.ID(), tracked[1].ID)

	fresh2 := suite.factory.Create()
	stored, err := fresh2.OrderRepository().Get(ctx, o.ID())
	suite.Require().NoError(err)
	suite.Equal(order.Accepted, stored.Status())
	suite.True(stored.IsAssignedTo(c.ID()))
	suite.Equal(int64(2), stored.Version())

	storedCourier, err := fresh2.CourierRepository().Get(ctx, c.ID())
	suite.Require().NoError(err)
	suite.Equal(1, storedCourier.ActiveOrders())
}

func (suite *UnitOfWorkIntegrationTestSuite) TestRollbackDiscardsEverything() {
	ctx := context.Background()
	t := suite.T()

	o := dispatchtest.PendingOrder(t, dispatchtest.Now)
	c := dispatchtest.CourierNear(t, "Burak", 2, 4.1)

	uow := suite.factory.CreateGorm()
	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.OrderRepository().Add(ctx, o))
	suite.Require().NoError(uow.CourierRepository().Save(ctx, c))
	suite.Require().NoError(uow.Rollback(ctx))
	suite.Empty(uow.TrackedAggregates())

	other := suite.factory.Create()
	_, err := other.OrderRepository().Get(ctx, o.ID())
	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
	_, err = other.CourierRepository().Get(ctx, c.ID())
	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *UnitOfWorkIntegrationTestSuite) TestWithoutTransactionWritesImmediately() {
	ctx := context.Background()
	o := dispatchtest.PendingOrder(suite.T(), dispatchtest.Now)

	suite.Require().NoError(suite.factory.Create().OrderRepository().Add(ctx, o))

	count, err := suite.factory.Create().OrderRepository().CountPending(ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)
}

// Two transactions read the same version; only the first writer commits.
func (suite *UnitOfWorkIntegrationTestSuite) TestConcurrentTransactionsConflictOnVersion() {
	ctx := context.Background()
	t := suite.T()
	o := dispatchtest.PendingOrder(t, dispatchtest.Now)
	suite.Require().NoError(suite.factory.Create().OrderRepository().Add(ctx, o))

	first := suite.factory.Create()
	second := suite.factory.Create()
	suite.Require().NoError(first.Begin(ctx))
	suite.Require().NoError(second.Begin(ctx))
	defer func() { _ = second.Rollback(ctx) }()

	a, err := first.OrderRepository().Get(ctx, o.ID())
	suite.Require().NoError(err)
	b, err := second.OrderRepository().Get(ctx, o.ID())
	suite.Require().NoError(err)

	suite.Require().NoError(a.Accept(kernel.NewUUID(), 1, dispatchtest.Now))
	suite.Require().NoError(first.OrderRepository().Update(ctx, a))
	suite.Require().NoError(first.Commit(ctx))

	suite.Require().NoError(b.Accept(kernel.NewUUID(), 1, dispatchtest.Now))
	err = second.OrderRepository().Update(ctx, b)
	suite.Require().ErrorIs(err, errs.ErrVersionIsInvalid)
}

func (suite *UnitOfWorkIntegrationTestSuite) TestArbiterHasOneWinnerOnPostgres() {
	ctx := context.Background()
	t := suite.T()
	const contenders = 8

	o := dispatchtest.PendingOrder(t, dispatchtest.Now)
	ids := make([]kernel.UUID, 0, contenders)
	setup := suite.factory.Create()
	suite.Require().NoError(setup.OrderRepository().Add(ctx, o))
	for i := range contenders {
		c := dispatchtest.CourierNear(t, fmt.Sprintf("courier-%d", i), 1, 4.5)
		suite.Require().NoError(setup.CourierRepository().Save(ctx, c))
		ids = append(ids, c.ID())
	}
	a, err := attempt.NewAttempt(o.ID(), 1, 0, ids, dispatchtest.Now, time.Minute)
	suite.Require().NoError(err)
	_, err = setup.AttemptRepository().Record(ctx, a)
	suite.Require().NoError(err)

	policy := retry.Policy{MaxRetries: 30, BaseDelay: 2 * time.Millisecond, MaxDelay: 20 * time.Millisecond}
	arbiter := dispatch.NewArbiter(suite.factory, 3, policy, clock.NewManual(dispatchtest.Now),
		ports.NoopMetrics{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []kernel.UUID
		failures []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := arbiter.TryAccept(ctx, o.ID(), id, 1)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			if res.Accepted() {
				winners = append(winners, id)
			}
		}()
	}
	wg.Wait()

	suite.Require().NoError(errors.Join(failures...))
	suite.Require().Len(winners, 1)

	stored, err := suite.factory.Create().OrderRepository().Get(ctx, o.ID())
	suite.Require().NoError(err)
	suite.True(stored.IsAssignedTo(winners[0]))

	var total int64
	suite.Require().NoError(suite.db.Raw("SELECT COALESCE(SUM(active_orders), 0) FROM couriers").Scan(&total).Error)
	suite.Equal(int64(1), total)
}

func (suite *UnitOfWorkIntegrationTestSuite) TestCommitHookSeesWrittenAggregates() {
	ctx := context.Background()
	t := suite.T()

	var seen [][]string
	factory := postgres_adapter.NewGormUnitOfWorkFactory(suite.db)
	factory.OnCommit(func(_ context.Context, written []postgres_adapter.TrackedAggregate) {
		kinds := make([]string, 0, len(written))
		for _, w := range written {
			kinds = append(kinds, w.Kind())
		}
		seen = append(seen, kinds)
	})

	o := dispatchtest.PendingOrder(t, dispatchtest.Now)
	c := dispatchtest.CourierNear(t, "Ayse", 1, 4.5)

	rolledBack := factory.Create()
	suite.Require().NoError(rolledBack.Begin(ctx))
	suite.Require().NoError(rolledBack.OrderRepository().Add(ctx, o))
	suite.Require().NoError(rolledBack.Rollback(ctx))
	suite.Empty(seen, "rollback reports nothing")

	uow := factory.Create()
	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.OrderRepository().Add(ctx, o))
	suite.Require().NoError(uow.CourierRepository().Save(ctx, c))
	suite.Require().NoError(uow.Commit(ctx))

	suite.Equal([][]string{{"order", "courier"}}, seen)

	readOnly := factory.Create()
	suite.Require().NoError(readOnly.Begin(ctx))
	_, err := readOnly.OrderRepository().Get(ctx, o.ID())
	suite.Require().NoError(err)
	suite.Require().NoError(readOnly.Commit(ctx))
	suite.Len(seen, 1, "a transaction without writes reports nothing")
}

// A cancellation and an accept on the same pending order race; exactly one
// of them takes effect and the courier's counter follows the winner.
func (suite *UnitOfWorkIntegrationTestSuite) TestCancelRacingAcceptOnPostgres() {
	ctx := context.Background()
	t := suite.T()
	const rounds = 6

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewManual(dispatchtest.Now)
	policy := retry.Policy{MaxRetries: 30, BaseDelay: 2 * time.Millisecond, MaxDelay: 20 * time.Millisecond}
	arbiter := dispatch.NewArbiter(suite.factory, 3, policy, clk, ports.NoopMetrics{}, logger)
	fanout := dispatch.NewFanout(dispatchtest.NewRecorder(), nil, ports.NoopMetrics{}, clk, logger)
	cancel := commands.NewCancelOrderCommandHandler(suite.factory, fanout, commands.CancelAssignedReject,
		policy, clk, ports.NoopMetrics{}, logger)

	accepted := 0
	for round := range rounds {
		o := dispatchtest.PendingOrder(t, dispatchtest.Now)
		c := dispatchtest.CourierNear(t, fmt.Sprintf("courier-%d", round), 1, 4.5)
		setup := suite.factory.Create()
		suite.Require().NoError(setup.OrderRepository().Add(ctx, o))
		suite.Require().NoError(setup.CourierRepository().Save(ctx, c))
		a, err := attempt.NewAttempt(o.ID(), 1, 0, []kernel.UUID{c.ID()}, dispatchtest.Now, time.Minute)
		suite.Require().NoError(err)
		_, err = setup.AttemptRepository().Record(ctx, a)
		suite.Require().NoError(err)

		cmd, err := commands.NewCancelOrderCommand(o.ID(), "customer changed mind")
		suite.Require().NoError(err)

		var (
			wg        sync.WaitGroup
			acceptRes dispatch.AcceptResult
			acceptErr error
			cancelErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			acceptRes, acceptErr = arbiter.TryAccept(ctx, o.ID(), c.ID(), 1)
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = cancel.Handle(ctx, cmd)
		}()
		wg.Wait()

		suite.Require().NoError(acceptErr)
		stored, err := suite.factory.Create().OrderRepository().Get(ctx, o.ID())
		suite.Require().NoError(err)

		if acceptRes.Accepted() {
			accepted++
			suite.Require().ErrorIs(cancelErr, order.ErrAlreadyAssigned, "round %d", round)
			suite.Equal(order.Accepted, stored.Status())
			suite.True(stored.IsAssignedTo(c.ID()))
		} else {
			suite.Require().NoError(cancelErr, "round %d", round)
			suite.Equal(order.Cancelled, stored.Status())
			suite.Nil(stored.CourierID())
		}

		storedCourier, err := suite.factory.Create().CourierRepository().Get(ctx, c.ID())
		suite.Require().NoError(err)
		if acceptRes.Accepted() {
			suite.Equal(1, storedCourier.ActiveOrders())
		} else {
			suite.Equal(0, storedCourier.ActiveOrders())
		}
	}

	var total int64
	suite.Require().NoError(suite.db.Raw("SELECT COALESCE(SUM(active_orders), 0) FROM couriers").Scan(&total).Error)
	suite.Equal(int64(accepted), total)
}

func TestUnitOfWorkIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(UnitOfWorkIntegrationTestSuite))
}
