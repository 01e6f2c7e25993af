package commands_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"courierhub/internal/adapters/out/memory"
	"courierhub/internal/adapters/out/tariff"
	"courierhub/internal/core/application/dispatch"
	"courierhub/internal/core/application/dispatch/dispatchtest"
	"courierhub/internal/core/application/usecases/commands"
	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/domain/services"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/clock"
	"courierhub/internal/pkg/retry"

	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var testRetry = retry.Policy{MaxRetries: 20, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

var testTiers = []services.Tier{
	{RadiusKm: 5, MinRating: 4.0, Window: 60 * time.Second},
	{RadiusKm: 10, MinRating: 3.5, Window: 90 * time.Second},
}

type dispatchFixture struct {
	store    *memory.Store
	clock    *clock.Manual
	recorder *dispatchtest.Recorder

	create   commands.CreateAndDispatchOrderCommandHandler
	accept   commands.AcceptOrderCommandHandler
	cancel   commands.CancelOrderCommandHandler
	expire   commands.ExpireAttemptsCommandHandler
	progress commands.ReportDeliveryProgressCommandHandler
}

func newDispatchFixture(t *testing.T, policy commands.CancelAssignedPolicy) *dispatchFixture {
	t.Helper()

	f := &dispatchFixture{
		store:    memory.NewStore(),
		clock:    clock.NewManual(dispatchtest.Now),
		recorder: dispatchtest.NewRecorder(),
	}

	escalation, err := services.NewEscalationPolicy(testTiers, 3)
	require.NoError(t, err)
	quoter, err := tariff.NewQuoter(tariff.DefaultConfig())
	require.NoError(t, err)
	estimator, err := services.NewRouteEstimator(25)
	require.NoError(t, err)

	metrics := ports.NoopMetrics{}
	planner := dispatch.NewPlanner(escalation)
	broadcaster := dispatch.NewBroadcaster(f.recorder, nil, metrics, f.clock, discard)
	fanout := dispatch.NewFanout(f.recorder, nil, metrics, f.clock, discard)
	arbiter := dispatch.NewArbiter(f.store, escalation.MaxActiveOrders(), testRetry, f.clock, metrics, discard)

	f.create = commands.NewCreateAndDispatchOrderCommandHandler(f.store, quoter, estimator, planner, broadcaster, f.clock, discard)
	f.accept = commands.NewAcceptOrderCommandHandler(arbiter, fanout)
	f.cancel = commands.NewCancelOrderCommandHandler(f.store, fanout, policy, testRetry, f.clock, metrics, discard)
	f.expire = commands.NewExpireAttemptsCommandHandler(f.store, planner, broadcaster, fanout, testRetry, f.clock, metrics, discard)
	f.progress = commands.NewReportDeliveryProgressCommandHandler(f.store, testRetry, f.clock, metrics, discard)
	return f
}

func (f *dispatchFixture) addCouriers(t *testing.T, couriers ...*courier.Courier) {
	t.Helper()
	repo := f.store.Create().CourierRepository()
	for _, c := range couriers {
		require.NoError(t, repo.Save(context.Background(), c))
	}
}

// orderDraft is the 4.2 km / 12 min MEDIUM STANDARD NORMAL draft.
func orderDraft(t *testing.T) commands.CreateAndDispatchOrderCommand {
	t.Helper()
	pickup, err := order.NewPlace(dispatchtest.Pickup, "Warehouse 7, Sirkeci")
	require.NoError(t, err)
	drop, err := order.NewPlace(kernel.MustGeoPoint(41.0422, 29.0083), "Besiktas Sq. 3")
	require.NoError(t, err)
	parcel, err := order.NewParcel(order.SizeMedium, "documents")
	require.NoError(t, err)

	cmd, err := commands.NewCreateAndDispatchOrderCommand(kernel.NewUUID(), kernel.NewUUID(), pickup, drop, parcel,
		order.UrgencyNormal, order.DeliveryStandard, 4.2, 12)
	require.NoError(t, err)
	return cmd
}

func (f *dispatchFixture) createOrder(t *testing.T) (commands.CreateAndDispatchOrderCommand, commands.CreateAndDispatchResult) {
	t.Helper()
	cmd := orderDraft(t)
	res, err := f.create.Handle(t.Context(), cmd)
	require.NoError(t, err)
	return cmd, res
}

func (f *dispatchFixture) acceptOrder(t *testing.T, orderID, courierID kernel.UUID, seq int) dispatch.AcceptResult {
	t.Helper()
	cmd, err := commands.NewAcceptOrderCommand(orderID, courierID, seq)
	require.NoError(t, err)
	res, err := f.accept.Handle(t.Context(), cmd)
	require.NoError(t, err)
	return res
}

func (f *dispatchFixture) expireTick(t *testing.T) commands.ExpireAttemptsResult {
	t.Helper()
	cmd, err := commands.NewExpireAttemptsCommand(50)
	require.NoError(t, err)
	res, err := f.expire.Handle(t.Context(), cmd)
	require.NoError(t, err)
	return res
}

func (f *dispatchFixture) storedOrder(t *testing.T, id kernel.UUID) *order.Order {
	t.Helper()
	o, err := f.store.Create().OrderRepository().Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *dispatchFixture) activeOrders(t *testing.T, id kernel.UUID) int {
	t.Helper()
	c, err := f.store.Create().CourierRepository().Get(context.Background(), id)
	require.NoError(t, err)
	return c.ActiveOrders()
}
