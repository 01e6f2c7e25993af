// Package postgres is the GORM-backed storage of the dispatch core.
//
// A UnitOfWork wraps one database transaction. Repositories taken from it
// after Begin share the transaction; repositories taken without Begin run
// each statement on its own connection.
//
// Exclusivity of assignment does not come from locking reads. Orders are
// read plainly and written back with a version guard (see
// orderrepo.GormOrderRepository.Update), courier counters move through
// guarded increments, and lost races surface as errs.VersionIsInvalidError or
// ports.ErrStorageContention for the caller to retry.
//
//	uow := factory.Create()
//	if err := uow.Begin(ctx); err != nil {
//	    return err
//	}
//	defer func() { _ = uow.Rollback(ctx) }()
//
//	o, err := uow.OrderRepository().Get(ctx, id)
//	...
//	if err := uow.OrderRepository().Update(ctx, o); err != nil {
//	    return err // version conflict: reload and decide again
//	}
//	return uow.Commit(ctx)
package postgres

import (
	"context"

	"courierhub/internal/adapters/out/postgres/attemptrepo"
	"courierhub/internal/adapters/out/postgres/courierrepo"
	"courierhub/internal/adapters/out/postgres/orderrepo"
	"courierhub/internal/adapters/out/postgres/pgerr"
	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"

	"gorm.io/gorm"
)

// TrackedAggregate is an aggregate written through a unit of work.
type TrackedAggregate struct {
	ID        kernel.UUID
	Aggregate any
}

// Kind names the aggregate type, e.g. for metric labels.
func (t TrackedAggregate) Kind() string {
	switch t.Aggregate.(type) {
	case *order.Order:
		return "order"
	case *courier.Courier:
		return "courier"
	default:
		return "other"
	}
}

// CommitHook runs after a successful commit with the aggregates the
// transaction wrote.
type CommitHook func(ctx context.Context, written []TrackedAggregate)

type GormUnitOfWorkFactory struct {
	db       *gorm.DB
	onCommit CommitHook
}

func NewGormUnitOfWorkFactory(db *gorm.DB) *GormUnitOfWorkFactory {
	return &GormUnitOfWorkFactory{db: db}
}

func (f *GormUnitOfWorkFactory) Create() ports.UnitOfWork {
	return f.CreateGorm()
}

// OnCommit installs hook on every unit of work created afterwards.
func (f *GormUnitOfWorkFactory) OnCommit(hook CommitHook) {
	f.onCommit = hook
}

// CreateGorm returns the concrete unit of work, for callers that need
// TrackedAggregates.
func (f *GormUnitOfWorkFactory) CreateGorm() *GormUnitOfWork {
	return &GormUnitOfWork{db: f.db, onCommit: f.onCommit}
}

// GormUnitOfWork is not safe for concurrent use; create one per operation.
type GormUnitOfWork struct {
	db       *gorm.DB
	tx       *gorm.DB
	tracked  []TrackedAggregate
	onCommit CommitHook
}

// Begin opens a transaction. Calling it again while one is open is a no-op.
func (uow *GormUnitOfWork) Begin(ctx context.Context) error {
	if uow.tx != nil {
		return nil
	}

	tx := uow.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return pgerr.Classify(tx.Error)
	}
	uow.tx = tx
	uow.tracked = uow.tracked[:0]
	return nil
}

// Commit returns ports.ErrStorageContention when PostgreSQL aborted the
// transaction because of a concurrent one.
func (uow *GormUnitOfWork) Commit(ctx context.Context) error {
	if uow.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	err := uow.tx.Commit().Error
	uow.tx = nil
	if err != nil {
		return pgerr.Classify(err)
	}
	if uow.onCommit != nil && len(uow.tracked) > 0 {
		uow.onCommit(ctx, uow.TrackedAggregates())
	}
	return nil
}

func (uow *GormUnitOfWork) Rollback(_ context.Context) error {
	if uow.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	err := uow.tx.Rollback().Error
	uow.tx = nil
	uow.tracked = uow.tracked[:0]
	return err
}

func (uow *GormUnitOfWork) CourierRepository() ports.CourierRepository {
	return courierrepo.NewGormCourierRepository(uow.conn(), uow)
}

func (uow *GormUnitOfWork) OrderRepository() ports.OrderRepository {
	return orderrepo.NewGormOrderRepository(uow.conn(), uow)
}

func (uow *GormUnitOfWork) AttemptRepository() ports.AttemptRepository {
	return attemptrepo.NewGormAttemptRepository(uow.conn())
}

// TrackAggregate is called by repositories after every successful write.
func (uow *GormUnitOfWork) TrackAggregate(id kernel.UUID, aggregate any) {
	uow.tracked = append(uow.tracked, TrackedAggregate{ID: id, Aggregate: aggregate})
}

// TrackedAggregates lists the aggregates written since the last Begin, in
// write order. Rollback clears the list; Commit keeps it.
func (uow *GormUnitOfWork) TrackedAggregates() []TrackedAggregate {
	out := make([]TrackedAggregate, len(uow.tracked))
	copy(out, uow.tracked)
	return out
}

func (uow *GormUnitOfWork) conn() *gorm.DB {
	if uow.tx != nil {
		return uow.tx
	}
	return uow.db
}
