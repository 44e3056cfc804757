package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/pincer/internal/database"
	"github.com/Additional-Code/pincer/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/pincer/repository/order")

// ErrNotFound is returned when an order (or the opening it targets) is missing.
var ErrNotFound = errors.New("order not found")

// Decision inspects the locked opening and its current orders and returns the
// order to insert, or an error to abort the placement.
type Decision func(opening *entity.Opening, orders []entity.Order) (*entity.Order, error)

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Place runs decide against a consistent snapshot of the opening's orders and
// inserts its result in the same transaction. The opening row is locked for
// the duration where the dialect supports it, so concurrent placements on the
// same opening are serialized.
func (r *Repository) Place(ctx context.Context, openingID int64, decide Decision) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Place", trace.WithAttributes(attribute.Int64("opening.id", openingID)))
	defer span.End()

	var placed *entity.Order
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		opening := new(entity.Opening)
		q := tx.NewSelect().Model(opening).Where("id = ?", openingID)
		if tx.Dialect().Name() != dialect.SQLite {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		var orders []entity.Order
		if err := tx.NewSelect().Model(&orders).
			Relation("Item").
			Where("o.opening_id = ?", openingID).
			Scan(ctx); err != nil {
			return err
		}

		order, err := decide(opening, orders)
		if err != nil {
			return err
		}
		if order == nil {
			return errors.New("nil order")
		}
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "place failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", placed.ID))
	return placed, nil
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Relation("Item").Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// FindAllByOpening lists every order of an opening with its item.
func (r *Repository) FindAllByOpening(ctx context.Context, openingID int64) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindAllByOpening", trace.WithAttributes(attribute.Int64("opening.id", openingID)))
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Relation("Item").
		Where("o.opening_id = ?", openingID).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// FindAllByUser lists a user's orders, newest first.
func (r *Repository) FindAllByUser(ctx context.Context, uid string) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindAllByUser", trace.WithAttributes(attribute.String("user.uid", uid)))
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Relation("Item").
		Relation("Item.Circle").
		Where("o.user_id = ?", uid).
		OrderExpr("o.created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// UpdateStatus moves an order to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status entity.OrderStatus) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	_, err := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// UpdateRoomAndComment changes the mutable delivery fields of an order.
func (r *Repository) UpdateRoomAndComment(ctx context.Context, id int64, room, comment string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateRoomAndComment", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	_, err := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("room = ?", room).
		Set("comment = ?", comment).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}
