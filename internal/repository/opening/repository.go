package opening

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/pincer/internal/database"
	"github.com/Additional-Code/pincer/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/pincer/repository/opening")

// ErrNotFound is returned when an opening or time window is missing.
var ErrNotFound = errors.New("opening not found")

// Repository reads openings and their time windows.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

func (r *Repository) selectOne(o *entity.Opening) *bun.SelectQuery {
	return r.reader.NewSelect().Model(o).
		Relation("Circle").
		Relation("TimeWindows", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("date ASC")
		})
}

// GetByID fetches an opening with its circle and time windows.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Opening, error) {
	ctx, span := repoTracer.Start(ctx, "OpeningRepository.GetByID", trace.WithAttributes(attribute.Int64("opening.id", id)))
	defer span.End()

	o := new(entity.Opening)
	err := r.selectOne(o).Where("opening.id = ?", id).Scan(ctx)
	return one(span, o, err)
}

// FindNextOf returns the earliest opening of a circle whose order window has
// not closed at now.
func (r *Repository) FindNextOf(ctx context.Context, circleID int64, now time.Time) (*entity.Opening, error) {
	ctx, span := repoTracer.Start(ctx, "OpeningRepository.FindNextOf", trace.WithAttributes(attribute.Int64("circle.id", circleID)))
	defer span.End()

	o := new(entity.Opening)
	err := r.selectOne(o).
		Where("opening.circle_id = ?", circleID).
		Where("opening.order_end > ?", now).
		OrderExpr("opening.order_start ASC").
		Limit(1).
		Scan(ctx)
	return one(span, o, err)
}

// FindActiveBetween lists openings that have not ended at from and start
// before to, earliest first.
func (r *Repository) FindActiveBetween(ctx context.Context, from, to time.Time) ([]entity.Opening, error) {
	ctx, span := repoTracer.Start(ctx, "OpeningRepository.FindActiveBetween")
	defer span.End()

	var openings []entity.Opening
	err := r.reader.NewSelect().Model(&openings).
		Relation("Circle").
		Where("opening.date_end > ?", from).
		Where("opening.date_start < ?", to).
		OrderExpr("opening.date_start ASC").
		Scan(ctx)
	return many(span, openings, err)
}

// FindUpcoming lists openings whose order window opens after now.
func (r *Repository) FindUpcoming(ctx context.Context, now time.Time, limit int) ([]entity.Opening, error) {
	ctx, span := repoTracer.Start(ctx, "OpeningRepository.FindUpcoming")
	defer span.End()

	var openings []entity.Opening
	q := r.reader.NewSelect().Model(&openings).
		Relation("Circle").
		Where("opening.order_start > ?", now).
		OrderExpr("opening.order_start ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return many(span, openings, q.Scan(ctx))
}

// GetTimeWindow fetches a time window by primary key.
func (r *Repository) GetTimeWindow(ctx context.Context, id int64) (*entity.TimeWindow, error) {
	ctx, span := repoTracer.Start(ctx, "OpeningRepository.GetTimeWindow", trace.WithAttributes(attribute.Int64("time_window.id", id)))
	defer span.End()

	tw := new(entity.TimeWindow)
	err := r.reader.NewSelect().Model(tw).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return tw, nil
}

func one(span trace.Span, o *entity.Opening, err error) (*entity.Opening, error) {
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return o, nil
}

func many(span trace.Span, openings []entity.Opening, err error) ([]entity.Opening, error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("opening.count", len(openings)))
	return openings, nil
}
