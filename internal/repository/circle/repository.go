package circle

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/pincer/internal/database"
	"github.com/Additional-Code/pincer/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/pincer/repository/circle")

// ErrNotFound is returned when a circle is missing.
var ErrNotFound = errors.New("circle not found")

// Repository reads circles.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// GetByID fetches a circle by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Circle, error) {
	ctx, span := repoTracer.Start(ctx, "CircleRepository.GetByID", trace.WithAttributes(attribute.Int64("circle.id", id)))
	defer span.End()

	circle := new(entity.Circle)
	err := r.reader.NewSelect().Model(circle).Where("id = ?", id).Scan(ctx)
	return found(span, circle, err)
}

// GetByAlias fetches a circle by its URL alias.
func (r *Repository) GetByAlias(ctx context.Context, alias string) (*entity.Circle, error) {
	ctx, span := repoTracer.Start(ctx, "CircleRepository.GetByAlias", trace.WithAttributes(attribute.String("circle.alias", alias)))
	defer span.End()

	circle := new(entity.Circle)
	err := r.reader.NewSelect().Model(circle).Where("alias = ?", alias).Limit(1).Scan(ctx)
	return found(span, circle, err)
}

// FindAllForMenu lists visible circles in menu order.
func (r *Repository) FindAllForMenu(ctx context.Context) ([]entity.Circle, error) {
	ctx, span := repoTracer.Start(ctx, "CircleRepository.FindAllForMenu")
	defer span.End()

	var circles []entity.Circle
	err := r.reader.NewSelect().Model(&circles).
		Where("visible = ?", true).
		Order("home_page_order ASC", "display_name ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return circles, nil
}

func found(span trace.Span, circle *entity.Circle, err error) (*entity.Circle, error) {
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return circle, nil
}
