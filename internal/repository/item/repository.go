package item

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/pincer/internal/database"
	"github.com/Additional-Code/pincer/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/pincer/repository/item")

// ErrNotFound is returned when an item is missing.
var ErrNotFound = errors.New("item not found")

// Repository reads catalog items together with their circle.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

func (r *Repository) selectItems(items *[]entity.Item) *bun.SelectQuery {
	return r.reader.NewSelect().Model(items).Relation("Circle").OrderExpr("item.id ASC")
}

// GetByID fetches an item by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Item, error) {
	ctx, span := repoTracer.Start(ctx, "ItemRepository.GetByID", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	item := new(entity.Item)
	err := r.reader.NewSelect().Model(item).Relation("Circle").Where("item.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return item, nil
}

// FindAll lists every item.
func (r *Repository) FindAll(ctx context.Context) ([]entity.Item, error) {
	ctx, span := repoTracer.Start(ctx, "ItemRepository.FindAll")
	defer span.End()

	var items []entity.Item
	return scan(ctx, span, r.selectItems(&items), &items)
}

// FindAllByCircle lists the items of one circle.
func (r *Repository) FindAllByCircle(ctx context.Context, circleID int64) ([]entity.Item, error) {
	ctx, span := repoTracer.Start(ctx, "ItemRepository.FindAllByCircle", trace.WithAttributes(attribute.Int64("circle.id", circleID)))
	defer span.End()

	var items []entity.Item
	return scan(ctx, span, r.selectItems(&items).Where("item.circle_id = ?", circleID), &items)
}

// FindOrderableAt lists items whose circle has an opening taking orders at t.
func (r *Repository) FindOrderableAt(ctx context.Context, t time.Time) ([]entity.Item, error) {
	ctx, span := repoTracer.Start(ctx, "ItemRepository.FindOrderableAt")
	defer span.End()

	openings := r.reader.NewSelect().Model((*entity.Opening)(nil)).
		Column("circle_id").
		Where("order_start <= ?", t).
		Where("order_end > ?", t)

	var items []entity.Item
	return scan(ctx, span, r.selectItems(&items).Where("item.circle_id IN (?)", openings), &items)
}

// FindServedBetween lists items whose circle has an opening starting in
// [from, to).
func (r *Repository) FindServedBetween(ctx context.Context, from, to time.Time) ([]entity.Item, error) {
	ctx, span := repoTracer.Start(ctx, "ItemRepository.FindServedBetween")
	defer span.End()

	openings := r.reader.NewSelect().Model((*entity.Opening)(nil)).
		Column("circle_id").
		Where("date_start >= ?", from).
		Where("date_start < ?", to)

	var items []entity.Item
	return scan(ctx, span, r.selectItems(&items).Where("item.circle_id IN (?)", openings), &items)
}

// Search lists items whose name, keywords or ingredients contain keyword.
func (r *Repository) Search(ctx context.Context, keyword string) ([]entity.Item, error) {
	ctx, span := repoTracer.Start(ctx, "ItemRepository.Search", trace.WithAttributes(attribute.String("search.keyword", keyword)))
	defer span.End()

	pattern := "%" + escapeLike(strings.ToLower(keyword)) + "%"
	var items []entity.Item
	q := r.selectItems(&items).WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("LOWER(item.name) LIKE ? ESCAPE '!'", pattern).
			WhereOr("LOWER(item.keywords) LIKE ? ESCAPE '!'", pattern).
			WhereOr("LOWER(item.ingredients) LIKE ? ESCAPE '!'", pattern)
	})
	return scan(ctx, span, q, &items)
}

func scan(ctx context.Context, span trace.Span, q *bun.SelectQuery, items *[]entity.Item) ([]entity.Item, error) {
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("item.count", len(*items)))
	return *items, nil
}

// likeEscaper quotes LIKE wildcards with '!', which no dialect treats
// specially inside a string literal.
var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
