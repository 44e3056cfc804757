package user

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

var repoTracer = otel.Tracer("github.com/Additional-Code/pincer/repository/user")

// ErrNotFound is returned when a user is missing.
var ErrNotFound = errors.New("user not found")

// Repository encapsulates read/write access for users.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// GetByUID fetches a user by identifier.
func (r *Repository) GetByUID(ctx context.Context, uid string) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByUID", trace.WithAttributes(attribute.String("user.uid", uid)))
	defer span.End()

	u := new(entity.User)
	err := r.reader.NewSelect().Model(u).Where("uid = ?", uid).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return u, nil
}

// UpdateRoom stores a new room code.
func (r *Repository) UpdateRoom(ctx context.Context, uid, room string) error {
	ctx, span := repoTracer.Start(ctx, "UserRepository.UpdateRoom", trace.WithAttributes(attribute.String("user.uid", uid)))
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.User)(nil)).
		Set("room = ?", room).
		Where("uid = ?", uid).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
