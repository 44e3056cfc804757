package user

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/entity"
	userrepo "github.com/Additional-Code/pincer/internal/repository/user"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/pincer/service/user")

const maxRoomLength = 32

// Store persists users.
type Store interface {
	GetByUID(ctx context.Context, uid string) (*entity.User, error)
	UpdateRoom(ctx context.Context, uid, room string) error
}

// Service manages user profile state.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(repo *userrepo.Repository, logger *zap.Logger) *Service {
	return New(repo, logger)
}

// New builds a Service over store.
func New(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Get returns a user by identifier.
func (s *Service) Get(ctx context.Context, uid string) (*entity.User, error) {
	u, err := s.store.GetByUID(ctx, uid)
	if errors.Is(err, userrepo.ErrNotFound) {
		return nil, errorbank.NotFound("user not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}
	return u, nil
}

// SetRoom stores a new room code for the user and returns the updated user.
// The input is not modified; persisting the result into the session is the
// caller's job.
func (s *Service) SetRoom(ctx context.Context, u *entity.User, room string) (*entity.User, error) {
	if u == nil {
		return nil, errorbank.Forbidden("login required")
	}
	ctx, span := serviceTracer.Start(ctx, "UserService.SetRoom", trace.WithAttributes(attribute.String("user.uid", u.UID)))
	defer span.End()

	room = strings.TrimSpace(room)
	if utf8.RuneCountInString(room) > maxRoomLength {
		return nil, errorbank.BadRequest("room code is too long")
	}

	if err := s.store.UpdateRoom(ctx, u.UID, room); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, errorbank.NotFound("user not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update room", errorbank.WithCause(err))
	}
	s.logger.Info("room changed", zap.String("uid", u.UID), zap.String("room", room))

	updated := *u
	updated.Room = room
	return &updated, nil
}
