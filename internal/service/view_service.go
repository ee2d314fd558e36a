package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/observability"
)

const viewEventBufferSize = 16

// ViewInvalidator declares cached views stale after a write.
type ViewInvalidator interface {
	// InvalidateViews marks the assignment detail, exercise list and dashboard
	// of one student as stale.
	InvalidateViews(ctx context.Context, assignmentID, studentID uint) error
	// InvalidateGrades drops the ranking snapshot and every dashboard, since a
	// single grade can move the rank of the whole class.
	InvalidateGrades(ctx context.Context, assignmentID, studentID uint) error
	// InvalidateAssignment drops every student's views of an assignment
	// together with the ranking, which depends on the set of assignments.
	InvalidateAssignment(ctx context.Context, assignmentID uint) error
	// InvalidateRanking drops the ranking snapshot and every dashboard after
	// the student population changed.
	InvalidateRanking(ctx context.Context) error
}

// ViewEventService invalidates views and streams stale view events.
type ViewEventService interface {
	ViewInvalidator
	Subscribe(studentID uint) (<-chan dto.ViewEvent, func())
	Start(ctx context.Context)
}

type viewEventService struct {
	redis   *redis.Client
	nats    *nats.Conn
	subject string
	logger  zerolog.Logger
	broker  *viewEventBroker
	nodeID  string
	now     func() time.Time
}

type viewEventEnvelope struct {
	Source string        `json:"source"`
	Event  dto.ViewEvent `json:"event"`
}

type viewEventBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.ViewEvent]uint
}

// NewViewEventService builds the invalidator. Both redis and natsConn may be
// nil, in which case only in-process subscribers are notified.
func NewViewEventService(redisClient *redis.Client, natsConn *nats.Conn, subjectPrefix string, logger zerolog.Logger) ViewEventService {
	subject := ""
	if prefix := strings.Trim(strings.ReplaceAll(subjectPrefix, ":", "."), "."); prefix != "" {
		subject = prefix + ".views.stale"
	}

	return &viewEventService{
		redis:   redisClient,
		nats:    natsConn,
		subject: subject,
		logger:  logger.With().Str("component", "view_event_service").Logger(),
		broker: &viewEventBroker{
			subscribers: make(map[chan dto.ViewEvent]uint),
		},
		nodeID: uuid.NewString(),
		now:    time.Now,
	}
}

func (s *viewEventService) Start(ctx context.Context) {
	if s.nats == nil || s.subject == "" {
		return
	}

	sub, err := s.nats.Subscribe(s.subject, func(msg *nats.Msg) {
		s.handleMessage(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("subject", s.subject).Msg("failed to subscribe to view events")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain view event subscription")
		}
	}()
}

func (s *viewEventService) InvalidateViews(ctx context.Context, assignmentID, studentID uint) error {
	if err := requireID("student id", studentID); err != nil {
		return err
	}
	if err := requireID("assignment id", assignmentID); err != nil {
		return err
	}

	err := s.deleteKeys(ctx,
		assignmentViewKey(assignmentID, studentID),
		exercisesViewKey(studentID),
		dashboardViewKey(studentID),
	)

	s.emit(dto.ViewEvent{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Views:        []string{ViewAssignment, ViewExercises, ViewDashboard},
		Reason:       "submission",
	})

	return err
}

func (s *viewEventService) InvalidateGrades(ctx context.Context, assignmentID, studentID uint) error {
	errs := []error{
		s.deleteKeys(ctx, rankingCacheKey, assignmentViewKey(assignmentID, studentID)),
		s.deletePattern(ctx, "views:dashboard:student:*"),
	}

	s.emit(dto.ViewEvent{
		AssignmentID: assignmentID,
		Views:        []string{ViewRanking, ViewDashboard, ViewAssignment},
		Reason:       "grade",
	})

	return errors.Join(errs...)
}

func (s *viewEventService) InvalidateAssignment(ctx context.Context, assignmentID uint) error {
	errs := []error{
		s.deleteKeys(ctx, rankingCacheKey),
		s.deletePattern(ctx, fmt.Sprintf("views:assignment:%d:student:*", assignmentID)),
		s.deletePattern(ctx, "views:exercises:student:*"),
		s.deletePattern(ctx, "views:dashboard:student:*"),
	}

	s.emit(dto.ViewEvent{
		AssignmentID: assignmentID,
		Views:        []string{ViewAssignment, ViewExercises, ViewDashboard, ViewRanking},
		Reason:       "assignment",
	})

	return errors.Join(errs...)
}

func (s *viewEventService) InvalidateRanking(ctx context.Context) error {
	errs := []error{
		s.deleteKeys(ctx, rankingCacheKey),
		s.deletePattern(ctx, "views:dashboard:student:*"),
	}

	s.emit(dto.ViewEvent{
		Views:  []string{ViewRanking, ViewDashboard},
		Reason: "ranking",
	})

	return errors.Join(errs...)
}

func (s *viewEventService) Subscribe(studentID uint) (<-chan dto.ViewEvent, func()) {
	channel := make(chan dto.ViewEvent, viewEventBufferSize)
	s.broker.subscribe(studentID, channel)
	observability.EventSocketsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(channel)
			observability.EventSocketsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *viewEventService) deleteKeys(ctx context.Context, keys ...string) error {
	if s.redis == nil {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("failed to delete stale views")
		return fmt.Errorf("delete stale views: %w", err)
	}
	return nil
}

func (s *viewEventService) deletePattern(ctx context.Context, pattern string) error {
	if s.redis == nil {
		return nil
	}

	iter := s.redis.Scan(ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.deleteKeys(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Str("pattern", pattern).Msg("failed to scan stale views")
		return fmt.Errorf("scan stale views: %w", err)
	}
	if len(batch) > 0 {
		return s.deleteKeys(ctx, batch...)
	}
	return nil
}

func (s *viewEventService) emit(event dto.ViewEvent) {
	event.OccurredAt = s.now().UTC()
	observability.ViewEvents().WithLabelValues("local").Inc()
	s.broker.broadcast(event)

	if s.nats == nil || s.subject == "" {
		return
	}

	payload, err := json.Marshal(viewEventEnvelope{Source: s.nodeID, Event: event})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode view event")
		return
	}
	if err := s.nats.Publish(s.subject, payload); err != nil {
		s.logger.Warn().Err(err).Str("subject", s.subject).Msg("failed to publish view event")
	}
}

func (s *viewEventService) handleMessage(payload []byte) {
	var envelope viewEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid view event payload")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	observability.ViewEvents().WithLabelValues("remote").Inc()
	s.broker.broadcast(envelope.Event)
}

func (b *viewEventBroker) subscribe(studentID uint, ch chan dto.ViewEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = studentID
}

func (b *viewEventBroker) unsubscribe(ch chan dto.ViewEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *viewEventBroker) broadcast(event dto.ViewEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch, studentID := range b.subscribers {
		if !event.Concerns(studentID) {
			continue
		}
		select {
		case ch <- event:
		default:
		}
	}
}
