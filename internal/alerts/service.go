package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clearsky/internal/types"
)

// AlertStore abstracts the database operations the service needs from the
// AlertRepository. Using an interface allows clean testing without database
// dependencies.
type AlertStore interface {
	Create(ctx context.Context, a *types.WeatherAlert) error
	CreateBatch(ctx context.Context, alerts []*types.WeatherAlert) ([]int, map[int]error, error)
	GetByID(ctx context.Context, id string) (*types.WeatherAlert, error)
	Update(ctx context.Context, a *types.WeatherAlert) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	DeleteByStatus(ctx context.Context, status types.AlertStatus) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	All(ctx context.Context) ([]*types.WeatherAlert, error)
	ByStatus(ctx context.Context, status types.AlertStatus) ([]*types.WeatherAlert, error)
	ByType(ctx context.Context, alertType types.AlertType) ([]*types.WeatherAlert, error)
	Due(ctx context.Context, now time.Time) ([]*types.WeatherAlert, error)
	Expired(ctx context.Context, now time.Time) ([]*types.WeatherAlert, error)
	UpdateStatus(ctx context.Context, id string, status types.AlertStatus) error
	MarkTriggered(ctx context.Context, id string, triggeredAt time.Time) error
	UpdateLastTriggeredAt(ctx context.Context, id string, triggeredAt time.Time) error
	Reschedule(ctx context.Context, id string, nextTarget time.Time) error
	CountByStatus(ctx context.Context, status types.AlertStatus) (int, error)
}

// NotificationCanceller withdraws previously delivered notifications for an
// alert. Optional; a nil canceller means deletions leave any delivered
// notifications in place.
type NotificationCanceller interface {
	Cancel(ctx context.Context, alertID string)
}

// Service is the alert facade: CRUD with validation, queries, status
// transitions, and change notification for live subscriptions.
type Service struct {
	store     AlertStore
	canceller NotificationCanceller
	logger    *slog.Logger
	subs      *broadcaster
}

// ServiceConfig holds the configuration for creating a Service.
type ServiceConfig struct {
	Store     AlertStore
	Canceller NotificationCanceller
	Logger    *slog.Logger
}

// NewService creates a new Service with the given configuration.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     cfg.Store,
		canceller: cfg.Canceller,
		logger:    logger,
		subs:      newBroadcaster(cfg.Store, logger),
	}
}

// NewAlertParams carries the caller-supplied fields for alert creation.
type NewAlertParams struct {
	Title          string
	Description    string
	Condition      types.AlertCondition
	Location       types.AlertLocation
	TargetDateTime time.Time
	ExpiryDateTime *time.Time
	IsRepeating    bool
	RepeatInterval types.RepeatInterval
	Sound          *bool
	Vibration      *bool
	CustomMessage  string
}

// NewAlert builds a WeatherAlert from creation parameters. The alert type
// is derived from the condition kind so the pair always agrees at creation;
// the store does not re-check the invariant afterwards.
func NewAlert(p NewAlertParams) *types.WeatherAlert {
	a := &types.WeatherAlert{
		ID:                  "alr_" + uuid.NewString(),
		Title:               p.Title,
		Description:         p.Description,
		AlertType:           p.Condition.AlertType(),
		Condition:           p.Condition,
		Location:            p.Location,
		TargetDateTime:      p.TargetDateTime,
		ExpiryDateTime:      p.ExpiryDateTime,
		Status:              types.StatusActive,
		IsRepeating:         p.IsRepeating,
		RepeatInterval:      p.RepeatInterval,
		NotificationEnabled: true,
		NotificationSound:   true,
		NotificationVibrate: true,
		CustomMessage:       p.CustomMessage,
	}
	if p.Sound != nil {
		a.NotificationSound = *p.Sound
	}
	if p.Vibration != nil {
		a.NotificationVibrate = *p.Vibration
	}
	return a
}

// Create validates and persists a new alert. The target time must still
// be in the future at creation time.
func (s *Service) Create(ctx context.Context, a *types.WeatherAlert) error {
	if err := types.ValidateNewAlert(a, time.Now().UTC()); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = "alr_" + uuid.NewString()
	}
	if a.Status == "" {
		a.Status = types.StatusActive
	}
	if err := s.store.Create(ctx, a); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "alert created",
		"alert_id", a.ID,
		"alert_type", a.AlertType,
		"target", a.TargetDateTime.Format(time.RFC3339),
	)
	s.subs.publish(ctx)
	return nil
}

// CreateBatch validates and persists multiple alerts, isolating per-item
// failures. Validation failures and store failures land in the same
// index -> error map.
func (s *Service) CreateBatch(ctx context.Context, alerts []*types.WeatherAlert) ([]int, map[int]error, error) {
	if len(alerts) > types.MaxBatchSize {
		return nil, nil, types.NewAppErrorWithDetails(types.ErrCodeValidationBatchSize,
			"batch size exceeded", nil, map[string]any{"max": types.MaxBatchSize, "got": len(alerts)})
	}

	now := time.Now().UTC()
	failed := make(map[int]error)
	var toStore []*types.WeatherAlert
	var storeIdx []int
	for i, a := range alerts {
		if err := types.ValidateNewAlert(a, now); err != nil {
			failed[i] = err
			continue
		}
		if a.ID == "" {
			a.ID = "alr_" + uuid.NewString()
		}
		if a.Status == "" {
			a.Status = types.StatusActive
		}
		toStore = append(toStore, a)
		storeIdx = append(storeIdx, i)
	}

	created, storeFailed, err := s.store.CreateBatch(ctx, toStore)
	if err != nil {
		return nil, nil, err
	}
	var createdOrig []int
	for _, i := range created {
		createdOrig = append(createdOrig, storeIdx[i])
	}
	for i, ferr := range storeFailed {
		failed[storeIdx[i]] = ferr
	}
	if len(failed) == 0 {
		failed = nil
	}

	if len(createdOrig) > 0 {
		s.logger.InfoContext(ctx, "alert batch created",
			"created", len(createdOrig),
			"failed", len(failed),
		)
		s.subs.publish(ctx)
	}
	return createdOrig, failed, nil
}

// Get retrieves an alert by ID. Returns ErrCodeNotFoundAlert when absent;
// unlike the store, the service treats a point read miss as an error the
// API can translate to 404.
func (s *Service) Get(ctx context.Context, id string) (*types.WeatherAlert, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundAlert, "alert not found", nil,
			map[string]any{"alert_id": id})
	}
	return a, nil
}

// Update validates and persists changes to an existing alert.
func (s *Service) Update(ctx context.Context, a *types.WeatherAlert) error {
	if err := types.ValidateAlert(a); err != nil {
		return err
	}
	if err := s.store.Update(ctx, a); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "alert updated", "alert_id", a.ID)
	s.subs.publish(ctx)
	return nil
}

// Delete removes an alert and withdraws its notifications. Deleting an
// absent alert succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.cancelNotifications(ctx, id)
	s.logger.InfoContext(ctx, "alert deleted", "alert_id", id)
	s.subs.publish(ctx)
	return nil
}

// DeleteAll removes every alert and returns the count removed. The IDs are
// read first so their notifications can be withdrawn after the delete.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	ids, err := s.alertIDs(ctx, s.store.All)
	if err != nil {
		return 0, err
	}
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.cancelNotifications(ctx, ids...)
	s.logger.InfoContext(ctx, "all alerts deleted", "count", n)
	s.subs.publish(ctx)
	return n, nil
}

// DeleteByStatus removes every alert in the given status.
func (s *Service) DeleteByStatus(ctx context.Context, status types.AlertStatus) (int64, error) {
	if !status.Valid() {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidStatus,
			"unknown alert status", nil, map[string]any{"status": status})
	}
	ids, err := s.alertIDs(ctx, func(ctx context.Context) ([]*types.WeatherAlert, error) {
		return s.store.ByStatus(ctx, status)
	})
	if err != nil {
		return 0, err
	}
	n, err := s.store.DeleteByStatus(ctx, status)
	if err != nil {
		return 0, err
	}
	s.cancelNotifications(ctx, ids...)
	s.subs.publish(ctx)
	return n, nil
}

// alertIDs collects the IDs returned by a list query.
func (s *Service) alertIDs(ctx context.Context, list func(context.Context) ([]*types.WeatherAlert, error)) ([]string, error) {
	if s.canceller == nil {
		return nil, nil
	}
	alerts, err := list(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// cancelNotifications withdraws delivered notifications for the given alerts.
func (s *Service) cancelNotifications(ctx context.Context, ids ...string) {
	if s.canceller == nil {
		return
	}
	for _, id := range ids {
		s.canceller.Cancel(ctx, id)
	}
}

// List retrieves all alerts ordered by target time.
func (s *Service) List(ctx context.Context) ([]*types.WeatherAlert, error) {
	return s.store.All(ctx)
}

// ListByStatus retrieves alerts in the given status.
func (s *Service) ListByStatus(ctx context.Context, status types.AlertStatus) ([]*types.WeatherAlert, error) {
	if !status.Valid() {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidStatus,
			"unknown alert status", nil, map[string]any{"status": status})
	}
	return s.store.ByStatus(ctx, status)
}

// ListByType retrieves alerts of the given type.
func (s *Service) ListByType(ctx context.Context, alertType types.AlertType) ([]*types.WeatherAlert, error) {
	return s.store.ByType(ctx, alertType)
}

// UpdateStatus moves an alert to the given status.
func (s *Service) UpdateStatus(ctx context.Context, id string, status types.AlertStatus) error {
	if !status.Valid() {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidStatus,
			"unknown alert status", nil, map[string]any{"status": status})
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if status == types.StatusCancelled {
		s.cancelNotifications(ctx, id)
	}
	s.logger.InfoContext(ctx, "alert status updated", "alert_id", id, "status", status)
	s.subs.publish(ctx)
	return nil
}

// MarkTriggered transitions an alert to TRIGGERED, recording the trigger
// time atomically with the status change.
func (s *Service) MarkTriggered(ctx context.Context, id string, triggeredAt time.Time) error {
	if err := s.store.MarkTriggered(ctx, id, triggeredAt); err != nil {
		return err
	}
	s.subs.publish(ctx)
	return nil
}

// Due retrieves ACTIVE alerts whose target time has arrived, filtering out
// any that have expired in the meantime.
func (s *Service) Due(ctx context.Context, now time.Time) ([]*types.WeatherAlert, error) {
	candidates, err := s.store.Due(ctx, now)
	if err != nil {
		return nil, err
	}
	due := candidates[:0]
	for _, a := range candidates {
		if !a.IsExpired(now) {
			due = append(due, a)
		}
	}
	return due, nil
}

// Reschedule moves a repeating alert's target time forward and returns it
// to ACTIVE so the next occurrence can fire.
func (s *Service) Reschedule(ctx context.Context, id string, nextTarget time.Time) error {
	if err := s.store.Reschedule(ctx, id, nextTarget); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "alert rescheduled",
		"alert_id", id,
		"next_target", nextTarget.Format(time.RFC3339),
	)
	s.subs.publish(ctx)
	return nil
}

// Counts reports the number of ACTIVE and TRIGGERED alerts.
func (s *Service) Counts(ctx context.Context) (active, triggered int, err error) {
	active, err = s.store.CountByStatus(ctx, types.StatusActive)
	if err != nil {
		return 0, 0, err
	}
	triggered, err = s.store.CountByStatus(ctx, types.StatusTriggered)
	if err != nil {
		return 0, 0, err
	}
	return active, triggered, nil
}

// CleanupExpired removes alerts whose expiry has passed. Returns the number
// removed.
func (s *Service) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired alerts cleaned up", "count", n)
		s.subs.publish(ctx)
	}
	return n, nil
}

// Subscribe registers a live query. The returned channel receives the
// current result immediately and again after any mutation that changes the
// result. Call the returned cancel function to release the subscription.
func (s *Service) Subscribe(ctx context.Context, q Query) (<-chan []*types.WeatherAlert, func(), error) {
	return s.subs.subscribe(ctx, q)
}

// String renders a query description for logging.
func (q Query) String() string {
	switch {
	case q.ID != "":
		return fmt.Sprintf("alert(%s)", q.ID)
	case q.Status != nil:
		return fmt.Sprintf("status(%s)", *q.Status)
	case q.Type != nil:
		return fmt.Sprintf("type(%s)", *q.Type)
	default:
		return "all"
	}
}
