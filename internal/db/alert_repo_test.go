package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clearsky/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- Mock Rows for alert queries ---

// alertMockRows implements pgx.Rows, yielding pre-built alerts through the
// scanAlert column ordering.
type alertMockRows struct {
	alerts []*types.WeatherAlert
	idx    int
	closed bool
	errVal error
}

func newAlertMockRows(alerts ...*types.WeatherAlert) *alertMockRows {
	return &alertMockRows{alerts: alerts, idx: -1}
}

func (r *alertMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.alerts)
}

func (r *alertMockRows) Scan(dest ...any) error {
	a := r.alerts[r.idx]
	*dest[0].(*string) = a.ID
	*dest[1].(*string) = a.Title
	*dest[2].(*string) = a.Description
	*dest[3].(*types.AlertType) = a.AlertType
	*dest[4].(*types.AlertCondition) = a.Condition
	*dest[5].(*types.AlertLocation) = a.Location
	*dest[6].(*time.Time) = a.TargetDateTime
	*dest[7].(**time.Time) = a.ExpiryDateTime
	*dest[8].(*types.AlertStatus) = a.Status
	*dest[9].(*bool) = a.IsRepeating
	if a.RepeatInterval != "" {
		s := string(a.RepeatInterval)
		*dest[10].(**string) = &s
	}
	*dest[11].(*time.Time) = a.CreatedAt
	*dest[12].(*time.Time) = a.UpdatedAt
	*dest[13].(**time.Time) = a.LastTriggeredAt
	*dest[14].(*bool) = a.NotificationEnabled
	*dest[15].(*bool) = a.NotificationSound
	*dest[16].(*bool) = a.NotificationVibrate
	if a.CustomMessage != "" {
		s := a.CustomMessage
		*dest[17].(**string) = &s
	}
	return nil
}

func (r *alertMockRows) Close()                                       { r.closed = true }
func (r *alertMockRows) Err() error                                   { return r.errVal }
func (r *alertMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *alertMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *alertMockRows) RawValues() [][]byte                          { return nil }
func (r *alertMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *alertMockRows) Conn() *pgx.Conn                              { return nil }

func testAlert(id string) *types.WeatherAlert {
	return &types.WeatherAlert{
		ID:                  id,
		Title:               "Heavy rain warning",
		AlertType:           types.AlertRain,
		Condition:           types.MetricCondition(types.KindRain, types.OpGreaterThan, 10.0),
		Location:            types.NewAlertLocation(51.51, -0.13, "London", "UK"),
		TargetDateTime:      time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC),
		Status:              types.StatusActive,
		NotificationEnabled: true,
		NotificationSound:   true,
		NotificationVibrate: true,
	}
}

// --- AlertRepository Tests ---

func TestAlertRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Create(context.Background(), testAlert("alr_1"))
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAlertRepository_Create_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Create(context.Background(), testAlert("alr_1"))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestAlertRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	want := testAlert("alr_found")
	want.RepeatInterval = types.RepeatDaily
	rows := newAlertMockRows(want)
	rows.idx = 0

	row := &mockRow{scanFn: rows.Scan}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	got, err := repo.GetByID(context.Background(), "alr_found")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alr_found", got.ID)
	assert.Equal(t, types.AlertRain, got.AlertType)
	assert.Equal(t, types.RepeatDaily, got.RepeatInterval)
	assert.Equal(t, want.Condition, got.Condition)
}

func TestAlertRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	got, err := repo.GetByID(context.Background(), "alr_missing")
	require.NoError(t, err, "absence is not an error")
	assert.Nil(t, got)
}

func TestAlertRepository_Update_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.Update(context.Background(), testAlert("alr_missing"))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundAlert, appErr.Code)
}

func TestAlertRepository_Delete_Idempotent(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	// Zero rows affected is still success: deletes are idempotent.
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.Delete(context.Background(), "alr_already_gone")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAlertRepository_Due_FiltersOnStatusAndTarget(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	rows := newAlertMockRows(testAlert("alr_1"), testAlert("alr_2"))

	db.On("Query", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "status = $1") && strings.Contains(sql, "target_datetime <= $2")
	}), mock.Anything).Return(rows, nil)

	due, err := repo.Due(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "alr_1", due[0].ID)
	db.AssertExpectations(t)
}

func TestAlertRepository_Due_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection reset"))

	_, err := repo.Due(context.Background(), time.Now())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestAlertRepository_Expired_ExcludesAlreadyExpired(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	rows := newAlertMockRows(testAlert("alr_old"))
	db.On("Query", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "expiry_datetime < $1") && strings.Contains(sql, "status != $2")
	}), mock.Anything).Return(rows, nil)

	expired, err := repo.Expired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	db.AssertExpectations(t)
}

func TestAlertRepository_MarkTriggered_SingleStatement(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	// Status and last_triggered_at must move together in one UPDATE.
	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "status = $1") && strings.Contains(sql, "last_triggered_at = $2")
	}), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.MarkTriggered(context.Background(), "alr_1", time.Now())
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAlertRepository_Reschedule(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	next := time.Date(2026, 4, 2, 7, 0, 0, 0, time.UTC)
	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "target_datetime = $1") && strings.Contains(sql, "status = $2")
	}), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.Reschedule(context.Background(), "alr_1", next)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAlertRepository_CountByStatus(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	row := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*int) = 7
		return nil
	}}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	count, err := repo.CountByStatus(context.Background(), types.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestAlertRepository_DeleteExpired_ReturnsCount(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 3"), nil)

	n, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestAlertRepository_CreateBatch_PartialFailure(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("constraint violation")).Once()
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()

	created, failed, err := repo.CreateBatch(context.Background(),
		[]*types.WeatherAlert{testAlert("alr_1"), testAlert("alr_2"), testAlert("alr_3")})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, created)
	require.Len(t, failed, 1)
	assert.Contains(t, failed, 1)
}

func TestAlertRepository_CreateBatch_SizeLimit(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	alerts := make([]*types.WeatherAlert, types.MaxBatchSize+1)
	for i := range alerts {
		alerts[i] = testAlert("alr_batch")
	}

	_, _, err := repo.CreateBatch(context.Background(), alerts)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationBatchSize, appErr.Code)
}
