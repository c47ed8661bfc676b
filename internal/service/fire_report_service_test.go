package service

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/fire-report-backend/internal/models"
	"github.com/ignatzorin/fire-report-backend/internal/pkg/apperror"
	"github.com/ignatzorin/fire-report-backend/internal/repository"
)

type mockReportStore struct {
	mock.Mock
}

func (m *mockReportStore) Create(ctx context.Context, report *models.FireReport) error {
	args := m.Called(ctx, report)
	if args.Error(0) == nil {
		report.ID = 1
	}
	return args.Error(0)
}

func (m *mockReportStore) GetByID(ctx context.Context, id int64) (*models.FireReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FireReport), args.Error(1)
}

func (m *mockReportStore) ListAll(ctx context.Context) ([]models.FireReport, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.FireReport), args.Error(1)
}

func (m *mockReportStore) ListByStatus(ctx context.Context, status models.ReportStatus) ([]models.FireReport, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]models.FireReport), args.Error(1)
}

func (m *mockReportStore) ListInBox(ctx context.Context, box repository.BoundingBox, since time.Time) ([]models.FireReport, error) {
	args := m.Called(ctx, box, since)
	return args.Get(0).([]models.FireReport), args.Error(1)
}

func (m *mockReportStore) UpdateStatus(ctx context.Context, id int64, status models.ReportStatus) (*models.FireReport, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FireReport), args.Error(1)
}

func (m *mockReportStore) UpdateStatusFrom(ctx context.Context, id int64, expected, next models.ReportStatus) (*models.FireReport, error) {
	args := m.Called(ctx, id, expected, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FireReport), args.Error(1)
}

type mockPhotoStore struct {
	mock.Mock
}

func (m *mockPhotoStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	args := m.Called(ctx, originalName, r)
	return args.String(0), args.Error(1)
}

func (m *mockPhotoStore) Delete(ctx context.Context, photoURL string) error {
	args := m.Called(ctx, photoURL)
	return args.Error(0)
}

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	args := m.Called(ctx, lat, lon)
	return args.String(0), args.Error(1)
}

// notifierRecorder фиксирует вызов оповещения для синхронизации с горутиной.
type notifierRecorder struct {
	called chan *models.FireReport
	err    error
}

func newNotifierRecorder(err error) *notifierRecorder {
	return &notifierRecorder{called: make(chan *models.FireReport, 1), err: err}
}

func (n *notifierRecorder) NotifyEmergency(_ context.Context, report *models.FireReport) error {
	n.called <- report
	return n.err
}

func (n *notifierRecorder) wait(t *testing.T) *models.FireReport {
	t.Helper()
	select {
	case report := <-n.called:
		return report
	case <-time.After(2 * time.Second):
		t.Fatal("оповещение не было отправлено")
		return nil
	}
}

func newTestService(store *mockReportStore, photos *mockPhotoStore, geocoder *mockGeocoder, notifier *notifierRecorder, strict bool) (*FireReportService, clockwork.Clock) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	svc := NewFireReportService(store, photos, geocoder, notifier, clock, strict, time.Second)
	return svc, clock
}

func TestCreateReport_Success(t *testing.T) {
	store := new(mockReportStore)
	photos := new(mockPhotoStore)
	geocoder := new(mockGeocoder)
	notifier := newNotifierRecorder(nil)
	svc, clock := newTestService(store, photos, geocoder, notifier, false)
	ctx := context.Background()

	geocoder.On("ReverseGeocode", ctx, 41.0, 29.0).Return("Стамбул, Турция", nil)
	store.On("Create", ctx, mock.AnythingOfType("*models.FireReport")).Return(nil)

	report, err := svc.CreateReport(ctx, CreateReportInput{
		Latitude:     41.0,
		Longitude:    29.0,
		UrgencyLevel: "high",
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(1), report.ID)
	assert.Equal(t, models.StatusPending, report.Status)
	assert.Equal(t, models.UrgencyHigh, report.UrgencyLevel)
	assert.Equal(t, clock.Now().UTC(), report.ReportedAt)
	assert.NotNil(t, report.Address)
	assert.Equal(t, "Стамбул, Турция", *report.Address)
	assert.Nil(t, report.PhotoURL)

	notified := notifier.wait(t)
	assert.Equal(t, report.ID, notified.ID)
}

func TestCreateReport_DefaultUrgencyMedium(t *testing.T) {
	store := new(mockReportStore)
	photos := new(mockPhotoStore)
	geocoder := new(mockGeocoder)
	notifier := newNotifierRecorder(nil)
	svc, _ := newTestService(store, photos, geocoder, notifier, false)
	ctx := context.Background()

	geocoder.On("ReverseGeocode", ctx, 41.0, 29.0).Return("адрес", nil)
	store.On("Create", ctx, mock.AnythingOfType("*models.FireReport")).Return(nil)

	report, err := svc.CreateReport(ctx, CreateReportInput{Latitude: 41.0, Longitude: 29.0})

	assert.NoError(t, err)
	assert.Equal(t, models.UrgencyMedium, report.UrgencyLevel)
	notifier.wait(t)
}

func TestCreateReport_InvalidUrgency(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), false)

	_, err := svc.CreateReport(context.Background(), CreateReportInput{
		Latitude:     41.0,
		Longitude:    29.0,
		UrgencyLevel: "EXTREME",
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateReport_InvalidLocation(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), false)

	_, err := svc.CreateReport(context.Background(), CreateReportInput{Latitude: 91.0, Longitude: 29.0})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateReport(context.Background(), CreateReportInput{Latitude: 41.0, Longitude: -181.0})
	assert.True(t, apperror.IsValidation(err))

	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateReport_DescriptionTooLong(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), false)

	long := strings.Repeat("а", 501)
	_, err := svc.CreateReport(context.Background(), CreateReportInput{
		Latitude:    41.0,
		Longitude:   29.0,
		Description: &long,
	})

	assert.True(t, apperror.IsValidation(err))
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateReport_DescriptionAtLimitAccepted(t *testing.T) {
	store := new(mockReportStore)
	geocoder := new(mockGeocoder)
	notifier := newNotifierRecorder(nil)
	svc, _ := newTestService(store, new(mockPhotoStore), geocoder, notifier, false)
	ctx := context.Background()

	geocoder.On("ReverseGeocode", ctx, 41.0, 29.0).Return("адрес", nil)
	store.On("Create", ctx, mock.AnythingOfType("*models.FireReport")).Return(nil)

	// Ровно 500 символов проходит, текст сохраняется без усечения.
	limit := strings.Repeat("а", 500)
	report, err := svc.CreateReport(ctx, CreateReportInput{
		Latitude:    41.0,
		Longitude:   29.0,
		Description: &limit,
	})

	assert.NoError(t, err)
	assert.NotNil(t, report.Description)
	assert.Equal(t, limit, *report.Description)
	notifier.wait(t)
}

func TestCreateReport_GeocoderFailureUsesFallback(t *testing.T) {
	store := new(mockReportStore)
	photos := new(mockPhotoStore)
	geocoder := new(mockGeocoder)
	notifier := newNotifierRecorder(nil)
	svc, _ := newTestService(store, photos, geocoder, notifier, false)
	ctx := context.Background()

	geocoder.On("ReverseGeocode", ctx, 41.0, 29.0).Return("", errors.New("nominatim down"))
	store.On("Create", ctx, mock.AnythingOfType("*models.FireReport")).Return(nil)

	report, err := svc.CreateReport(ctx, CreateReportInput{Latitude: 41.0, Longitude: 29.0})

	assert.NoError(t, err)
	assert.NotNil(t, report.Address)
	assert.Equal(t, "Lat: 41, Lon: 29", *report.Address)
	notifier.wait(t)
}

func TestCreateReport_PhotoFailureAbortsCreation(t *testing.T) {
	store := new(mockReportStore)
	photos := new(mockPhotoStore)
	svc, _ := newTestService(store, photos, new(mockGeocoder), newNotifierRecorder(nil), false)
	ctx := context.Background()

	photos.On("Save", ctx, "fire.gif", mock.Anything).
		Return("", apperror.ErrInvalidAttachment)

	_, err := svc.CreateReport(ctx, CreateReportInput{
		Latitude:  41.0,
		Longitude: 29.0,
		Photo:     &PhotoUpload{Filename: "fire.gif", Data: strings.NewReader("data")},
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateReport_StoreFailureRemovesPhoto(t *testing.T) {
	store := new(mockReportStore)
	photos := new(mockPhotoStore)
	geocoder := new(mockGeocoder)
	svc, _ := newTestService(store, photos, geocoder, newNotifierRecorder(nil), false)
	ctx := context.Background()

	photos.On("Save", ctx, "fire.jpg", mock.Anything).Return("/api/photos/abc.jpg", nil)
	geocoder.On("ReverseGeocode", ctx, 41.0, 29.0).Return("адрес", nil)
	store.On("Create", ctx, mock.AnythingOfType("*models.FireReport")).Return(errors.New("db down"))
	photos.On("Delete", ctx, "/api/photos/abc.jpg").Return(nil)

	_, err := svc.CreateReport(ctx, CreateReportInput{
		Latitude:  41.0,
		Longitude: 29.0,
		Photo:     &PhotoUpload{Filename: "fire.jpg", Data: strings.NewReader("data")},
	})

	assert.Error(t, err)
	photos.AssertCalled(t, "Delete", ctx, "/api/photos/abc.jpg")
}

func TestCreateReport_NotifierFailureDoesNotAffectResult(t *testing.T) {
	store := new(mockReportStore)
	geocoder := new(mockGeocoder)
	notifier := newNotifierRecorder(errors.New("sms gateway down"))
	svc, _ := newTestService(store, new(mockPhotoStore), geocoder, notifier, false)
	ctx := context.Background()

	geocoder.On("ReverseGeocode", ctx, 41.0, 29.0).Return("адрес", nil)
	store.On("Create", ctx, mock.AnythingOfType("*models.FireReport")).Return(nil)

	report, err := svc.CreateReport(ctx, CreateReportInput{Latitude: 41.0, Longitude: 29.0})

	assert.NoError(t, err)
	assert.NotNil(t, report)
	notifier.wait(t)
}

func TestUpdateStatus_Success(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), false)
	ctx := context.Background()

	updated := &models.FireReport{ID: 7, Status: models.StatusVerified}
	store.On("UpdateStatus", ctx, int64(7), models.StatusVerified).Return(updated, nil)

	report, err := svc.UpdateStatus(ctx, 7, "verified")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusVerified, report.Status)
}

func TestUpdateStatus_IdempotentRepeat(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), false)
	ctx := context.Background()

	resolved := &models.FireReport{ID: 7, Status: models.StatusResolved}
	store.On("UpdateStatus", ctx, int64(7), models.StatusResolved).Return(resolved, nil)

	first, err := svc.UpdateStatus(ctx, 7, "RESOLVED")
	assert.NoError(t, err)

	second, err := svc.UpdateStatus(ctx, 7, "RESOLVED")
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), false)

	_, err := svc.UpdateStatus(context.Background(), 7, "BURNING")

	assert.True(t, apperror.IsValidation(err))
	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), false)
	ctx := context.Background()

	store.On("UpdateStatus", ctx, int64(404), models.StatusVerified).Return(nil, repository.ErrReportNotFound)

	_, err := svc.UpdateStatus(ctx, 404, "VERIFIED")

	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdateStatus_StrictRejectsSkippedStage(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), true)
	ctx := context.Background()

	pending := &models.FireReport{ID: 7, Status: models.StatusPending}
	store.On("GetByID", ctx, int64(7)).Return(pending, nil)

	_, err := svc.UpdateStatus(ctx, 7, "RESOLVED")

	assert.True(t, apperror.IsValidation(err))
	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_StrictRejectsTerminalExit(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), true)
	ctx := context.Background()

	resolved := &models.FireReport{ID: 7, Status: models.StatusResolved}
	store.On("GetByID", ctx, int64(7)).Return(resolved, nil)

	_, err := svc.UpdateStatus(ctx, 7, "VERIFIED")

	assert.True(t, apperror.IsValidation(err))
}

func TestUpdateStatus_StrictAllowsValidTransition(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), true)
	ctx := context.Background()

	pending := &models.FireReport{ID: 7, Status: models.StatusPending}
	verified := &models.FireReport{ID: 7, Status: models.StatusVerified}
	store.On("GetByID", ctx, int64(7)).Return(pending, nil)
	store.On("UpdateStatusFrom", ctx, int64(7), models.StatusPending, models.StatusVerified).Return(verified, nil)

	report, err := svc.UpdateStatus(ctx, 7, "VERIFIED")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusVerified, report.Status)
}

func TestUpdateStatus_StrictConcurrentTerminalNotOverwritten(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), true)
	ctx := context.Background()

	// Между чтением и записью другой оператор закрывает сообщение:
	// compare-and-swap отклоняет запись по устаревшему снимку, повторная
	// проверка видит терминальный RESOLVED и запрещает переход.
	inProgress := &models.FireReport{ID: 7, Status: models.StatusInProgress}
	resolved := &models.FireReport{ID: 7, Status: models.StatusResolved}
	store.On("GetByID", ctx, int64(7)).Return(inProgress, nil).Once()
	store.On("UpdateStatusFrom", ctx, int64(7), models.StatusInProgress, models.StatusFalseAlarm).
		Return(nil, repository.ErrStatusConflict).Once()
	store.On("GetByID", ctx, int64(7)).Return(resolved, nil).Once()

	_, err := svc.UpdateStatus(ctx, 7, "FALSE_ALARM")

	assert.True(t, apperror.IsValidation(err))
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_StrictRetriesAfterConflict(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), true)
	ctx := context.Background()

	pending := &models.FireReport{ID: 7, Status: models.StatusPending}
	verified := &models.FireReport{ID: 7, Status: models.StatusVerified}
	falseAlarm := &models.FireReport{ID: 7, Status: models.StatusFalseAlarm}
	store.On("GetByID", ctx, int64(7)).Return(pending, nil).Once()
	store.On("UpdateStatusFrom", ctx, int64(7), models.StatusPending, models.StatusFalseAlarm).
		Return(nil, repository.ErrStatusConflict).Once()
	// На повторе статус уже VERIFIED, переход в FALSE_ALARM по-прежнему допустим.
	store.On("GetByID", ctx, int64(7)).Return(verified, nil).Once()
	store.On("UpdateStatusFrom", ctx, int64(7), models.StatusVerified, models.StatusFalseAlarm).
		Return(falseAlarm, nil).Once()

	report, err := svc.UpdateStatus(ctx, 7, "FALSE_ALARM")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusFalseAlarm, report.Status)
	store.AssertExpectations(t)
}

func TestUpdateStatus_PermissiveAllowsAnyTransition(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), false)
	ctx := context.Background()

	resolved := &models.FireReport{ID: 7, Status: models.StatusPending}
	store.On("UpdateStatus", ctx, int64(7), models.StatusPending).Return(resolved, nil)

	_, err := svc.UpdateStatus(ctx, 7, "PENDING")

	assert.NoError(t, err)
	store.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestNearbyReports_BoundingBox(t *testing.T) {
	store := new(mockReportStore)
	svc, clock := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), false)
	ctx := context.Background()

	latDiff := 1.0 / 111.0
	lonDiff := 1.0 / (111.0 * math.Cos(41.0*math.Pi/180))
	expectedBox := repository.BoundingBox{
		MinLat: 41.0 - latDiff,
		MaxLat: 41.0 + latDiff,
		MinLon: 29.0 - lonDiff,
		MaxLon: 29.0 + lonDiff,
	}
	expectedSince := clock.Now().UTC().Add(-7 * 24 * time.Hour)

	store.On("ListInBox", ctx, expectedBox, expectedSince).Return([]models.FireReport{{ID: 1}}, nil)

	reports, err := svc.NearbyReports(ctx, 41.0, 29.0, 1.0)

	assert.NoError(t, err)
	assert.Len(t, reports, 1)
	store.AssertExpectations(t)
}

func TestNearbyReports_DefaultRadius(t *testing.T) {
	store := new(mockReportStore)
	svc, clock := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), false)
	ctx := context.Background()

	latDiff := 5.0 / 111.0
	lonDiff := 5.0 / (111.0 * math.Cos(41.0*math.Pi/180))
	expectedBox := repository.BoundingBox{
		MinLat: 41.0 - latDiff,
		MaxLat: 41.0 + latDiff,
		MinLon: 29.0 - lonDiff,
		MaxLon: 29.0 + lonDiff,
	}
	expectedSince := clock.Now().UTC().Add(-7 * 24 * time.Hour)

	store.On("ListInBox", ctx, expectedBox, expectedSince).Return([]models.FireReport{}, nil)

	_, err := svc.NearbyReports(ctx, 41.0, 29.0, 0)

	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestNearbyReports_InvalidCenter(t *testing.T) {
	store := new(mockReportStore)
	svc, _ := newTestService(store, new(mockPhotoStore), new(mockGeocoder), newNotifierRecorder(nil), false)

	_, err := svc.NearbyReports(context.Background(), 95.0, 29.0, 1.0)

	assert.True(t, apperror.IsValidation(err))
	store.AssertNotCalled(t, "ListInBox", mock.Anything, mock.Anything, mock.Anything)
}
