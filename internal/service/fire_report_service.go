package service

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ignatzorin/fire-report-backend/internal/geocode"
	"github.com/ignatzorin/fire-report-backend/internal/goroutine"
	"github.com/ignatzorin/fire-report-backend/internal/logger"
	"github.com/ignatzorin/fire-report-backend/internal/models"
	"github.com/ignatzorin/fire-report-backend/internal/notify"
	"github.com/ignatzorin/fire-report-backend/internal/pkg/apperror"
	"github.com/ignatzorin/fire-report-backend/internal/repository"
	"github.com/ignatzorin/fire-report-backend/internal/validation"
)

const (
	// Километров в одном градусе широты.
	kmPerDegree = 111.0
	// Поиск "рядом" ограничен сообщениями за последнюю неделю.
	nearbyWindow = 7 * 24 * time.Hour
	// Число попыток compare-and-swap при конкурентной смене статуса.
	statusCASAttempts = 3
	// Радиус поиска по умолчанию, км.
	DefaultNearbyRadiusKm = 5.0
)

// ReportStore описывает взаимодействие сервиса с хранилищем сообщений.
type ReportStore interface {
	Create(ctx context.Context, report *models.FireReport) error
	GetByID(ctx context.Context, id int64) (*models.FireReport, error)
	ListAll(ctx context.Context) ([]models.FireReport, error)
	ListByStatus(ctx context.Context, status models.ReportStatus) ([]models.FireReport, error)
	ListInBox(ctx context.Context, box repository.BoundingBox, since time.Time) ([]models.FireReport, error)
	UpdateStatus(ctx context.Context, id int64, status models.ReportStatus) (*models.FireReport, error)
	UpdateStatusFrom(ctx context.Context, id int64, expected, next models.ReportStatus) (*models.FireReport, error)
}

// PhotoStore описывает файловое хранилище фотографий.
type PhotoStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Delete(ctx context.Context, photoURL string) error
}

// PhotoUpload — сырой файл фотографии из multipart-запроса.
type PhotoUpload struct {
	Filename string
	Data     io.Reader
}

// CreateReportInput — входные данные создания сообщения.
type CreateReportInput struct {
	Latitude      float64
	Longitude     float64
	Description   *string
	ReporterPhone *string
	UrgencyLevel  string
	Photo         *PhotoUpload
}

// FireReportService — движок приёма и триажа сообщений о пожарах.
// Все зависимости передаются явно при конструировании.
type FireReportService struct {
	store             ReportStore
	photos            PhotoStore
	geocoder          geocode.Geocoder
	notifier          notify.Notifier
	clock             clockwork.Clock
	strictTransitions bool
	notifyTimeout     time.Duration
}

func NewFireReportService(
	store ReportStore,
	photos PhotoStore,
	geocoder geocode.Geocoder,
	notifier notify.Notifier,
	clock clockwork.Clock,
	strictTransitions bool,
	notifyTimeout time.Duration,
) *FireReportService {
	return &FireReportService{
		store:             store,
		photos:            photos,
		geocoder:          geocoder,
		notifier:          notifier,
		clock:             clock,
		strictTransitions: strictTransitions,
		notifyTimeout:     notifyTimeout,
	}
}

// CreateReport принимает новое сообщение о пожаре.
// Порядок шагов фиксирован: фото -> геокодирование -> запись -> оповещение.
// Отказ до записи отклоняет запрос целиком; отказ оповещения после записи
// только логируется.
func (s *FireReportService) CreateReport(ctx context.Context, in CreateReportInput) (*models.FireReport, error) {
	if err := validation.ValidateLocation(in.Latitude, in.Longitude); err != nil {
		return nil, err
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, err
	}

	urgency, err := models.ParseUrgency(in.UrgencyLevel)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, apperror.ErrInvalidUrgency.Message)
	}

	// Фото сохраняется первым: его отказ отклоняет запрос до любой записи в базу.
	var photoURL *string
	if in.Photo != nil {
		url, err := s.photos.Save(ctx, in.Photo.Filename, in.Photo.Data)
		if err != nil {
			return nil, err
		}
		photoURL = &url
	}

	// Геокодирование не должно блокировать приём: при любой ошибке
	// подставляем детерминированный адрес из координат.
	address := s.resolveAddress(ctx, in.Latitude, in.Longitude)

	report := &models.FireReport{
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		Description:   in.Description,
		PhotoURL:      photoURL,
		ReporterPhone: in.ReporterPhone,
		ReportedAt:    s.clock.Now().UTC(),
		Status:        models.StatusPending,
		Address:       &address,
		UrgencyLevel:  urgency,
	}

	if err := s.store.Create(ctx, report); err != nil {
		// Запись не состоялась: убираем уже сохранённое фото, чтобы
		// хранилище не накапливало файлы без записей.
		if photoURL != nil {
			if delErr := s.photos.Delete(ctx, *photoURL); delErr != nil {
				logger.WithComponent("fire_report_service").WithError(delErr).
					Warn("не удалось удалить фото после отказа записи")
			}
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить сообщение")
	}

	s.dispatchNotification(report)

	return report, nil
}

// dispatchNotification запускает best-effort оповещение в отдельной горутине.
// Один запуск, ограниченный по времени, без повторов: отказ уже объявлен
// нефатальным, запись в базе остаётся источником истины.
func (s *FireReportService) dispatchNotification(report *models.FireReport) {
	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyEmergency(ctx, report); err != nil {
			logger.WithComponent("fire_report_service").WithError(err).
				WithField("report_id", report.ID).
				Error("оповещение о сообщении не отправлено")
		}
	})
}

// resolveAddress возвращает адрес от геокодера либо детерминированную подстановку.
func (s *FireReportService) resolveAddress(ctx context.Context, lat, lon float64) string {
	address, err := s.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil || address == "" {
		if err != nil {
			logger.WithComponent("fire_report_service").WithError(err).
				Warn("геокодер недоступен, используем координаты как адрес")
		}
		return geocode.FallbackAddress(lat, lon)
	}
	return address
}

// GetReport возвращает сообщение по идентификатору.
func (s *FireReportService) GetReport(ctx context.Context, id int64) (*models.FireReport, error) {
	report, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrReportNotFound) {
		return nil, apperror.ErrReportNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось прочитать сообщение")
	}
	return report, nil
}

// ListReports возвращает все сообщения в порядке вставки. Сортировку для
// отображения (свежие первыми) выполняет потребитель.
func (s *FireReportService) ListReports(ctx context.Context) ([]models.FireReport, error) {
	reports, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить список сообщений")
	}
	return reports, nil
}

// ListReportsByStatus возвращает сообщения с заданным статусом, свежие первыми.
func (s *FireReportService) ListReportsByStatus(ctx context.Context, rawStatus string) ([]models.FireReport, error) {
	status, err := models.ParseStatus(rawStatus)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, apperror.ErrInvalidStatus.Message)
	}

	reports, err := s.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить список сообщений")
	}
	return reports, nil
}

// UpdateStatus переводит сообщение в новый статус.
// Повторное применение текущего статуса — no-op успех. В строгом режиме
// дополнительно проверяется таблица переходов; терминальные статусы
// RESOLVED и FALSE_ALARM менять нельзя.
func (s *FireReportService) UpdateStatus(ctx context.Context, id int64, rawStatus string) (*models.FireReport, error) {
	status, err := models.ParseStatus(rawStatus)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, apperror.ErrInvalidStatus.Message)
	}

	if s.strictTransitions {
		return s.updateStatusStrict(ctx, id, status)
	}

	report, err := s.store.UpdateStatus(ctx, id, status)
	if errors.Is(err, repository.ErrReportNotFound) {
		return nil, apperror.ErrReportNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить статус")
	}
	return report, nil
}

// updateStatusStrict выполняет переход по таблице через compare-and-swap:
// запись меняется только если её статус всё ещё равен прочитанному.
// Конкурентная смена статуса между чтением и записью не перезаписывается
// по устаревшему снимку, проверка перехода повторяется на свежем состоянии.
func (s *FireReportService) updateStatusStrict(ctx context.Context, id int64, status models.ReportStatus) (*models.FireReport, error) {
	for attempt := 0; attempt < statusCASAttempts; attempt++ {
		current, err := s.GetReport(ctx, id)
		if err != nil {
			return nil, err
		}
		if !models.CanTransition(current.Status, status) {
			return nil, apperror.Wrap(
				errors.New("переход "+string(current.Status)+" -> "+string(status)+" запрещён"),
				apperror.ErrCodeValidation,
				apperror.ErrInvalidTransition.Message,
			)
		}

		report, err := s.store.UpdateStatusFrom(ctx, id, current.Status, status)
		if errors.Is(err, repository.ErrStatusConflict) {
			continue
		}
		if errors.Is(err, repository.ErrReportNotFound) {
			return nil, apperror.ErrReportNotFound
		}
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить статус")
		}
		return report, nil
	}
	return nil, apperror.ErrStatusConflict
}

// NearbyReports возвращает сообщения за последнюю неделю внутри
// прямоугольника вокруг точки. Это приближение: углы прямоугольника
// дальше радиуса примерно в 1.4 раза, точная геодезия не требуется.
// Вблизи полюсов cos(lat) стремится к нулю и поправка долготы расходится,
// такие широты вне области применения.
func (s *FireReportService) NearbyReports(ctx context.Context, lat, lon, radiusKm float64) ([]models.FireReport, error) {
	if err := validation.ValidateLocation(lat, lon); err != nil {
		return nil, err
	}
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}

	latDiff := radiusKm / kmPerDegree
	lonDiff := radiusKm / (kmPerDegree * math.Cos(lat*math.Pi/180))

	box := repository.BoundingBox{
		MinLat: lat - latDiff,
		MaxLat: lat + latDiff,
		MinLon: lon - lonDiff,
		MaxLon: lon + lonDiff,
	}
	since := s.clock.Now().UTC().Add(-nearbyWindow)

	reports, err := s.store.ListInBox(ctx, box, since)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось выполнить поиск рядом")
	}
	return reports, nil
}
