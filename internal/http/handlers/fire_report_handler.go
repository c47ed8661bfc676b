package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/ignatzorin/fire-report-backend/internal/dto"
	"github.com/ignatzorin/fire-report-backend/internal/models"
	"github.com/ignatzorin/fire-report-backend/internal/pkg/apperror"
	"github.com/ignatzorin/fire-report-backend/internal/service"
)

// FireReportHandler обслуживает маршруты /api/fire-reports.
type FireReportHandler struct {
	svc *service.FireReportService
}

func NewFireReportHandler(svc *service.FireReportService) *FireReportHandler {
	return &FireReportHandler{svc: svc}
}

// Create обрабатывает POST /api/fire-reports.
// Multipart: JSON-часть "data" и опциональная бинарная часть "photo".
func (h *FireReportHandler) Create(c *gin.Context) {
	rawData := c.PostForm("data")
	if rawData == "" {
		c.JSON(http.StatusBadRequest, dto.Fail("часть data обязательна"))
		return
	}

	var req dto.FireReportRequest
	if err := json.Unmarshal([]byte(rawData), &req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail("не удалось разобрать data: "+err.Error()))
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		c.JSON(http.StatusBadRequest, dto.Fail("поля latitude и longitude обязательны"))
		return
	}

	in := service.CreateReportInput{
		Latitude:      *req.Latitude,
		Longitude:     *req.Longitude,
		Description:   req.Description,
		ReporterPhone: req.ReporterPhone,
		UrgencyLevel:  req.UrgencyLevel,
	}

	if file, err := c.FormFile("photo"); err == nil {
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.Fail("не удалось прочитать фотографию"))
			return
		}
		defer src.Close()

		// Проверяем магические байты до записи: расширение легко подделать.
		if err := checkPhotoMagic(src); err != nil {
			c.JSON(http.StatusBadRequest, dto.Fail(err.Error()))
			return
		}

		in.Photo = &service.PhotoUpload{
			Filename: file.Filename,
			Data:     src,
		}
	}

	report, err := h.svc.CreateReport(c.Request.Context(), in)
	if err != nil {
		respondEnvelopeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.OK("Ваше сообщение о пожаре зарегистрировано. Дежурные службы оповещены.", report))
}

// List обрабатывает GET /api/fire-reports.
// Необязательный query-параметр status фильтрует по статусу.
func (h *FireReportHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		reports []models.FireReport
		err     error
	)
	if rawStatus := c.Query("status"); rawStatus != "" {
		reports, err = h.svc.ListReportsByStatus(ctx, rawStatus)
	} else {
		reports, err = h.svc.ListReports(ctx)
	}
	if err != nil {
		respondEnvelopeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewReportDataList(reports))
}

// Get обрабатывает GET /api/fire-reports/:id.
func (h *FireReportHandler) Get(c *gin.Context) {
	id, err := parseReportID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail("неверный идентификатор сообщения"))
		return
	}

	report, err := h.svc.GetReport(c.Request.Context(), id)
	if err != nil {
		if apperror.IsNotFound(err) {
			c.Status(http.StatusNotFound)
			return
		}
		respondEnvelopeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewReportData(report))
}

// UpdateStatus обрабатывает PUT /api/fire-reports/:id/status?status=S.
// Любая ошибка (включая неизвестный id) отдаётся конвертом с кодом 400,
// как в существующих клиентах консоли.
func (h *FireReportHandler) UpdateStatus(c *gin.Context) {
	id, err := parseReportID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail("неверный идентификатор сообщения"))
		return
	}

	rawStatus := c.Query("status")
	if rawStatus == "" {
		c.JSON(http.StatusBadRequest, dto.Fail("параметр status обязателен"))
		return
	}

	report, err := h.svc.UpdateStatus(c.Request.Context(), id, rawStatus)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code != apperror.ErrCodeDatabaseError {
			c.JSON(http.StatusBadRequest, dto.Fail(appErr.Message))
			return
		}
		respondEnvelopeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK("Статус сообщения успешно обновлён.", report))
}

// Nearby обрабатывает GET /api/fire-reports/nearby?lat=&lon=&radius=.
func (h *FireReportHandler) Nearby(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail("параметр lat обязателен"))
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail("параметр lon обязателен"))
		return
	}

	radius := service.DefaultNearbyRadiusKm
	if rawRadius := c.Query("radius"); rawRadius != "" {
		radius, err = strconv.ParseFloat(rawRadius, 64)
		// ParseFloat принимает "NaN" и "Inf", для радиуса они бессмысленны.
		if err != nil || math.IsNaN(radius) || math.IsInf(radius, 0) {
			c.JSON(http.StatusBadRequest, dto.Fail("неверный параметр radius"))
			return
		}
	}

	reports, err := h.svc.NearbyReports(c.Request.Context(), lat, lon, radius)
	if err != nil {
		respondEnvelopeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewReportDataList(reports))
}

// parseReportID извлекает числовой id из пути.
func parseReportID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// respondEnvelopeError передаёт ошибку сервиса в middleware.ErrorHandler,
// который переводит её в конверт ответа.
func respondEnvelopeError(c *gin.Context, err error) {
	_ = c.Error(err)
}

// checkPhotoMagic убеждается, что содержимое файла — изображение.
// Читает первые 512 байт и возвращает reader в начало. io.ReadFull
// добирает заголовок целиком: io.Reader может отдавать данные частями,
// а по короткому первому чтению формат не распознать.
func checkPhotoMagic(src io.ReadSeeker) error {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(src, buffer)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return errors.New("не удалось прочитать фотографию")
	}

	kind, err := filetype.Match(buffer[:n])
	if err != nil || kind == filetype.Unknown || !filetype.IsImage(buffer[:n]) {
		return errors.New("файл не распознан как изображение")
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return errors.New("не удалось перечитать фотографию")
	}
	return nil
}
