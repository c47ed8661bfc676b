package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/fire-report-backend/internal/models"
)

var (
	ErrReportNotFound = errors.New("fire report not found")
	// ErrStatusConflict: статус записи изменился между чтением и записью.
	ErrStatusConflict = errors.New("fire report status changed concurrently")
)

// BoundingBox — осевой прямоугольник координат для поиска "рядом".
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

type FireReportRepository struct {
	db *sqlx.DB
}

func NewFireReportRepository(db *sqlx.DB) *FireReportRepository {
	return &FireReportRepository{db: db}
}

// Create сохраняет новое сообщение. ID назначается базой (монотонно растущий
// BIGSERIAL), остальные поля записываются как переданы.
func (r *FireReportRepository) Create(ctx context.Context, report *models.FireReport) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO fire_reports (latitude, longitude, description, photo_url, reporter_phone, reported_at, status, address, urgency_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, report.Latitude, report.Longitude, report.Description, report.PhotoURL,
		report.ReporterPhone, report.ReportedAt, report.Status, report.Address, report.UrgencyLevel).
		Scan(&report.ID)
	if err != nil {
		return fmt.Errorf("fire report repository: insert: %w", err)
	}
	return nil
}

func (r *FireReportRepository) GetByID(ctx context.Context, id int64) (*models.FireReport, error) {
	var report models.FireReport
	err := r.db.GetContext(ctx, &report, `SELECT * FROM fire_reports WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	return &report, err
}

// ListAll возвращает все сообщения в порядке вставки (по id).
// Порядок по id гарантирован serial-ключом и задокументирован для вызывающих.
func (r *FireReportRepository) ListAll(ctx context.Context) ([]models.FireReport, error) {
	var reports []models.FireReport
	err := r.db.SelectContext(ctx, &reports, `SELECT * FROM fire_reports ORDER BY id`)
	return reports, err
}

// ListByStatus возвращает сообщения с заданным статусом, свежие первыми.
func (r *FireReportRepository) ListByStatus(ctx context.Context, status models.ReportStatus) ([]models.FireReport, error) {
	var reports []models.FireReport
	err := r.db.SelectContext(ctx, &reports, `
		SELECT * FROM fire_reports WHERE status = $1 ORDER BY reported_at DESC
	`, status)
	return reports, err
}

// ListInBox возвращает сообщения внутри прямоугольника координат не старше since,
// свежие первыми.
func (r *FireReportRepository) ListInBox(ctx context.Context, box BoundingBox, since time.Time) ([]models.FireReport, error) {
	var reports []models.FireReport
	err := r.db.SelectContext(ctx, &reports, `
		SELECT * FROM fire_reports
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
		  AND reported_at >= $5
		ORDER BY reported_at DESC
	`, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, since)
	return reports, err
}

// UpdateStatus меняет только статус и возвращает обновлённую запись.
// Одиночный UPDATE ... RETURNING даёт построчную атомарность: конкурентные
// переходы по одному id не теряют обновления.
func (r *FireReportRepository) UpdateStatus(ctx context.Context, id int64, status models.ReportStatus) (*models.FireReport, error) {
	var report models.FireReport
	err := r.db.QueryRowxContext(ctx, `
		UPDATE fire_reports SET status = $2 WHERE id = $1
		RETURNING *
	`, id, status).StructScan(&report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fire report repository: update status: %w", err)
	}
	return &report, nil
}

// UpdateStatusFrom меняет статус только если текущий статус равен ожидаемому
// (compare-and-swap). Возвращает ErrStatusConflict, когда запись существует,
// но её статус успел измениться: конкурентный переход по тому же id не может
// перезаписать чужой результат по устаревшему снимку.
func (r *FireReportRepository) UpdateStatusFrom(ctx context.Context, id int64, expected, next models.ReportStatus) (*models.FireReport, error) {
	var report models.FireReport
	err := r.db.QueryRowxContext(ctx, `
		UPDATE fire_reports SET status = $2 WHERE id = $1 AND status = $3
		RETURNING *
	`, id, next, expected).StructScan(&report)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if checkErr := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM fire_reports WHERE id = $1)`, id); checkErr != nil {
			return nil, fmt.Errorf("fire report repository: update status from: %w", checkErr)
		}
		if !exists {
			return nil, ErrReportNotFound
		}
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("fire report repository: update status from: %w", err)
	}
	return &report, nil
}
