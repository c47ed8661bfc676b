package models

import (
	"fmt"
	"strings"
	"time"
)

// ReportStatus — стадия жизненного цикла сообщения, управляется оператором.
type ReportStatus string

const (
	StatusPending    ReportStatus = "PENDING"
	StatusVerified   ReportStatus = "VERIFIED"
	StatusInProgress ReportStatus = "IN_PROGRESS"
	StatusResolved   ReportStatus = "RESOLVED"
	StatusFalseAlarm ReportStatus = "FALSE_ALARM"
)

// UrgencyLevel — заявленная отправителем степень срочности.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "LOW"
	UrgencyMedium   UrgencyLevel = "MEDIUM"
	UrgencyHigh     UrgencyLevel = "HIGH"
	UrgencyCritical UrgencyLevel = "CRITICAL"
)

// FireReport — одно сообщение о пожаре от гражданина.
// Поля id, latitude, longitude, reported_at, urgency_level, photo_url и address
// записываются один раз при создании; меняется только status.
type FireReport struct {
	ID            int64        `db:"id" json:"id"`
	Latitude      float64      `db:"latitude" json:"latitude"`
	Longitude     float64      `db:"longitude" json:"longitude"`
	Description   *string      `db:"description" json:"description,omitempty"`
	PhotoURL      *string      `db:"photo_url" json:"photo_url,omitempty"`
	ReporterPhone *string      `db:"reporter_phone" json:"reporter_phone,omitempty"`
	ReportedAt    time.Time    `db:"reported_at" json:"reported_at"`
	Status        ReportStatus `db:"status" json:"status"`
	Address       *string      `db:"address" json:"address,omitempty"`
	UrgencyLevel  UrgencyLevel `db:"urgency_level" json:"urgency_level"`
}

// ParseStatus разбирает статус без учёта регистра.
func ParseStatus(raw string) (ReportStatus, error) {
	switch ReportStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusVerified:
		return StatusVerified, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusResolved:
		return StatusResolved, nil
	case StatusFalseAlarm:
		return StatusFalseAlarm, nil
	}
	return "", fmt.Errorf("неизвестный статус %q", raw)
}

// ParseUrgency разбирает уровень срочности без учёта регистра.
// Пустая строка означает, что клиент уровень не указал — возвращаем MEDIUM.
func ParseUrgency(raw string) (UrgencyLevel, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UrgencyMedium, nil
	}

	switch UrgencyLevel(strings.ToUpper(trimmed)) {
	case UrgencyLow:
		return UrgencyLow, nil
	case UrgencyMedium:
		return UrgencyMedium, nil
	case UrgencyHigh:
		return UrgencyHigh, nil
	case UrgencyCritical:
		return UrgencyCritical, nil
	}
	return "", fmt.Errorf("неизвестный уровень срочности %q", raw)
}

// transitions — допустимые переходы статусов в строгом режиме.
// RESOLVED и FALSE_ALARM терминальные.
var transitions = map[ReportStatus][]ReportStatus{
	StatusPending:    {StatusVerified, StatusFalseAlarm},
	StatusVerified:   {StatusInProgress, StatusFalseAlarm},
	StatusInProgress: {StatusResolved, StatusFalseAlarm},
}

// CanTransition сообщает, допустим ли переход from -> to по таблице переходов.
// Повторное применение текущего статуса всегда допустимо (идемпотентность).
func CanTransition(from, to ReportStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
