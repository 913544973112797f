package services

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DeadlineBufferHours добавляется после локальной полуночи самого западного
	// участника, чтобы поздние синхронизации очков успели дойти.
	DeadlineBufferHours = 12

	// FallbackUTCOffsetHours — UTC-10, самый западный обитаемый пояс.
	// Используется, когда у участников нет сохранённого смещения.
	FallbackUTCOffsetHours = -10
)

// TimezoneResolver возвращает смещение (в часах от UTC) самого западного
// участника соревнования, либо nil, если смещения неизвестны.
type TimezoneResolver interface {
	LatestTimezoneOffset(ctx context.Context, competitionID int) (*int, error)
}

type DeadlineCalculator struct {
	timezones TimezoneResolver
	logger    *slog.Logger
}

func NewDeadlineCalculator(timezones TimezoneResolver, logger *slog.Logger) *DeadlineCalculator {
	return &DeadlineCalculator{timezones: timezones, logger: logger}
}

// CompletionDeadline возвращает момент (UTC), раньше которого соревнование
// закрывать нельзя: конец последнего дня в поясе самого западного участника
// плюс буфер на доставку очков.
//
// Для end_date D и смещения off (off <= 0 для западных поясов) локальная
// полночь после последнего дня наступает в D+1 00:00 UTC + |off| часов.
func (c *DeadlineCalculator) CompletionDeadline(ctx context.Context, competitionID int, endDate time.Time) time.Time {
	offset := FallbackUTCOffsetHours

	resolved, err := c.timezones.LatestTimezoneOffset(ctx, competitionID)
	switch {
	case err != nil:
		c.logger.Warn("failed to resolve participant timezone, using fallback offset",
			slog.Int("competition_id", competitionID),
			slog.Int("fallback_offset", FallbackUTCOffsetHours),
			slog.Any("error", err))
	case resolved == nil:
		c.logger.Debug("no participant timezone data, using fallback offset",
			slog.Int("competition_id", competitionID))
	default:
		offset = *resolved
	}

	midnightAfterEnd := time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	offsetHours := offset
	if offsetHours < 0 {
		offsetHours = -offsetHours
	}

	return midnightAfterEnd.Add(time.Duration(offsetHours)*time.Hour + DeadlineBufferHours*time.Hour)
}
