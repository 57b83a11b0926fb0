package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/leave-ledger/ledger"
)

// =============================================================================
// HOLIDAYS - ledger.HolidayCalendar
// =============================================================================

// SaveHoliday creates or updates a holiday.
func (s *Store) SaveHoliday(ctx context.Context, h ledger.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			name = excluded.name,
			recurring = excluded.recurring
	`, h.ID, formatDate(h.Date), h.Name, h.Recurring, formatTime(s.clock.Now()))
	if err != nil {
		return fmt.Errorf("failed to save holiday %s: %w", h.ID, err)
	}
	return nil
}

// ListHolidays returns all holidays ordered by date.
func (s *Store) ListHolidays(ctx context.Context) ([]ledger.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, date, name, recurring FROM holidays ORDER BY date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []ledger.Holiday
	for rows.Next() {
		var h ledger.Holiday
		var date string
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// DeleteHoliday removes a holiday.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	return err
}

// IsHoliday implements ledger.HolidayCalendar. Recurring holidays match on
// month and day. A failed query is logged and counts as a working day.
func (s *Store) IsHoliday(d ledger.Date) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM holidays
		WHERE date = ? OR (recurring = TRUE AND substr(date, 6) = ?)
	`, formatDate(d), d.Time.Format("01-02")).Scan(&count)
	if err != nil {
		s.logger.Error("holiday lookup failed, treating as working day",
			zap.String("date", d.String()), zap.Error(err))
		return false
	}
	return count > 0
}
