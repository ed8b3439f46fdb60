package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// Stats aggregates platform-wide booking and revenue metrics for the
// admin dashboard.
type Stats struct {
	AppointmentsByStatus map[string]int64 `json:"appointments_by_status"`
	DoctorLoad           []DoctorLoad     `json:"doctor_load"`
	RevenuePaise         int64            `json:"revenue_paise"`
	PaymentsCaptured     int64            `json:"payments_captured"`
	PeriodStart          string           `json:"period_start"`
	PeriodEnd            string           `json:"period_end"`
}

// DoctorLoad is the booked-appointment count for a single doctor.
type DoctorLoad struct {
	DoctorID     string `json:"doctor_id"`
	DoctorName   string `json:"doctor_name"`
	Appointments int64  `json:"appointments"`
}

// statsDB defines the database interface needed by StatsRepository.
type statsDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StatsRepository queries aggregate metrics from the database.
type StatsRepository struct {
	db statsDB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	if pool == nil {
		panic("admin: pgx pool required for stats")
	}
	return &StatsRepository{db: pool}
}

// NewStatsRepositoryWithDB allows injecting a mock database for testing.
func NewStatsRepositoryWithDB(db statsDB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats retrieves aggregated platform metrics. Optional start/end
// times filter by appointment scheduled time; if nil, returns all-time
// stats.
func (r *StatsRepository) GetStats(ctx context.Context, start, end *time.Time) (*Stats, error) {
	stats := &Stats{AppointmentsByStatus: map[string]int64{}}

	var timeFilter string
	var args []interface{}

	if start != nil && end != nil {
		timeFilter = " WHERE scheduled_at >= $1 AND scheduled_at < $2"
		args = append(args, *start, *end)
		stats.PeriodStart = start.Format(time.RFC3339)
		stats.PeriodEnd = end.Format(time.RFC3339)
	} else {
		stats.PeriodStart = "all-time"
		stats.PeriodEnd = "now"
	}

	statusQuery := `SELECT status, COUNT(*) FROM appointments` + timeFilter + ` GROUP BY status`
	rows, err := r.db.Query(ctx, statusQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("admin stats: count by status: %w", err)
	}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("admin stats: scan status row: %w", err)
		}
		stats.AppointmentsByStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admin stats: status rows: %w", err)
	}

	loadQuery := `SELECT doctor_id, doctor_name, COUNT(*) FROM appointments` + timeFilter +
		` GROUP BY doctor_id, doctor_name ORDER BY COUNT(*) DESC`
	rows, err = r.db.Query(ctx, loadQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("admin stats: doctor load: %w", err)
	}
	for rows.Next() {
		var load DoctorLoad
		if err := rows.Scan(&load.DoctorID, &load.DoctorName, &load.Appointments); err != nil {
			rows.Close()
			return nil, fmt.Errorf("admin stats: scan load row: %w", err)
		}
		stats.DoctorLoad = append(stats.DoctorLoad, load)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admin stats: load rows: %w", err)
	}

	// Payment metrics key off payment creation time rather than the
	// appointment schedule.
	payFilter := ""
	if timeFilter != "" {
		payFilter = " AND created_at >= $1 AND created_at < $2"
	}
	capturedQuery := `SELECT COUNT(*), COALESCE(SUM(amount_paise), 0) FROM payments WHERE status = 'captured'` + payFilter
	if err := r.db.QueryRow(ctx, capturedQuery, args...).Scan(&stats.PaymentsCaptured, &stats.RevenuePaise); err != nil {
		return nil, fmt.Errorf("admin stats: sum captured: %w", err)
	}

	return stats, nil
}

// StatsHandler provides HTTP endpoints for platform statistics.
type StatsHandler struct {
	repo   *StatsRepository
	logger *logging.Logger
}

// NewStatsHandler creates a new stats HTTP handler.
func NewStatsHandler(repo *StatsRepository, logger *logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{
		repo:   repo,
		logger: logger,
	}
}

// GetStats returns aggregated platform metrics.
// GET /admin/stats
// Query params:
//   - start: RFC3339 timestamp for period start (optional)
//   - end: RFC3339 timestamp for period end (optional)
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	var start, end *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, `{"error": "invalid start time, use RFC3339 format"}`, http.StatusBadRequest)
			return
		}
		start = &t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			http.Error(w, `{"error": "invalid end time, use RFC3339 format"}`, http.StatusBadRequest)
			return
		}
		end = &t
	}

	// If only one is provided, require both
	if (start == nil) != (end == nil) {
		http.Error(w, `{"error": "both start and end must be provided, or neither"}`, http.StatusBadRequest)
		return
	}

	stats, err := h.repo.GetStats(r.Context(), start, end)
	if err != nil {
		h.logger.Error("failed to get platform stats", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode platform stats", "error", err)
	}
}
