package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/meridian-crm/meridian-crm/internal/jobs"
	"github.com/meridian-crm/meridian-crm/internal/leads"
)

// sweepTerminalStatuses are the stages the sweep must never overwrite. The
// literals come from the leads enum so the SQL cannot drift from it.
var sweepTerminalStatuses = []leads.Status{leads.StatusFollowup, leads.StatusConverted, leads.StatusLost}

func sweepArgs() []any {
	args := []any{string(leads.StatusFollowup)}
	for _, s := range sweepTerminalStatuses {
		args = append(args, string(s))
	}
	return args
}

// ScanOverdueFollowups flips leads whose follow-up date has passed into
// followup status so they surface on agent dashboards. Converted and lost
// leads are left alone.
func ScanOverdueFollowups(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (int, error) {
	if pool == nil {
		return 0, nil
	}
	tag, err := pool.Exec(ctx, `
		UPDATE leads
		SET status = $1, updated_at = NOW()
		WHERE next_follow_up IS NOT NULL
		  AND next_follow_up < NOW()
		  AND status NOT IN ($2, $3, $4)`, sweepArgs()...)
	if err != nil {
		if logger != nil {
			logger.Error("followup scan", slog.Any("error", err))
		}
		return 0, err
	}
	flipped := int(tag.RowsAffected())
	if logger != nil && flipped > 0 {
		logger.Info("flagged overdue follow-ups", slog.Int("count", flipped), slog.String("job", "followup_scan"))
	}
	return flipped, nil
}

// NewFollowupScanHandler builds the Asynq handler for the periodic sweep.
func NewFollowupScanHandler(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("followup_scan")
		flipped, err := ScanOverdueFollowups(ctx, pool, logger)
		if err == nil {
			metrics.AddOverdueFollowups(flipped)
		}
		return tracker.End(err)
	}
}
