package payment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/leadyard/internal/metrics"
	"github.com/zulandar/leadyard/internal/models"
	"github.com/zulandar/leadyard/internal/notify"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ExpireAbandoned marks pending purchases created at or before now-olderThan
// as expired and returns how many changed. A session that completes later
// is still finalized.
func ExpireAbandoned(db *gorm.DB, olderThan time.Duration, now time.Time) (int64, error) {
	result := db.Model(&models.Purchase{}).
		Where("status = ? AND created_at <= ?", models.PurchasePending, now.Add(-olderThan)).
		Update("status", models.PurchaseExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("payment: expire abandoned checkouts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Sweeper runs ExpireAbandoned on a cron schedule.
type Sweeper struct {
	DB       *gorm.DB
	TTL      time.Duration
	Metrics  *metrics.Metrics // optional
	Notifier notify.Notifier  // optional
}

// Sweep runs one expiry pass.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := ExpireAbandoned(s.DB.WithContext(ctx), s.TTL, time.Now())
	if err != nil {
		return 0, err
	}
	s.Metrics.RecordExpired(n)
	if n > 0 {
		log.Printf("payment: expired %d abandoned checkout(s)", n)
		if s.Notifier != nil {
			if err := s.Notifier.Notify(ctx, notify.FormatExpired(n)); err != nil {
				log.Printf("payment: notify expiry: %v", err)
			}
		}
	}
	return n, nil
}

// Start schedules Sweep with a 5-field cron expression. The returned
// scheduler is running; stop it with Stop.
func (s *Sweeper) Start(ctx context.Context, spec string) (*cron.Cron, error) {
	if _, err := cronParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("payment: parse expiry schedule %q: %w", spec, err)
	}
	c := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			log.Printf("payment: expiry sweep: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("payment: schedule expiry: %w", err)
	}
	c.Start()
	return c, nil
}

// NextRun returns the duration until spec next fires. Returns 0 on parse
// error.
func NextRun(spec string, now time.Time) time.Duration {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return 0
	}
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
