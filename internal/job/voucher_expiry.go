package job

import (
	"context"
	"log"
	"time"

	"github.com/boey-13/missing-persons-platform-sub001/internal/config"
	"github.com/boey-13/missing-persons-platform-sub001/internal/repository"

	"gorm.io/gorm"
)

// VoucherExpiryJob flips ACTIVE vouchers past their expires_at to
// EXPIRED so listings read cleanly. Expiry itself is always derived from
// the timestamp; this sweep only catches the status column up, and the
// guarded update means it can never clobber a voucher used in between.
type VoucherExpiryJob struct {
	db          *gorm.DB
	voucherRepo *repository.VoucherRepository
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewVoucherExpiryJob(db *gorm.DB, cfg *config.Config) *VoucherExpiryJob {
	interval := time.Duration(cfg.Business.VoucherSweepMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	return &VoucherExpiryJob{
		db:          db,
		voucherRepo: repository.NewVoucherRepository(db),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    interval,
		batchSize:   100,
	}
}

func (j *VoucherExpiryJob) Start(ctx context.Context) {
	log.Println("[VoucherExpiryJob] started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[VoucherExpiryJob] context cancelled, exiting")
			return
		case <-j.stopCh:
			log.Println("[VoucherExpiryJob] stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *VoucherExpiryJob) Stop() {
	close(j.stopCh)
}

func (j *VoucherExpiryJob) sweep(ctx context.Context) {
	vouchers, err := j.voucherRepo.ListExpiredActive(ctx, time.Now(), j.batchSize)
	if err != nil {
		log.Printf("[VoucherExpiryJob] failed to list expired vouchers: %v", err)
		return
	}

	if len(vouchers) == 0 {
		return
	}

	expiredCount := 0
	for _, voucher := range vouchers {
		flipped, err := j.voucherRepo.MarkExpired(ctx, voucher.ID)
		if err != nil {
			log.Printf("[VoucherExpiryJob] failed to expire voucher: id=%d, err=%v", voucher.ID, err)
			continue
		}
		if flipped {
			expiredCount++
		}
	}

	log.Printf("[VoucherExpiryJob] expired %d vouchers", expiredCount)
}
