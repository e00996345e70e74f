package idgen

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Snowflake-style id generator: 41 bits of millisecond timestamp, 10 bits
// of worker id, 12 bits of per-millisecond sequence. Transaction numbers
// and voucher codes both hang off it.

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init sets up the default generator. Call once at startup.
func Init(workerID int64) {
	once.Do(func() {
		if workerID < 0 || workerID > maxWorkerID {
			log.Fatalf("workerID must be between 0 and %d", maxWorkerID)
		}
		defaultGenerator = &Snowflake{workerID: workerID}
	})
}

// NextID returns the next id from the default generator.
func NextID() int64 {
	if defaultGenerator == nil {
		Init(1)
	}
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted, spin to the next millisecond
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// GenerateTransactionNo returns a points-ledger transaction number:
// a PTX prefix, a second-resolution timestamp and 8 digits of the
// snowflake id, e.g. PTX2024011514305212345678.
func GenerateTransactionNo() string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("PTX%s%08d", timestamp, id%100000000)
}

// GenerateVoucherCode builds an uppercased voucher code from the reward's
// prefix, a second-resolution timestamp and a random suffix. Uniqueness is
// enforced by the voucher_code unique index, not checked here; a collision
// aborts the enclosing redemption transaction.
func GenerateVoucherCode(prefix string) string {
	timestamp := time.Now().Format("20060102150405")
	suffix := rand.Intn(0x10000)
	return strings.ToUpper(fmt.Sprintf("%s%s%04X", prefix, timestamp, suffix))
}
