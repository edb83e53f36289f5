package service

import (
	"context"
	"fmt"
	"time"

	"github.com/popeskul/wa-inbox/internal/repository"
)

type protocolService struct {
	now func() time.Time
}

func NewProtocolService(now func() time.Time) ProtocolService {
	if now == nil {
		now = time.Now
	}
	return &protocolService{now: now}
}

// Next increments the company's counter for the current UTC day. Rolled back transactions
// leave gaps in the sequence; numbers are never reused.
func (s *protocolService) Next(ctx context.Context, repo repository.Repository) (string, error) {
	day := s.now().UTC()

	seq, err := repo.Protocol().NextValue(ctx, day)
	if err != nil {
		return "", fmt.Errorf("failed to reserve protocol number: %w", err)
	}
	return FormatProtocol(day, seq), nil
}

// FormatProtocol renders YYYYMMDD followed by the zero-padded six digit daily sequence.
func FormatProtocol(day time.Time, seq int64) string {
	return fmt.Sprintf("%s%06d", day.UTC().Format("20060102"), seq)
}
