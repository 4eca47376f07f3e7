package pdf

import (
	"context"
	"time"
)

// LetterData is what goes onto a printed response letter.
type LetterData struct {
	ComplaintID     int64
	CustomerEmail   string
	Content         string
	FiledAt         time.Time
	ResolvedAt      time.Time
	Response        string
	ComplexityScore int
	FilingFee       int64
	Currency        string
}

type Provider interface {
	GenerateLetter(ctx context.Context, data LetterData) ([]byte, error)
}
