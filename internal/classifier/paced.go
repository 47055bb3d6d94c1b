package classifier

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type paced struct {
	next    Classifier
	limiter *rate.Limiter
}

// Paced spaces successive calls to c by at least interval. The first call
// goes through immediately. A non-positive interval returns c unchanged.
func Paced(c Classifier, interval time.Duration) Classifier {
	if interval <= 0 {
		return c
	}
	return &paced{
		next:    c,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (p *paced) ExtractFriends(ctx context.Context, text string) ([]string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pacing: %w", err)
	}
	return p.next.ExtractFriends(ctx, text)
}

func (p *paced) Categorize(ctx context.Context, req CategorizeRequest) (*Categorization, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pacing: %w", err)
	}
	return p.next.Categorize(ctx, req)
}
