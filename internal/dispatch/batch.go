package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/propease/announce/internal/metrics"
	"github.com/propease/announce/internal/models"
)

// BatchProcessor drives the channel dispatcher across one slice of the
// resolved audience. Tenants fan out concurrently up to the configured
// limit; a tenant's channels are attempted sequentially in the order
// they appear in communication_method, so one broken channel never
// blocks another tenant.
type BatchProcessor struct {
	channels    *ChannelDispatcher
	concurrency int
	logger      *slog.Logger
}

func NewBatchProcessor(channels *ChannelDispatcher, concurrency int, logger *slog.Logger) *BatchProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchProcessor{
		channels:    channels,
		concurrency: concurrency,
		logger:      logger.With("component", "batch"),
	}
}

// Process attempts every (tenant, enabled channel) combination in the
// batch and returns the accumulated results.
func (p *BatchProcessor) Process(ctx context.Context, a *models.Announcement, batch []models.TenantContact) BatchResult {
	var (
		mu     sync.Mutex
		result BatchResult
	)

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for _, contact := range batch {
		sem <- struct{}{}
		wg.Add(1)

		go func(contact models.TenantContact) {
			defer func() {
				<-sem
				wg.Done()
			}()

			var sent, failed []MessageResult
			for _, method := range a.Methods {
				res, attempted := p.channels.Dispatch(ctx, a, contact, method)
				if !attempted {
					continue
				}

				if res.Error == "" {
					metrics.IncMessagesSent(method)
					sent = append(sent, res)
				} else {
					metrics.IncMessagesFailed(method)
					p.logger.Debug("message failed", "tenant_id", contact.ID, "method", method, "error", res.Error)
					failed = append(failed, res)
				}
			}

			mu.Lock()
			result.Sent = append(result.Sent, sent...)
			result.Failed = append(result.Failed, failed...)
			switch {
			case len(sent) > 0:
				result.SuccessTenants++
			case len(failed) > 0:
				result.FailureTenants++
			}
			mu.Unlock()
		}(contact)
	}

	wg.Wait()
	return result
}
