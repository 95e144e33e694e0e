package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hearthware/concierge/internal/breaker"
	"github.com/hearthware/concierge/internal/cloud"
	"github.com/hearthware/concierge/internal/metrics"
	"github.com/hearthware/concierge/pkg/models"
)

// ModelRouter executes generation on the requested route. The local path is
// synchronous and always succeeds; the cloud path is gated by the circuit
// breaker and absorbed into a local fallback on any failure, so callers
// never observe a cloud error.
type ModelRouter struct {
	breaker  *breaker.CircuitBreaker
	cloud    *cloud.Client
	provider string
}

// NewModelRouter creates a router that sends cloud work to provider through
// client, consulting cb before every cloud attempt.
func NewModelRouter(cb *breaker.CircuitBreaker, client *cloud.Client, provider string) *ModelRouter {
	return &ModelRouter{breaker: cb, cloud: client, provider: provider}
}

// Generate produces a response for text on the given route.
func (r *ModelRouter) Generate(ctx context.Context, text string, route models.Route) string {
	if route == models.RouteLocal {
		return r.localGenerate(text)
	}

	if !r.breaker.AllowRequest() {
		log.Warn().Msg("cloud request blocked by open circuit, using local generation")
		metrics.CloudBlocked.Inc()
		return r.localGenerate(text)
	}

	resp, err := r.cloud.Complete(ctx, text, r.provider)
	if err != nil {
		r.breaker.RecordFailure()
		metrics.CloudFailures.Inc()
		log.Warn().Err(err).Msg("cloud generation failed, using local generation")
		return r.localGenerate(text)
	}
	r.breaker.RecordSuccess()
	return resp.Text
}

// StreamGenerate mirrors Generate but emits a sequence of growing text
// prefixes, one word appended per chunk. On cloud failure it streams the
// local fallback the same way. The channel is closed when the stream ends
// or ctx is done.
func (r *ModelRouter) StreamGenerate(ctx context.Context, text string, route models.Route) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for _, chunk := range r.streamChunks(ctx, text, route) {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (r *ModelRouter) streamChunks(ctx context.Context, text string, route models.Route) []string {
	if route == models.RouteCloud && r.breaker.AllowRequest() {
		chunks, err := r.cloud.StreamComplete(ctx, text, r.provider)
		if err == nil {
			r.breaker.RecordSuccess()
			return chunks
		}
		r.breaker.RecordFailure()
		metrics.CloudFailures.Inc()
		log.Warn().Err(err).Msg("cloud streaming failed, using local generation")
	} else if route == models.RouteCloud {
		log.Warn().Msg("cloud stream blocked by open circuit, using local generation")
		metrics.CloudBlocked.Inc()
	}

	words := strings.Fields(r.localGenerate(text))
	chunks := make([]string, 0, len(words))
	for i := range words {
		chunks = append(chunks, strings.Join(words[:i+1], " "))
	}
	return chunks
}

// localGenerate is the deterministic local generation path. It never
// touches breaker state.
func (r *ModelRouter) localGenerate(text string) string {
	return fmt.Sprintf("[Local reasoning] %s", text)
}
