// Package oracle wraps the external language-model oracle shared by plan
// compilation, intent classification, and offline alias-map generation
// (spec.md §4.2/§4.4/§9: "the only non-deterministic element ... all
// three sites cache their results, validate outputs against a closed
// schema, and retry once on validation failure"). The transport is
// grounded on the Anthropic client wrapper in the teacher corpus's
// steveyegge-beads issue-summarization client, generalized from a single
// prompt template into a bare prompt-in/text-out call the three callers
// layer their own schemas and retry policy on top of.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("oracle: API key required")

// Oracle is the narrow contract the Plan Compiler, the intent
// classifier, and the alias-map generator depend on. Each caller owns
// its own prompt construction, response schema, and cache; the oracle
// itself only executes one call and returns the raw completion text.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config configures an AnthropicOracle.
type Config struct {
	APIKey         string
	Model          string
	MaxRetries     int
	InitialBackoff time.Duration
	MaxTokens      int64
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "claude-haiku-4-5"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2048
	}
	return c
}

// AnthropicOracle is the production Oracle, backed by anthropic-sdk-go.
type AnthropicOracle struct {
	client     anthropic.Client
	model      anthropic.Model
	maxRetries int
	backoff    time.Duration
	maxTokens  int64
}

// New constructs an AnthropicOracle. Returns ErrAPIKeyRequired if no key
// is set.
func New(cfg Config) (*AnthropicOracle, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}
	return &AnthropicOracle{
		client:     anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:      anthropic.Model(cfg.Model),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.InitialBackoff,
		maxTokens:  cfg.MaxTokens,
	}, nil
}

var tracer = otel.Tracer("github.com/raro-catalog/bibliofind/oracle")
var meter = otel.Meter("github.com/raro-catalog/bibliofind/oracle")

var instruments struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
	retries      metric.Int64Counter
}

func init() {
	instruments.inputTokens, _ = meter.Int64Counter("bibliofind.oracle.input_tokens",
		metric.WithDescription("oracle call input tokens consumed"), metric.WithUnit("{token}"))
	instruments.outputTokens, _ = meter.Int64Counter("bibliofind.oracle.output_tokens",
		metric.WithDescription("oracle call output tokens generated"), metric.WithUnit("{token}"))
	instruments.duration, _ = meter.Float64Histogram("bibliofind.oracle.request.duration",
		metric.WithDescription("oracle call latency"), metric.WithUnit("ms"))
	instruments.retries, _ = meter.Int64Counter("bibliofind.oracle.retries",
		metric.WithDescription("oracle call retry attempts"))
}

// Complete sends prompt as a single user message and returns the text of
// the first content block. Retries on timeouts and 429/5xx responses
// using an exponential backoff, up to maxRetries retries after the first
// attempt.
func (o *AnthropicOracle) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "oracle.complete")
	defer span.End()
	span.SetAttributes(attribute.String("bibliofind.oracle.model", string(o.model)))

	params := anthropic.MessageNewParams{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	policy := backoff.WithContext(o.retryPolicy(), ctx)

	var result string
	attempt := 0
	op := func() error {
		if attempt > 0 {
			instruments.retries.Add(ctx, 1)
		}
		attempt++

		t0 := time.Now()
		message, err := o.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !isRetryable(err) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return backoff.Permanent(fmt.Errorf("oracle: non-retryable call failure: %w", err))
			}
			return err
		}

		modelAttr := attribute.String("bibliofind.oracle.model", string(o.model))
		instruments.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
		instruments.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
		instruments.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))

		if len(message.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("oracle: empty response content"))
		}
		content := message.Content[0]
		if content.Type != "text" {
			return backoff.Permanent(fmt.Errorf("oracle: unexpected response block type %q", content.Type))
		}
		result = content.Text
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return result, nil
}

func (o *AnthropicOracle) retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.backoff
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(o.maxRetries))
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
