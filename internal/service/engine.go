package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fino-ai/internal/models"
	"fino-ai/pkg/config"

	"github.com/Role1776/gigago"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const engineTemperature = 0.3

// Generator is the invocation boundary to the generative model. The engine
// passes raw output through without interpreting it; parsing lives in the
// Result Parser. Orchestrator tests substitute fakes behind this interface.
type Generator interface {
	Generate(ctx context.Context, rc *models.RecommendationContext) (string, error)
}

const systemInstruction = `You are a financial portfolio advisor for a youth finance platform.
You receive a user profile and a fixed list of candidate products (bank deposits, savings,
funds and youth policies). You must only recommend products from the candidate list, by their
exact product id. Always answer with a single valid JSON object and nothing else.`

// Prompt templates are versioned: the same template version over the same
// serialized context yields a byte-identical instruction, so engine behavior
// is reproducible across deployments of that version.
var promptTemplates = map[string]string{
	"v1": `Build an investment portfolio for the user below.

User profile and candidate products (JSON):
%s

Answer with ONLY a JSON object in this exact shape, no markdown fences, no commentary:
{
  "items": [
    {"product_id": "id from candidate_products", "weight": 0.4, "rationale": "why this product fits the user"}
  ],
  "expected_return": 0.041,
  "risk_score": 1.8,
  "reason": "one paragraph explaining the overall allocation"
}

Rules:
1. Use only product ids present in candidate_products.
2. Weights are fractions of the total investment and must sum to 1.0.
3. Use at most 5 items and respect the user's risk tolerance.
4. Prefer products that youth policies subsidize when the user qualifies.`,
}

// RenderPrompt produces the deterministic instruction for a context.
// Exported so template output is testable without a live model.
func RenderPrompt(version string, rc *models.RecommendationContext) (string, error) {
	tmpl, ok := promptTemplates[version]
	if !ok {
		return "", fmt.Errorf("unknown prompt template version %q", version)
	}
	payload, err := json.Marshal(rc)
	if err != nil {
		return "", fmt.Errorf("failed to serialize context: %w", err)
	}
	return fmt.Sprintf(tmpl, string(payload)), nil
}

// LLMEngine invokes GigaChat with retry and timeout policy. It owns all
// model transport concerns and returns the raw text for the parser.
type LLMEngine struct {
	client *gigago.Client
	model  *gigago.GenerativeModel
	cfg    *config.PipelineConfig
	logger *zap.Logger
}

func NewLLMEngine(ctx context.Context, gcfg *config.GigaChatConfig, pcfg *config.PipelineConfig, logger *zap.Logger) (*LLMEngine, error) {
	if _, ok := promptTemplates[pcfg.TemplateVersion]; !ok {
		return nil, fmt.Errorf("unknown prompt template version %q", pcfg.TemplateVersion)
	}

	opts := []gigago.Option{
		gigago.WithCustomScope(gcfg.Scope),
	}
	if gcfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, gcfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	model := client.GenerativeModel("GigaChat")
	model.SystemInstruction = systemInstruction
	model.Temperature = engineTemperature

	return &LLMEngine{
		client: client,
		model:  model,
		cfg:    pcfg,
		logger: logger,
	}, nil
}

func (e *LLMEngine) Generate(ctx context.Context, rc *models.RecommendationContext) (string, error) {
	prompt, err := RenderPrompt(e.cfg.TemplateVersion, rc)
	if err != nil {
		return "", &EngineError{Kind: Denied, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.EngineTimeout)
	defer cancel()

	messages := []gigago.Message{
		{Role: gigago.RoleUser, Content: prompt},
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.cfg.RetryLimit)),
		ctx,
	)

	var content string
	attempt := 0
	op := func() error {
		attempt++
		resp, err := e.model.Generate(ctx, messages)
		if err != nil {
			engErr := classifyEngineErr(err)
			if engErr.Kind != Transient {
				return backoff.Permanent(engErr)
			}
			e.logger.Warn("Model invocation failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return engErr
		}
		if len(resp.Choices) == 0 {
			return &EngineError{Kind: Transient, Err: errors.New("no choices in model response")}
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		var engErr *EngineError
		if errors.As(err, &engErr) {
			return "", engErr
		}
		return "", classifyEngineErr(err)
	}

	e.logger.Info("Model response received",
		zap.Int("attempts", attempt),
		zap.Int("length", len(content)),
		zap.String("template_version", e.cfg.TemplateVersion),
	)

	return content, nil
}

// classifyEngineErr folds transport errors into the engine taxonomy.
// Deadline/cancellation is a Timeout, credential and quota failures are
// Denied, everything else is Transient and retryable.
func classifyEngineErr(err error) *EngineError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &EngineError{Kind: Timeout, Err: err}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"status 401", "status 403", "unauthorized", "forbidden", "quota", "permission"} {
		if strings.Contains(msg, marker) {
			return &EngineError{Kind: Denied, Err: err}
		}
	}
	return &EngineError{Kind: Transient, Err: err}
}

func (e *LLMEngine) Close() error {
	if e.client != nil {
		e.client.Close()
	}
	return nil
}
