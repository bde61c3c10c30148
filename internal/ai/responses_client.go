package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"ChatWidget/internal/config"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"go.uber.org/zap"
)

// ResponsesClient реализует Generator поверх Responses API. Контекст диалога хранится
// на стороне OpenAI: следующий ход ссылается на предыдущий через previous_response_id,
// поэтому историю сообщений повторно не отправляем.
type ResponsesClient struct {
	client *openai.Client
	logger *zap.SugaredLogger
}

// NewOpenAI creates the SDK client. Retries are disabled: a failed turn is terminal.
func NewOpenAI(cfg config.AIConfig) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	c := openai.NewClient(opts...)
	return &c
}

func NewResponsesClient(client *openai.Client, logger *zap.SugaredLogger) *ResponsesClient {
	return &ResponsesClient{client: client, logger: logger}
}

func (c *ResponsesClient) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	if c.client == nil {
		return Generation{}, &UpstreamError{Err: errors.New("nil openai client")}
	}

	params := responses.ResponseNewParams{
		Model:           openai.ChatModel(req.Model),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Input)},
		Temperature:     openai.Float(req.Temperature),
		MaxOutputTokens: openai.Int(req.MaxOutputTokens),
	}
	// Первый ход диалога идёт без previous_response_id.
	if req.PreviousResponseID != "" {
		params.PreviousResponseID = openai.String(req.PreviousResponseID)
	}

	start := time.Now()
	resp, err := c.client.Responses.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		c.logger.Errorw("OpenAI request failed", "duration", dur.String(), "error", err)
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Generation{}, &UpstreamError{StatusCode: apiErr.StatusCode, Err: err}
		}
		return Generation{}, &UpstreamError{Err: err}
	}
	if strings.TrimSpace(resp.ID) == "" {
		c.logger.Errorw("OpenAI response without id", "duration", dur.String())
		return Generation{}, &UpstreamError{Err: errors.New("response without id")}
	}
	if string(resp.Status) == "failed" {
		c.logger.Errorw("OpenAI response failed", "duration", dur.String(), "response_id", resp.ID, "error", resp.Error.Message)
		return Generation{}, &UpstreamError{Err: errors.New("response failed: " + resp.Error.Message)}
	}

	c.logger.Debugw("OpenAI response received",
		"duration", dur.String(),
		"response_id", resp.ID,
		"continued", req.PreviousResponseID != "",
	)
	return Generation{ResponseID: resp.ID, Text: resp.OutputText()}, nil
}

var _ Generator = (*ResponsesClient)(nil)
