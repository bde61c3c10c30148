package ai

import (
	"context"

	"github.com/google/uuid"
)

// StubClient заглушка, которая не делает реальных запросов: отвечает эхом и выдаёт
// новые идентификаторы ответов.
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

func (c *StubClient) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return Generation{}, &UpstreamError{Err: err}
	}
	return Generation{
		ResponseID: "resp_" + uuid.NewString(),
		Text:       "received: " + req.Input,
	}, nil
}

var _ Generator = (*StubClient)(nil)
