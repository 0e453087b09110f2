// Package llm provides the forced tool-call chain every classifier and
// extractor in this bot is built on: the model is handed exactly one tool
// whose schema is derived from the Go output struct, and must call it.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

const defaultTimeout = 30 * time.Second

// PromptBuilder turns one typed input into the message list sent to the
// model.
type PromptBuilder[TInput any] func(ctx context.Context, input TInput) ([]*schema.Message, error)

// Chain is a single structured model call: prompt in, one parsed TOutput
// out.
type Chain[TInput, TOutput any] struct {
	promptBuilder PromptBuilder[TInput]
	chatModel     model.ToolCallingChatModel
	toolInfo      *schema.ToolInfo
	timeout       time.Duration
}

// Option configures a Chain.
type Option func(*options)

type options struct {
	timeout time.Duration
}

// WithTimeout bounds each Invoke. The default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// NewChain derives the tool schema from TOutput via its jsonschema tags.
func NewChain[TInput, TOutput any](
	chatModel model.ToolCallingChatModel,
	promptBuilder PromptBuilder[TInput],
	toolName string,
	toolDesc string,
	opts ...Option,
) (*Chain[TInput, TOutput], error) {

	toolInfo, err := utils.GoStruct2ToolInfo[TOutput](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Chain[TInput, TOutput]{
		promptBuilder: promptBuilder,
		chatModel:     chatModel,
		toolInfo:      toolInfo,
		timeout:       o.timeout,
	}, nil
}

// Invoke builds the prompt, calls the model with the forced tool choice and
// parses the tool-call arguments into TOutput.
func (s *Chain[TInput, TOutput]) Invoke(ctx context.Context, input TInput) (*TOutput, error) {
	messages, err := s.promptBuilder(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.chatModel.Generate(ctx, messages,
		model.WithTools([]*schema.ToolInfo{s.toolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, s.toolInfo.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}
	if len(response.ToolCalls) == 0 {
		return nil, fmt.Errorf("no ToolCall found in model response: %s", response.Content)
	}

	var result TOutput
	if err := sonic.UnmarshalString(response.ToolCalls[0].Function.Arguments, &result); err != nil {
		return nil, fmt.Errorf("parse ToolCall arguments failed: %w", err)
	}

	return &result, nil
}

// ToolInfo exposes the derived tool schema, mainly for tests.
func (s *Chain[TInput, TOutput]) ToolInfo() *schema.ToolInfo {
	return s.toolInfo
}
