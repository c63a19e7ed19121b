// Package openai provides a core.Executor backed by the OpenAI Chat
// Completions API, streaming each worker's task as one completion call.
package openai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/swarmdeck/swarmdeck/core"
)

// Options configures the OpenAI executor.
type Options struct {
	APIKey              string
	Temperature         float64
	MaxCompletionTokens int64
	SystemPrompt        string
	// Models maps swarmdeck tiers to chat model ids.
	Models map[core.Model]string
}

func defaultModels() map[core.Model]string {
	return map[core.Model]string{
		core.ModelOpus:   openai.ChatModelGPT4o,
		core.ModelSonnet: openai.ChatModelGPT4o,
		core.ModelHaiku:  openai.ChatModelGPT4oMini,
	}
}

// Executor runs workers as streaming chat completion calls.
type Executor struct {
	client *openai.Client
	sink   core.EventSink
	opts   Options

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates an OpenAI executor reporting into sink.
func New(sink core.EventSink, optFns ...func(o *Options)) *Executor {
	opts := Options{
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		Models:              defaultModels(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)

	return &Executor{
		client:  &client,
		sink:    sink,
		opts:    opts,
		cancels: map[string]context.CancelFunc{},
	}
}

// NewFromClient creates an executor from an existing client.
func NewFromClient(client *openai.Client, sink core.EventSink, optFns ...func(o *Options)) *Executor {
	opts := Options{
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		Models:              defaultModels(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{client: client, sink: sink, opts: opts, cancels: map[string]context.CancelFunc{}}
}

// Spawn starts the worker's completion call in the background.
func (e *Executor) Spawn(ctx context.Context, req core.SpawnRequest) error {
	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.cancels[req.WorkerID] = cancel
	e.mu.Unlock()

	go e.run(runCtx, req)
	return nil
}

// Terminate cancels the worker's in-flight call, if any.
func (e *Executor) Terminate(workerID string) error {
	e.mu.Lock()
	cancel, ok := e.cancels[workerID]
	delete(e.cancels, workerID)
	e.mu.Unlock()

	if ok {
		cancel()
	}
	return nil
}

func (e *Executor) run(ctx context.Context, req core.SpawnRequest) {
	defer func() {
		e.mu.Lock()
		delete(e.cancels, req.WorkerID)
		e.mu.Unlock()
	}()

	messages := []openai.ChatCompletionMessageParamUnion{}
	if e.opts.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(e.opts.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Task))

	params := openai.ChatCompletionNewParams{
		Model:               e.modelFor(req.Model),
		Messages:            messages,
		Temperature:         openai.Float(e.opts.Temperature),
		MaxCompletionTokens: openai.Int(e.opts.MaxCompletionTokens),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			// Usage arrives in the final chunk; without it token counters
			// would stay zero.
			IncludeUsage: openai.Bool(true),
		},
	}

	stream := e.client.Chat.Completions.NewStreaming(ctx, params)
	var output strings.Builder
	var usage core.Usage

	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage = core.Usage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
			}
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			output.WriteString(choice.Delta.Content)
			if err := e.sink.OnDelta(req.WorkerID, choice.Delta.Content); err != nil {
				// Terminal underneath us (cancelled); stop streaming.
				return
			}
		}
	}
	if err := stream.Err(); err != nil {
		_ = e.sink.OnError(req.WorkerID, fmt.Sprintf("openai stream: %v", err))
		return
	}

	_ = e.sink.OnComplete(req.WorkerID, output.String(), usage, nil)
}

func (e *Executor) modelFor(tier core.Model) string {
	if m, ok := e.opts.Models[tier]; ok {
		return m
	}
	return e.opts.Models[core.ModelSonnet]
}

var _ core.Executor = (*Executor)(nil)
