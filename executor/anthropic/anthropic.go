// Package anthropic provides a core.Executor backed by the Anthropic
// Messages API. Each spawned worker becomes one streaming API call whose
// text deltas, final output and token usage are reported through the event
// sink.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/swarmdeck/swarmdeck/core"
)

// Options configures the Anthropic executor (API key, generation limits,
// tier-to-model mapping). Extend via functional options to preserve
// stability.
type Options struct {
	APIKey       string
	MaxTokens    int64
	Temperature  float64
	SystemPrompt string
	// Models maps swarmdeck tiers to concrete API model ids.
	Models map[core.Model]anthropic.Model
}

func defaultModels() map[core.Model]anthropic.Model {
	return map[core.Model]anthropic.Model{
		core.ModelOpus:   anthropic.ModelClaude3OpusLatest,
		core.ModelSonnet: anthropic.ModelClaude3_5Sonnet20241022,
		core.ModelHaiku:  anthropic.ModelClaude3_5HaikuLatest,
	}
}

// Executor runs workers as streaming Anthropic API calls.
type Executor struct {
	client *anthropic.Client
	sink   core.EventSink
	opts   Options

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates an Anthropic executor reporting into sink, using the official
// client.
func New(sink core.EventSink, optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxTokens:   4096,
		Temperature: 0.7,
		Models:      defaultModels(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Executor{
		client:  &client,
		sink:    sink,
		opts:    opts,
		cancels: map[string]context.CancelFunc{},
	}
}

// NewFromClient creates an executor from an existing client, mainly for
// tests that stub the transport.
func NewFromClient(client *anthropic.Client, sink core.EventSink, optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxTokens:   4096,
		Temperature: 0.7,
		Models:      defaultModels(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{client: client, sink: sink, opts: opts, cancels: map[string]context.CancelFunc{}}
}

// Spawn starts the worker's API call in the background and returns
// immediately. Progress surfaces exclusively through the sink.
func (e *Executor) Spawn(ctx context.Context, req core.SpawnRequest) error {
	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.cancels[req.WorkerID] = cancel
	e.mu.Unlock()

	go e.run(runCtx, req)
	return nil
}

// Terminate cancels the worker's in-flight API call, if any. Unknown or
// already-finished workers are harmless.
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

	params := anthropic.MessageNewParams{
		Model:       e.modelFor(req.Model),
		MaxTokens:   e.opts.MaxTokens,
		Temperature: anthropic.Float(e.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Task)),
		},
	}
	if e.opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: e.opts.SystemPrompt}}
	}

	stream := e.client.Messages.NewStreaming(ctx, params)
	message := anthropic.Message{}
	var output strings.Builder

	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			e.fail(req.WorkerID, fmt.Errorf("accumulate stream event: %w", err))
			return
		}
		deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		textDelta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta)
		if !ok || textDelta.Text == "" {
			continue
		}
		output.WriteString(textDelta.Text)
		if err := e.sink.OnDelta(req.WorkerID, textDelta.Text); err != nil {
			// The worker reached a terminal state underneath us (cancelled);
			// stop streaming.
			return
		}
	}
	if err := stream.Err(); err != nil {
		e.fail(req.WorkerID, fmt.Errorf("anthropic stream: %w", err))
		return
	}

	usage := core.Usage{
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}
	// A rejection here means the worker was cancelled between the last delta
	// and completion; its state already reflects that.
	_ = e.sink.OnComplete(req.WorkerID, output.String(), usage, nil)
}

func (e *Executor) fail(workerID string, err error) {
	_ = e.sink.OnError(workerID, err.Error())
}

func (e *Executor) modelFor(tier core.Model) anthropic.Model {
	if m, ok := e.opts.Models[tier]; ok {
		return m
	}
	return e.opts.Models[core.ModelSonnet]
}

var _ core.Executor = (*Executor)(nil)
