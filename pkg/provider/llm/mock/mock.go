// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the query generator and response
// narrator send correct CompletionRequests and to feed controlled replies
// without a live LLM backend. All fields are safe to set before calling any
// method; mutating them during a concurrent call is the caller's
// responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    CompleteJSONResponse: &llm.CompletionResponse{Content: `{"query": "MATCH (n) RETURN n"}`},
//	}
//	resp, err := p.CompleteJSON(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/graphseer/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// CompleteJSONCall records a single invocation of CompleteJSON.
type CompleteJSONCall struct {
	// Ctx is the context passed to CompleteJSON.
	Ctx context.Context
	// Req is the CompletionRequest passed to CompleteJSON.
	Req llm.CompletionRequest
}

// StreamCall records a single invocation of StreamCompletion.
type StreamCall struct {
	// Ctx is the context passed to StreamCompletion.
	Ctx context.Context
	// Req is the CompletionRequest passed to StreamCompletion.
	Req llm.CompletionRequest
}

// CountTokensCall records a single invocation of CountTokens.
type CountTokensCall struct {
	// Messages is the slice passed to CountTokens.
	Messages []llm.Message
}

// Provider is a mock implementation of llm.Provider.
// Zero values for response fields cause methods to return zero values and nil
// errors. Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// CompleteResponse is returned by Complete. May be nil (returns nil, nil).
	CompleteResponse *llm.CompletionResponse

	// CompleteResponses, when non-empty, is consumed one element per Complete
	// call, with the final element repeating once exhausted. It takes
	// precedence over CompleteResponse and serves retry-loop tests that need
	// a different reply per attempt.
	CompleteResponses []*llm.CompletionResponse

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// CompleteJSONResponse is returned by CompleteJSON. May be nil.
	CompleteJSONResponse *llm.CompletionResponse

	// CompleteJSONResponses, when non-empty, is consumed one element per
	// CompleteJSON call, with the final element repeating once exhausted.
	// It takes precedence over CompleteJSONResponse and serves retry-loop
	// tests that need a different reply per attempt.
	CompleteJSONResponses []*llm.CompletionResponse

	// CompleteJSONErr, if non-nil, is returned as the error from CompleteJSON.
	CompleteJSONErr error

	// StreamChunks is the sequence of Chunk values emitted on the channel
	// returned by StreamCompletion. All chunks are sent before the channel is
	// closed.
	StreamChunks []llm.Chunk

	// StreamErr, if non-nil, is returned as the error from StreamCompletion
	// instead of starting a channel.
	StreamErr error

	// TokenCount is returned by CountTokens.
	TokenCount int

	// CountTokensErr, if non-nil, is returned as the error from CountTokens.
	CountTokensErr error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	// --- Call records (read after test) ---

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	// CompleteJSONCalls records every invocation of CompleteJSON in order.
	CompleteJSONCalls []CompleteJSONCall

	// StreamCalls records every invocation of StreamCompletion in order.
	StreamCalls []StreamCall

	// CountTokensCalls records every invocation of CountTokens in order.
	CountTokensCalls []CountTokensCall

	// CapabilitiesCallCount is the number of times Capabilities was called.
	CapabilitiesCallCount int
}

// Complete records the call and returns the next queued response (or
// CompleteResponse when no queue is set) and CompleteErr.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})

	resp := p.CompleteResponse
	if n := len(p.CompleteCalls); len(p.CompleteResponses) > 0 {
		idx := n - 1
		if idx >= len(p.CompleteResponses) {
			idx = len(p.CompleteResponses) - 1
		}
		resp = p.CompleteResponses[idx]
	}
	return resp, p.CompleteErr
}

// CompleteJSON records the call and returns the next queued response (or
// CompleteJSONResponse when no queue is set) and CompleteJSONErr.
func (p *Provider) CompleteJSON(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteJSONCalls = append(p.CompleteJSONCalls, CompleteJSONCall{Ctx: ctx, Req: req})

	resp := p.CompleteJSONResponse
	if n := len(p.CompleteJSONCalls); len(p.CompleteJSONResponses) > 0 {
		idx := n - 1
		if idx >= len(p.CompleteJSONResponses) {
			idx = len(p.CompleteJSONResponses) - 1
		}
		resp = p.CompleteJSONResponses[idx]
	}
	return resp, p.CompleteJSONErr
}

// StreamCompletion records the call and returns a channel that emits StreamChunks.
// If StreamErr is set, it returns nil, StreamErr without opening a channel.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	if p.StreamErr != nil {
		err := p.StreamErr
		p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, Req: req})
		p.mu.Unlock()
		return nil, err
	}
	chunks := make([]llm.Chunk, len(p.StreamChunks))
	copy(chunks, p.StreamChunks)
	p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, Req: req})
	p.mu.Unlock()

	ch := make(chan llm.Chunk, len(chunks))
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- c:
			}
		}
	}()
	return ch, nil
}

// CountTokens records the call and returns TokenCount, CountTokensErr.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)
	p.CountTokensCalls = append(p.CountTokensCalls, CountTokensCall{Messages: msgs})
	return p.TokenCount, p.CountTokensErr
}

// Capabilities records the call and returns ModelCapabilities.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CapabilitiesCallCount++
	return p.ModelCapabilities
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.CompleteJSONCalls = nil
	p.StreamCalls = nil
	p.CountTokensCalls = nil
	p.CapabilitiesCallCount = 0
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
