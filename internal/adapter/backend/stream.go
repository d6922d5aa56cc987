package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"ragchat/internal/domain"
	"ragchat/internal/infra/tracer"
)

// readChunkSize is the size of each body read.
const readChunkSize = 4096

// streamEventBuffer is the capacity of the channel returned by ChatStream.
const streamEventBuffer = 16

// StreamHandler receives the events of one chat stream. Nil callbacks are
// skipped. Callbacks run on the stream goroutine, in wire order, and the
// terminal callback (OnComplete or OnError) runs exactly once, last.
type StreamHandler struct {
	OnResult   func(text string)
	OnComplete func()
	OnError    func(err error)
}

// Stream starts one chat turn and returns immediately. Progress is reported
// only through h. Cancelling ctx ends the call with OnError(ctx.Err()).
func (c *Client) Stream(ctx context.Context, req domain.ChatRequest, h StreamHandler) {
	call := &streamCall{
		client:  c,
		req:     req,
		handler: h,
		frames:  newFrameBuffer(),
	}
	go call.run(ctx)
}

// ChatStream is the channel form of Stream. The channel yields results in
// wire order followed by exactly one terminal event, then closes. Once ctx
// is cancelled, results the consumer is not receiving are dropped; the
// terminal event is still delivered if the buffer has room.
func (c *Client) ChatStream(ctx context.Context, req domain.ChatRequest) <-chan domain.StreamEvent {
	ch := make(chan domain.StreamEvent, streamEventBuffer)

	send := func(ev domain.StreamEvent) {
		select {
		case ch <- ev:
		case <-ctx.Done():
			if ev.Terminal() {
				select {
				case ch <- ev:
				default:
				}
			}
		}
	}

	c.Stream(ctx, req, StreamHandler{
		OnResult: func(text string) {
			send(domain.StreamEvent{Kind: domain.EventResult, Text: text})
		},
		OnComplete: func() {
			send(domain.StreamEvent{Kind: domain.EventComplete})
			close(ch)
		},
		OnError: func(err error) {
			send(domain.StreamEvent{Kind: domain.EventError, Err: err})
			close(ch)
		},
	})
	return ch
}

// callState tracks one call through
// started -> (requesting -> streaming)* -> completed | failed.
type callState int

const (
	stateStarted callState = iota
	stateRequesting
	stateStreaming
	stateCompleted
	stateFailed
)

func (s callState) String() string {
	switch s {
	case stateStarted:
		return "started"
	case stateRequesting:
		return "requesting"
	case stateStreaming:
		return "streaming"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// streamCall is the state of one Stream invocation. It is owned by a single
// goroutine and never shared.
type streamCall struct {
	client  *Client
	req     domain.ChatRequest
	handler StreamHandler
	frames  *frameBuffer
	state   callState
	results int
	frameN  int
}

func (s *streamCall) finished() bool {
	return s.state == stateCompleted || s.state == stateFailed
}

func (s *streamCall) run(ctx context.Context) {
	ctx, span := tracer.StartSpan(ctx, "backend.chat_stream",
		trace.WithAttributes(tracer.KeyChatHasSession.Bool(s.req.SessionID != "")),
	)
	defer span.End()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("chat stream panic: %v", r)
		if s.finished() {
			s.client.logger.Error("panic after chat stream terminated",
				"state", s.state.String(),
				"error", err,
			)
			return
		}
		s.fail(span, err)
	}()

	if err := s.stream(ctx); err != nil {
		s.fail(span, err)
		return
	}
	s.complete(span)
}

// stream performs the request and consumes the body. A nil return means
// normal termination by sentinel or end of stream.
func (s *streamCall) stream(ctx context.Context) error {
	if strings.TrimSpace(s.req.Message) == "" {
		return domain.NewDomainError("Backend.ChatStream", domain.ErrInvalidInput, "empty message")
	}

	s.state = stateRequesting
	resp, err := s.client.openStream(ctx, s.req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	s.state = stateStreaming
	s.client.logger.Debug("chat stream opened", "status", resp.StatusCode)

	buf := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, frame := range s.frames.feed(buf[:n]) {
				if s.handleFrame(frame) {
					return nil
				}
			}
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %w", domain.ErrStreamRead, readErr)
		}
	}
}

// handleFrame processes one complete frame and reports whether the stream
// reached its sentinel.
func (s *streamCall) handleFrame(frame string) bool {
	s.frameN++
	payload := decodeFrame(frame)
	switch {
	case payload.kind == payloadSentinel:
		return true
	case payload.deliverable():
		s.results++
		if s.handler.OnResult != nil {
			s.handler.OnResult(payload.text)
		}
	}
	return false
}

func (s *streamCall) complete(span trace.Span) {
	s.state = stateCompleted
	tracer.Finish(span, nil,
		tracer.KeyChatFrames.Int(s.frameN),
		tracer.KeyChatResults.Int(s.results),
	)
	s.client.logger.Debug("chat stream completed", "frames", s.frameN, "results", s.results)

	if s.handler.OnComplete != nil {
		s.handler.OnComplete()
	}
}

func (s *streamCall) fail(span trace.Span, err error) {
	s.state = stateFailed
	tracer.Finish(span, err, tracer.KeyChatResults.Int(s.results))

	if errors.Is(err, context.Canceled) {
		s.client.logger.Debug("chat stream cancelled", "results", s.results)
	} else {
		s.client.logger.Warn("chat stream failed",
			"code", string(domain.ErrorCodeOf(err)),
			"results", s.results,
			"error", err,
		)
	}

	if s.handler.OnError != nil {
		s.handler.OnError(err)
	}
}

// openStream posts req to the chat endpoint and returns the response whose
// body carries the frames. The caller closes the body.
func (c *Client) openStream(ctx context.Context, req domain.ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, pathChat, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.send(ctx, c.streamClient, httpReq, false)
	if err != nil {
		return nil, err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, domain.ErrNoBody
	}
	return resp, nil
}
