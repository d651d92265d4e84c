package amcodec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PipelineState represents the state of a decode pipeline.
type PipelineState int

const (
	PipelineStateIdle    PipelineState = iota // Not started
	PipelineStateRunning                      // Decoding
	PipelineStateStopped                      // Stopped or source exhausted
)

func (s PipelineState) String() string {
	switch s {
	case PipelineStateIdle:
		return "idle"
	case PipelineStateRunning:
		return "running"
	case PipelineStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var errPipelineStarted = errors.New("pipeline already started")

// PacketSource yields compressed access units. ReadPacket returns io.EOF
// when the stream ends.
type PacketSource interface {
	ReadPacket(ctx context.Context) (*Packet, error)
}

// Renderer presents decoded pictures. The pipeline releases pic.Handle after
// Render returns; a renderer that keeps the picture longer must Retain the
// handle and Release it later.
type Renderer interface {
	Render(ctx context.Context, pic *DecodedPicture) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, pic *DecodedPicture) error

func (f RendererFunc) Render(ctx context.Context, pic *DecodedPicture) error { return f(ctx, pic) }

// VideoDecodePipeline handles: PacketSource -> Decoder -> Renderer.
// Packets are decoded on one goroutine and pictures rendered on another, the
// way a player splits its demux and render threads.
type VideoDecodePipeline struct {
	source   PacketSource
	decoder  *Decoder
	renderer Renderer
	queue    int
	log      logrus.FieldLogger

	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
	runErr error

	stats   VideoDecodeStats
	statsMu sync.Mutex

	onError func(error)
	mu      sync.Mutex
}

// VideoDecodeStats provides decode pipeline statistics.
type VideoDecodeStats struct {
	PacketsRead      uint64
	PacketsBuffered  uint64
	DecodeErrors     uint64
	PicturesDecoded  uint64
	PicturesRendered uint64
	RenderErrors     uint64
	DecodeTimeUs     uint64
}

// VideoDecodePipelineConfig configures a decode pipeline. The Decoder must
// already be opened.
type VideoDecodePipelineConfig struct {
	Source    PacketSource
	Decoder   *Decoder
	Renderer  Renderer
	QueueSize int         // Pictures buffered between decode and render (default 4)
	OnError   func(error) // Called for non-fatal render errors
	Logger    logrus.FieldLogger
}

// NewVideoDecodePipeline creates a new decode pipeline.
func NewVideoDecodePipeline(config VideoDecodePipelineConfig) (*VideoDecodePipeline, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if config.Decoder == nil {
		return nil, fmt.Errorf("decoder is required")
	}
	if config.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	queue := config.QueueSize
	if queue <= 0 {
		queue = 4
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p := &VideoDecodePipeline{
		source:   config.Source,
		decoder:  config.Decoder,
		renderer: config.Renderer,
		queue:    queue,
		onError:  config.OnError,
		log:      logger.WithField("module", "pipeline"),
	}
	p.state.Store(int32(PipelineStateIdle))
	return p, nil
}

// Run decodes until the source is exhausted, ctx is cancelled or the source
// fails. Every picture handed to the renderer has its handle released before
// Run returns.
func (p *VideoDecodePipeline) Run(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PipelineStateIdle), int32(PipelineStateRunning)) {
		return errPipelineStarted
	}
	return p.run(ctx)
}

func (p *VideoDecodePipeline) run(ctx context.Context) error {
	defer p.state.Store(int32(PipelineStateStopped))

	g, ctx := errgroup.WithContext(ctx)
	pictures := make(chan *DecodedPicture, p.queue)

	g.Go(func() error {
		defer close(pictures)
		return p.decodeLoop(ctx, pictures)
	})
	g.Go(func() error {
		return p.renderLoop(ctx, pictures)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *VideoDecodePipeline) decodeLoop(ctx context.Context, out chan<- *DecodedPicture) error {
	for {
		pkt, err := p.source.ReadPacket(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read packet: %w", err)
		}
		if pkt == nil {
			continue
		}

		start := time.Now()
		status := p.decoder.Decode(pkt.Data, pkt.DTS, pkt.PTS)
		elapsed := time.Since(start)

		p.statsMu.Lock()
		p.stats.PacketsRead++
		p.stats.DecodeTimeUs += uint64(elapsed.Microseconds())
		if status.Has(StatusError) {
			p.stats.DecodeErrors++
		}
		if status == StatusBuffer {
			p.stats.PacketsBuffered++
		}
		p.statsMu.Unlock()

		if !status.Has(StatusPicture) {
			continue
		}

		pic := &DecodedPicture{}
		if !p.decoder.GetPicture(pic) {
			continue
		}

		p.statsMu.Lock()
		p.stats.PicturesDecoded++
		p.statsMu.Unlock()

		select {
		case out <- pic:
		case <-ctx.Done():
			p.decoder.ClearPicture(pic)
			return ctx.Err()
		}
	}
}

func (p *VideoDecodePipeline) renderLoop(ctx context.Context, in <-chan *DecodedPicture) error {
	for pic := range in {
		if ctx.Err() == nil {
			if err := p.renderer.Render(ctx, pic); err != nil {
				p.handleRenderError(err)
			} else {
				p.statsMu.Lock()
				p.stats.PicturesRendered++
				p.statsMu.Unlock()
			}
		}
		if pic.Handle != nil {
			pic.Handle.Release()
			pic.Handle = nil
		}
	}
	return nil
}

func (p *VideoDecodePipeline) handleRenderError(err error) {
	p.statsMu.Lock()
	p.stats.RenderErrors++
	p.statsMu.Unlock()

	p.log.WithError(err).Debug("render failed")

	p.mu.Lock()
	cb := p.onError
	p.mu.Unlock()

	if cb != nil {
		go cb(err)
	}
}

// Start runs the pipeline in the background.
func (p *VideoDecodePipeline) Start() error {
	if !p.state.CompareAndSwap(int32(PipelineStateIdle), int32(PipelineStateRunning)) {
		return errPipelineStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		err := p.run(ctx)
		p.mu.Lock()
		p.runErr = err
		p.mu.Unlock()
	}()
	return nil
}

// Wait blocks until a pipeline started with Start finishes and returns its
// result.
func (p *VideoDecodePipeline) Wait() error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runErr
}

// Stop cancels a pipeline started with Start and waits for it.
func (p *VideoDecodePipeline) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	return p.Wait()
}

// Close stops the pipeline, then closes the decoder and the source if it is
// an io.Closer.
func (p *VideoDecodePipeline) Close() error {
	var result *multierror.Error
	if err := p.Stop(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := p.decoder.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if c, ok := p.source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// State returns the current pipeline state.
func (p *VideoDecodePipeline) State() PipelineState {
	return PipelineState(p.state.Load())
}

// Stats returns decode pipeline statistics.
func (p *VideoDecodePipeline) Stats() VideoDecodeStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}
