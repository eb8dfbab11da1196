package services

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"detectx-service/internal/capture"
	"detectx-service/internal/metrics"
	"detectx-service/internal/models"
)

// Renderer draws detections on a frame
type Renderer interface {
	Render(frame image.Image, detections []models.Detection) (image.Image, error)
}

// StatusSource reports the last evaluated backend status
type StatusSource interface {
	Status() models.BackendStatus
}

// LiveLoopConfig holds the live loop timing and sizing
type LiveLoopConfig struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	HistorySize    int
}

// LiveLoop periodically captures a frame, submits it for detection and keeps the results.
// At most one detection request is in flight at a time.
type LiveLoop struct {
	sources  capture.Factory
	detector Detector
	renderer Renderer
	health   StatusSource
	encoder  *FrameEncoder
	history  *History
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      LiveLoopConfig

	inFlight atomic.Bool

	// lifecycle serializes Start, Stop and Close
	lifecycle sync.Mutex

	mu              sync.Mutex
	running         bool
	closed          bool
	session         uint64
	stopTicker      chan struct{}
	current         *models.CycleResult
	lastError       string
	overlay         []byte
	cyclesCompleted int64
	cyclesFailed    int64
	ticksSkipped    int64

	srcMu  sync.Mutex
	source capture.FrameSource

	subsMu     sync.Mutex
	subs       map[int]chan models.LoopState
	nextSub    int
	subsClosed bool

	baseCtx    context.Context
	cancelBase context.CancelFunc
	workers    sync.WaitGroup
}

// NewLiveLoop creates a stopped live loop
func NewLiveLoop(
	sources capture.Factory,
	detector Detector,
	renderer Renderer,
	health StatusSource,
	encoder *FrameEncoder,
	cfg LiveLoopConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *LiveLoop {
	ctx, cancel := context.WithCancel(context.Background())
	return &LiveLoop{
		sources:    sources,
		detector:   detector,
		renderer:   renderer,
		health:     health,
		encoder:    encoder,
		history:    NewHistory(cfg.HistorySize),
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
		subs:       make(map[int]chan models.LoopState),
		baseCtx:    ctx,
		cancelBase: cancel,
	}
}

// Start opens the frame source and begins ticking. It is a no-op when already running
// and is refused with ErrBackendUnavailable unless the backend is online.
func (l *LiveLoop) Start(ctx context.Context) error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	l.mu.Lock()
	running, closed := l.running, l.closed
	l.mu.Unlock()
	if closed {
		return fmt.Errorf("live loop closed")
	}
	if running {
		return nil
	}

	if status := l.health.Status(); status != models.BackendOnline {
		return fmt.Errorf("%w: backend is %s", ErrBackendUnavailable, status)
	}

	src, err := l.sources()
	if err != nil {
		return fmt.Errorf("failed to create frame source: %w", err)
	}
	if err := src.Open(ctx); err != nil {
		return multierr.Append(fmt.Errorf("failed to open frame source: %w", err), src.Close())
	}

	l.srcMu.Lock()
	l.source = src
	l.srcMu.Unlock()

	stop := make(chan struct{})

	l.mu.Lock()
	l.running = true
	l.session++
	session := l.session
	l.stopTicker = stop
	l.mu.Unlock()

	l.workers.Add(1)
	go l.tick(session, stop)

	l.metrics.SetRunning(true)
	l.logger.Info("Live detection started", zap.Duration("poll_interval", l.cfg.PollInterval))
	l.publish()
	return nil
}

func (l *LiveLoop) tick(session uint64, stop <-chan struct{}) {
	defer l.workers.Done()

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.workers.Add(1)
			go func() {
				defer l.workers.Done()
				l.runCycle(l.baseCtx, session)
			}()
		}
	}
}

// Stop halts ticking and releases the frame source. A request still in flight is left to
// finish but its result is discarded.
func (l *LiveLoop) Stop() error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	return l.stop()
}

func (l *LiveLoop) stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	l.session++
	stop := l.stopTicker
	l.stopTicker = nil
	l.mu.Unlock()

	close(stop)

	l.srcMu.Lock()
	src := l.source
	l.source = nil
	l.srcMu.Unlock()

	var err error
	if src != nil {
		err = multierr.Append(err, src.Close())
	}

	l.metrics.SetRunning(false)
	l.logger.Info("Live detection stopped")
	l.publish()
	return err
}

// Close stops the loop, cancels outstanding requests and closes all subscriptions. Safe to call more than once.
func (l *LiveLoop) Close() error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	err := l.stop()
	l.cancelBase()
	l.workers.Wait()

	l.subsMu.Lock()
	l.subsClosed = true
	for id, ch := range l.subs {
		close(ch)
		delete(l.subs, id)
	}
	l.subsMu.Unlock()

	return err
}

// RunCycle performs one detection cycle for the current run. It does nothing when the loop
// is stopped and skips when a request is already in flight.
func (l *LiveLoop) RunCycle(ctx context.Context) {
	l.mu.Lock()
	running, session := l.running, l.session
	l.mu.Unlock()
	if !running {
		return
	}
	l.runCycle(ctx, session)
}

func (l *LiveLoop) runCycle(ctx context.Context, session uint64) {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.mu.Lock()
		l.ticksSkipped++
		l.mu.Unlock()
		l.metrics.TickSkipped()
		return
	}

	changed := l.cycle(ctx, session)
	l.inFlight.Store(false)
	if changed {
		l.publish()
	}
}

// cycle reports whether the loop state was updated
func (l *LiveLoop) cycle(ctx context.Context, session uint64) bool {
	frame, err := l.capture(ctx)
	if err != nil {
		return l.fail(session, err)
	}

	encoded, err := l.encoder.Encode(frame)
	if err != nil {
		return l.fail(session, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, l.cfg.RequestTimeout)
	start := time.Now()
	detections, err := l.detector.Detect(reqCtx, encoded.DataURI)
	cancel()
	l.metrics.ObserveDetect(time.Since(start), err)
	if err != nil {
		return l.fail(session, err)
	}

	return l.succeed(session, encoded, detections)
}

func (l *LiveLoop) capture(ctx context.Context) (image.Image, error) {
	l.srcMu.Lock()
	defer l.srcMu.Unlock()

	if l.source == nil {
		return nil, fmt.Errorf("%w: no open frame source", ErrFrameUnavailable)
	}
	return l.source.Capture(ctx)
}

func (l *LiveLoop) fail(session uint64, err error) bool {
	l.mu.Lock()
	if session != l.session {
		l.mu.Unlock()
		l.logger.Debug("Discarding failure from a stopped run", zap.Error(err))
		return false
	}
	l.lastError = err.Error()
	l.cyclesFailed++
	l.mu.Unlock()

	l.metrics.CycleFailed()
	if IsCycleLocal(err) {
		l.logger.Warn("Detection cycle failed", zap.Error(err))
	} else {
		l.logger.Error("Detection cycle failed", zap.Error(err))
	}
	return true
}

func (l *LiveLoop) succeed(session uint64, encoded *EncodedFrame, detections []models.Detection) bool {
	if detections == nil {
		detections = []models.Detection{}
	}
	bounds := encoded.Image.Bounds()
	result := models.CycleResult{
		ID:          uuid.NewString(),
		Detections:  detections,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		CompletedAt: time.Now(),
	}

	overlay, renderErr := l.renderOverlay(encoded, detections)

	l.mu.Lock()
	if session != l.session {
		l.mu.Unlock()
		l.logger.Debug("Discarding result from a stopped run", zap.String("cycle_id", result.ID))
		return false
	}

	l.current = &result
	l.lastError = ""
	l.cyclesCompleted++
	l.history.Push(result)
	if renderErr == nil {
		l.overlay = overlay
	}
	l.mu.Unlock()

	if renderErr != nil {
		l.logger.Warn("Failed to render overlay", zap.String("cycle_id", result.ID), zap.Error(renderErr))
	}

	labels := make([]string, len(detections))
	for i, d := range detections {
		labels[i] = d.Class
	}
	l.metrics.CycleCompleted()
	l.metrics.CountDetections(labels)
	l.logger.Debug("Detection cycle completed",
		zap.String("cycle_id", result.ID),
		zap.Int("count", len(detections)),
	)
	return true
}

func (l *LiveLoop) renderOverlay(encoded *EncodedFrame, detections []models.Detection) ([]byte, error) {
	if l.renderer == nil {
		return encoded.JPEG, nil
	}
	img, err := l.renderer.Render(encoded.Image, detections)
	if err != nil {
		return nil, err
	}
	return l.encoder.EncodeJPEG(img)
}

// Snapshot returns a copy of the loop state
func (l *LiveLoop) Snapshot() models.LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := models.LoopState{
		IsRunning:         l.running,
		IsRequestInFlight: l.inFlight.Load(),
		LastError:         l.lastError,
		BackendStatus:     l.health.Status(),
		CyclesCompleted:   l.cyclesCompleted,
		CyclesFailed:      l.cyclesFailed,
		TicksSkipped:      l.ticksSkipped,
	}
	if l.current != nil {
		current := *l.current
		state.Current = &current
		state.NoDetections = len(current.Detections) == 0
	}
	return state
}

// History returns the retained results, newest first
func (l *LiveLoop) History() []models.CycleResult {
	return l.history.Items()
}

// HistoryCapacity returns the maximum number of retained results
func (l *LiveLoop) HistoryCapacity() int {
	return l.history.Capacity()
}

// LatestOverlay returns the most recent annotated frame as JPEG, or nil before the first result.
func (l *LiveLoop) LatestOverlay() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.overlay
}

// Subscribe registers for state snapshots. Slow subscribers miss updates rather than block the loop.
// After Close the returned channel is already closed.
func (l *LiveLoop) Subscribe() (<-chan models.LoopState, func()) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	ch := make(chan models.LoopState, 4)
	if l.subsClosed {
		close(ch)
		return ch, func() {}
	}

	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch

	return ch, func() {
		l.subsMu.Lock()
		defer l.subsMu.Unlock()
		if ch, ok := l.subs[id]; ok {
			close(ch)
			delete(l.subs, id)
		}
	}
}

func (l *LiveLoop) publish() {
	state := l.Snapshot()

	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	for _, ch := range l.subs {
		select {
		case ch <- state:
		default:
		}
	}
}
