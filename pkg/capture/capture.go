// Package capture acquires video frames from a file, camera, or stream
// URL through OpenCV and hands them to a single consumer with latest-first
// drop semantics: when the consumer lags, frames are dropped and counted,
// never queued.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrAlreadyStarted is returned by Start when the source is running.
var ErrAlreadyStarted = errors.New("capture: source already started")

// Frame is one captured video frame. The Mat is owned by the receiver,
// which must Close it.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Mat       gocv.Mat
	TraceID   string
}

// Stats is a snapshot of source counters.
type Stats struct {
	SessionID     string  `json:"session_id"`
	FrameCount    uint64  `json:"frame_count"`
	FramesDropped uint64  `json:"frames_dropped"`
	FPSReal       float64 `json:"fps_real"`
	Resolution    string  `json:"resolution"`
	IsConnected   bool    `json:"is_connected"`
}

// Provider is the contract for video stream acquisition.
//
// Implementations must guarantee:
//   - Start returns immediately; frames arrive on the returned channel.
//   - The channel closes on end of stream or Stop.
//   - Stop is idempotent.
//   - Stats is safe from any goroutine.
type Provider interface {
	Start(ctx context.Context) (<-chan Frame, error)
	Stop() error
	Stats() Stats
}

// ParseSource interprets a source string: a bare integer is a camera
// index, anything else is a file path or stream URL. The returned value
// feeds gocv.OpenVideoCapture directly.
func ParseSource(source string) interface{} {
	if idx, err := strconv.Atoi(source); err == nil {
		return idx
	}
	return source
}

// VideoSource reads frames from a gocv.VideoCapture.
type VideoSource struct {
	source    string
	sessionID string

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	frameCount    atomic.Uint64
	framesDropped atomic.Uint64
	connected     atomic.Bool
	startedAt     time.Time
	width         int
	height        int
}

// NewVideoSource creates a source for a camera index, file path, or URL.
func NewVideoSource(source string) *VideoSource {
	return &VideoSource{
		source:    source,
		sessionID: uuid.NewString(),
	}
}

// Start opens the capture device and begins reading frames into the
// returned channel. The channel closes on end of stream, Stop, or context
// cancellation.
func (v *VideoSource) Start(ctx context.Context) (<-chan Frame, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.started {
		return nil, ErrAlreadyStarted
	}

	cap, err := gocv.OpenVideoCapture(ParseSource(v.source))
	if err != nil {
		return nil, fmt.Errorf("open capture source %q: %w", v.source, err)
	}

	v.width = int(cap.Get(gocv.VideoCaptureFrameWidth))
	v.height = int(cap.Get(gocv.VideoCaptureFrameHeight))
	v.started = true
	v.startedAt = time.Now()
	v.connected.Store(true)

	ctx, v.cancel = context.WithCancel(ctx)
	ch := make(chan Frame, 1)

	logrus.WithFields(logrus.Fields{
		"session":    v.sessionID,
		"source":     v.source,
		"resolution": fmt.Sprintf("%dx%d", v.width, v.height),
	}).Info("capture started")

	v.wg.Add(1)
	go v.readLoop(ctx, cap, ch)

	return ch, nil
}

func (v *VideoSource) readLoop(ctx context.Context, cap *gocv.VideoCapture, ch chan Frame) {
	defer v.wg.Done()
	defer close(ch)
	defer cap.Close()
	defer v.connected.Store(false)

	mat := gocv.NewMat()
	defer mat.Close()

	for {
		if ctx.Err() != nil {
			return
		}

		if ok := cap.Read(&mat); !ok || mat.Empty() {
			logrus.WithField("session", v.sessionID).Info("capture ended")
			return
		}

		frame := Frame{
			Seq:       v.frameCount.Add(1),
			Timestamp: time.Now(),
			Width:     mat.Cols(),
			Height:    mat.Rows(),
			Mat:       mat.Clone(),
			TraceID:   uuid.NewString(),
		}

		select {
		case ch <- frame:
		case <-ctx.Done():
			frame.Mat.Close()
			return
		default:
			// consumer lagging, drop instead of queueing
			frame.Mat.Close()
			v.framesDropped.Add(1)
		}
	}
}

// Stop cancels the read loop and waits for it to release the device.
// Idempotent.
func (v *VideoSource) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.started {
		return nil
	}
	v.cancel()
	v.wg.Wait()
	v.started = false
	return nil
}

// Stats returns a snapshot of the source counters.
func (v *VideoSource) Stats() Stats {
	v.mu.Lock()
	startedAt := v.startedAt
	width, height := v.width, v.height
	v.mu.Unlock()

	count := v.frameCount.Load()
	fps := 0.0
	if !startedAt.IsZero() {
		if elapsed := time.Since(startedAt).Seconds(); elapsed > 0 {
			fps = float64(count) / elapsed
		}
	}
	return Stats{
		SessionID:     v.sessionID,
		FrameCount:    count,
		FramesDropped: v.framesDropped.Load(),
		FPSReal:       fps,
		Resolution:    fmt.Sprintf("%dx%d", width, height),
		IsConnected:   v.connected.Load(),
	}
}
