// Package pipeline drives the per-frame inference loop: take the latest
// captured frame, run the detector, run the pose model over the detection
// boxes, and hand the result to the caller for rendering or publishing.
package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"rtm-pose-go/pkg/capture"
	"rtm-pose-go/pkg/rtmdet"
	"rtm-pose-go/pkg/rtmpose"
)

// Detector produces detections for one frame.
type Detector interface {
	Predict(img gocv.Mat) ([]rtmdet.Detection, error)
}

// PoseEstimator produces poses for a set of detection boxes.
type PoseEstimator interface {
	PredictBoxes(img gocv.Mat, boxes []image.Rectangle, scores []float32) ([]rtmpose.Pose, error)
}

// Timings breaks down per-frame processing time.
type Timings struct {
	Detect time.Duration `json:"detect"`
	Pose   time.Duration `json:"pose"`
	Total  time.Duration `json:"total"`
}

// FrameResult is the outcome of processing one frame.
type FrameResult struct {
	Seq        uint64
	Timestamp  time.Time
	TraceID    string
	Detections []rtmdet.Detection
	Poses      []rtmpose.Pose
	Timings    Timings
}

// Config wires a Runner. Source, Detector, and Pose are required.
type Config struct {
	Source   capture.Provider
	Detector Detector
	Pose     PoseEstimator

	// PersonClassID limits pose estimation to this detector class.
	// Negative means every detection gets a pose.
	PersonClassID int

	// OnResult is invoked for every processed frame while its Mat is
	// still alive, so callers can render onto it. The Mat is closed when
	// the hook returns. May be nil.
	OnResult func(frame capture.Frame, result FrameResult)
}

// RunStats is a snapshot of pipeline counters.
type RunStats struct {
	FramesProcessed uint64        `json:"frames_processed"`
	DetectionsTotal uint64        `json:"detections_total"`
	PosesTotal      uint64        `json:"poses_total"`
	MailboxDrops    uint64        `json:"mailbox_drops"`
	FPS             *FPSStats     `json:"fps"`
	Capture         capture.Stats `json:"capture"`
}

// Runner owns the capture-to-result loop.
type Runner struct {
	cfg     Config
	mailbox *Mailbox
	log     *logrus.Entry

	mu         sync.Mutex
	frames     uint64
	detections uint64
	poses      uint64
	frameTimes []time.Time
	startedAt  time.Time
}

// NewRunner validates the config and builds a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Source == nil || cfg.Detector == nil || cfg.Pose == nil {
		return nil, errors.New("pipeline: source, detector, and pose estimator are required")
	}
	return &Runner{
		cfg:     cfg,
		mailbox: NewMailbox(func(f capture.Frame) { f.Mat.Close() }),
		log:     logrus.WithField("component", "pipeline"),
	}, nil
}

// Run processes frames until the source ends or ctx is cancelled. It
// blocks for the duration of the run. The capture feeder and the inference
// loop are decoupled only by the latest-frame mailbox; inference itself is
// strictly sequential per frame.
func (r *Runner) Run(ctx context.Context) error {
	frames, err := r.cfg.Source.Start(ctx)
	if err != nil {
		return err
	}
	defer r.cfg.Source.Stop()

	r.mu.Lock()
	r.startedAt = time.Now()
	r.mu.Unlock()

	go func() {
		defer r.mailbox.Close()
		for frame := range frames {
			r.mailbox.Put(frame)
		}
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.mailbox.Close()
		case <-done:
		}
	}()

	for {
		frame, ok := r.mailbox.Take()
		if !ok {
			break
		}
		if err := r.processFrame(frame); err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}

	r.log.WithFields(logrus.Fields{
		"frames": r.Stats().FramesProcessed,
		"drops":  r.mailbox.Drops(),
	}).Info("pipeline finished")
	return ctx.Err()
}

func (r *Runner) processFrame(frame capture.Frame) error {
	defer frame.Mat.Close()

	start := time.Now()
	dets, err := r.cfg.Detector.Predict(frame.Mat)
	if err != nil {
		return err
	}
	detectTime := time.Since(start)

	boxes := make([]image.Rectangle, 0, len(dets))
	scores := make([]float32, 0, len(dets))
	for _, det := range dets {
		if r.cfg.PersonClassID >= 0 && det.ClassID != r.cfg.PersonClassID {
			continue
		}
		boxes = append(boxes, det.Box)
		scores = append(scores, det.Score)
	}

	poseStart := time.Now()
	poses, err := r.cfg.Pose.PredictBoxes(frame.Mat, boxes, scores)
	if err != nil {
		return err
	}
	poseTime := time.Since(poseStart)

	result := FrameResult{
		Seq:        frame.Seq,
		Timestamp:  frame.Timestamp,
		TraceID:    frame.TraceID,
		Detections: dets,
		Poses:      poses,
		Timings: Timings{
			Detect: detectTime,
			Pose:   poseTime,
			Total:  time.Since(start),
		},
	}

	r.mu.Lock()
	r.frames++
	r.detections += uint64(len(dets))
	r.poses += uint64(len(poses))
	r.frameTimes = append(r.frameTimes, time.Now())
	r.mu.Unlock()

	if r.cfg.OnResult != nil {
		r.cfg.OnResult(frame, result)
	}
	return nil
}

// Stats returns a snapshot of pipeline counters, safe from any goroutine.
func (r *Runner) Stats() RunStats {
	r.mu.Lock()
	frames := r.frames
	dets := r.detections
	poses := r.poses
	times := make([]time.Time, len(r.frameTimes))
	copy(times, r.frameTimes)
	startedAt := r.startedAt
	r.mu.Unlock()

	var elapsed time.Duration
	if !startedAt.IsZero() {
		elapsed = time.Since(startedAt)
	}

	return RunStats{
		FramesProcessed: frames,
		DetectionsTotal: dets,
		PosesTotal:      poses,
		MailboxDrops:    r.mailbox.Drops(),
		FPS:             CalculateFPSStats(times, elapsed),
		Capture:         r.cfg.Source.Stats(),
	}
}
