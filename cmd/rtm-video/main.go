// Command rtm-video runs the RTMDet + RTMPose pipeline over a video file,
// camera, or stream URL, rendering detections and skeletons per frame.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	ort "github.com/yam8511/go-onnxruntime"
	"gocv.io/x/gocv"

	"rtm-pose-go/pkg/capture"
	"rtm-pose-go/pkg/pipeline"
	"rtm-pose-go/pkg/rtmdet"
	"rtm-pose-go/pkg/rtmpose"
)

func main() {
	dllPath := ""
	if runtime.GOOS == "windows" {
		flag.StringVar(&dllPath, "lib", "onnxruntime.dll", "onnxruntime DLL")
	}
	useGPU := flag.Bool("gpu", true, "inference using CUDA")
	detFile := flag.String("det", "rtmdet.onnx", "RTMDet detection model")
	poseFile := flag.String("pose", "rtmpose.onnx", "RTMPose keypoint model")
	nameFile := flag.String("names", "", "class names file (optional)")
	source := flag.String("source", "0", "video file, stream URL, or camera index")
	scoreThr := flag.Float64("conf", rtmdet.DefaultScoreThreshold, "detection confidence threshold")
	iouThr := flag.Float64("iou", rtmdet.DefaultIoUThreshold, "detection NMS IoU threshold")
	kptThr := flag.Float64("kpt-conf", rtmpose.DefaultKeypointScoreThreshold, "keypoint score threshold")
	personClass := flag.Int("person-class", 0, "detector class id to estimate poses for (-1 for all)")
	outFile := flag.String("out", "", "write annotated video to this file")
	show := flag.Bool("show", false, "display annotated frames in a window")
	listen := flag.String("listen", "", "serve /healthz and /stats on this address (optional)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := logrus.WithField("component", "rtm-video")
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	sdk, err := ort.New_ORT_SDK(func(opt *ort.OrtSdkOption) {
		opt.Version = ort.ORT_API_VERSION
		opt.WinDLL_Name = dllPath
		opt.LoggingLevel = ort.ORT_LOGGING_LEVEL_WARNING
	})
	if err != nil {
		log.WithError(err).Fatal("initialize onnxruntime sdk")
	}
	defer sdk.Release()
	log.Infof("onnxruntime version %s", sdk.GetVersionString())

	det, err := rtmdet.New(sdk, *detFile, *nameFile, float32(*scoreThr), float32(*iouThr), *useGPU)
	if err != nil {
		log.WithError(err).Fatal("load detector")
	}
	defer det.Release()

	pose, err := rtmpose.New(sdk, *poseFile, float32(*kptThr), *useGPU)
	if err != nil {
		log.WithError(err).Fatal("load pose model")
	}
	defer pose.Release()

	var writer *gocv.VideoWriter
	var window *gocv.Window
	if *show {
		window = gocv.NewWindow("rtm-video")
		defer window.Close()
	}
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	src := capture.NewVideoSource(*source)

	runner, err := pipeline.NewRunner(pipeline.Config{
		Source:        src,
		Detector:      det,
		Pose:          pose,
		PersonClassID: *personClass,
		OnResult: func(frame capture.Frame, res pipeline.FrameResult) {
			rtmpose.Draw(&frame.Mat, res.Poses, 2, 3)

			if *outFile != "" && writer == nil {
				w, err := gocv.VideoWriterFile(*outFile, "avc1", 30, frame.Width, frame.Height, true)
				if err != nil {
					log.WithError(err).Error("open video writer")
				} else {
					writer = w
				}
			}
			if writer != nil {
				if err := writer.Write(frame.Mat); err != nil {
					log.WithError(err).Warn("write annotated frame")
				}
			}
			if window != nil {
				window.IMShow(frame.Mat)
				window.WaitKey(1)
			}

			log.WithFields(logrus.Fields{
				"seq":        res.Seq,
				"trace":      res.TraceID,
				"detections": len(res.Detections),
				"poses":      len(res.Poses),
				"detect":     res.Timings.Detect,
				"pose":       res.Timings.Pose,
			}).Debug("frame processed")
		},
	})
	if err != nil {
		log.WithError(err).Fatal("build pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listen != "" {
		go serveStats(*listen, runner, log)
	}

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("pipeline failed")
	}

	stats := runner.Stats()
	log.WithFields(logrus.Fields{
		"frames":     stats.FramesProcessed,
		"detections": stats.DetectionsTotal,
		"poses":      stats.PosesTotal,
		"fps_mean":   stats.FPS.FPSMean,
		"drops":      stats.MailboxDrops,
	}).Info("run summary")
}

func serveStats(addr string, runner *pipeline.Runner, log *logrus.Entry) {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	r.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(runner.Stats())
	}).Methods("GET")

	srv := &http.Server{
		Handler:      r,
		Addr:         addr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Infof("stats server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("stats server")
	}
}
