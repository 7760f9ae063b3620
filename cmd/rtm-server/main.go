package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"rtm-pose-go/pkg/rtmdet"
	"rtm-pose-go/pkg/rtmpose"

	"github.com/sirupsen/logrus"
	ort "github.com/yam8511/go-onnxruntime"
)

func main() {
	dllPath := ""
	if runtime.GOOS == "windows" {
		flag.StringVar(&dllPath, "lib", "onnxruntime.dll", "onnxruntime DLL path")
	}
	useGPU := flag.Bool("gpu", false, "run inference on GPU")
	detFile := flag.String("det", "rtmdet.onnx", "detection model file")
	poseFile := flag.String("pose", "rtmpose.onnx", "pose model file")
	namesFile := flag.String("names", "", "class names file, one per line")
	confThreshold := flag.Float64("conf", rtmdet.DefaultScoreThreshold, "detection confidence threshold")
	iouThreshold := flag.Float64("iou", rtmdet.DefaultIoUThreshold, "detection NMS IoU threshold")
	kptThreshold := flag.Float64("kpt-conf", rtmpose.DefaultKeypointScoreThreshold, "keypoint score threshold")
	personClass := flag.Int("person-class", 0, "class ID to estimate poses for, negative for all")
	addr := flag.String("listen", ":8080", "listen address")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	sdk, err := ort.New_ORT_SDK(func(opt *ort.OrtSdkOption) {
		opt.Version = ort.ORT_API_VERSION
		opt.WinDLL_Name = dllPath
		opt.LoggingLevel = ort.ORT_LOGGING_LEVEL_WARNING
	})
	if err != nil {
		logrus.WithError(err).Fatal("init onnxruntime SDK")
	}
	defer sdk.Release()

	det, err := rtmdet.New(sdk, *detFile, *namesFile, float32(*confThreshold), float32(*iouThreshold), *useGPU)
	if err != nil {
		logrus.WithError(err).Fatal("load detection model")
	}
	defer det.Release()

	pose, err := rtmpose.New(sdk, *poseFile, float32(*kptThreshold), *useGPU)
	if err != nil {
		logrus.WithError(err).Fatal("load pose model")
	}
	defer pose.Release()

	infer := newInferFunc(det, pose, *personClass)
	srv := NewServer(infer)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logrus.WithField("addr", *addr).Info("serving pose inference")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Error("http server")
		os.Exit(1)
	}
	logrus.Info("server stopped")
}

// newInferFunc wires detection and pose sessions into the server's
// inference callback.
func newInferFunc(det *rtmdet.Session, pose *rtmpose.Session, personClass int) inferFunc {
	return func(img image.Image) (*InferenceResponse, error) {
		detections, err := det.PredictImage(img)
		if err != nil {
			return nil, fmt.Errorf("detect: %w", err)
		}

		resp := &InferenceResponse{
			Detections: make([]Detection, 0, len(detections)),
			Poses:      []PoseInstance{},
		}
		boxes := make([]image.Rectangle, 0, len(detections))
		scores := make([]float32, 0, len(detections))
		for _, d := range detections {
			resp.Detections = append(resp.Detections, Detection{
				Box:   [4]int{d.Box.Min.X, d.Box.Min.Y, d.Box.Max.X, d.Box.Max.Y},
				Score: d.Score,
				Label: d.Label,
			})
			if personClass >= 0 && d.ClassID != personClass {
				continue
			}
			boxes = append(boxes, d.Box)
			scores = append(scores, d.Score)
		}

		poses, err := pose.PredictBoxesImage(img, boxes, scores)
		if err != nil {
			return nil, fmt.Errorf("estimate poses: %w", err)
		}
		for _, p := range poses {
			inst := PoseInstance{
				Box:       [4]int{p.Box.Min.X, p.Box.Min.Y, p.Box.Max.X, p.Box.Max.Y},
				Score:     p.Score,
				Keypoints: make([]KeypointJSON, 0, len(p.Keypoints)),
			}
			for _, k := range p.Keypoints {
				inst.Keypoints = append(inst.Keypoints, KeypointJSON{
					X: k.X, Y: k.Y, Score: k.Score, Valid: k.Valid(),
				})
			}
			resp.Poses = append(resp.Poses, inst)
		}
		return resp, nil
	}
}
