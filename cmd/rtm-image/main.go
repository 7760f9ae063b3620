// Command rtm-image runs RTMDet + RTMPose on a single image and saves the
// annotated result.
package main

import (
	"flag"
	"image"
	"image/color"
	"runtime"

	"github.com/sirupsen/logrus"
	ort "github.com/yam8511/go-onnxruntime"
	"gocv.io/x/gocv"

	"rtm-pose-go/pkg/rtmdet"
	"rtm-pose-go/pkg/rtmpose"
	"rtm-pose-go/pkg/utils"
)

func main() {
	dllPath := ""
	if runtime.GOOS == "windows" {
		flag.StringVar(&dllPath, "lib", "onnxruntime.dll", "onnxruntime DLL")
	}
	useGPU := flag.Bool("gpu", true, "inference using CUDA")
	input := flag.String("input", "demo.jpg", "inference input image")
	detFile := flag.String("det", "rtmdet.onnx", "RTMDet detection model")
	poseFile := flag.String("pose", "rtmpose.onnx", "RTMPose keypoint model")
	nameFile := flag.String("names", "", "class names file (optional)")
	scoreThr := flag.Float64("conf", rtmdet.DefaultScoreThreshold, "detection confidence threshold")
	iouThr := flag.Float64("iou", rtmdet.DefaultIoUThreshold, "detection NMS IoU threshold")
	kptThr := flag.Float64("kpt-conf", rtmpose.DefaultKeypointScoreThreshold, "keypoint score threshold")
	personClass := flag.Int("person-class", 0, "detector class id to estimate poses for (-1 for all)")
	output := flag.String("output", "result_pose.jpg", "annotated output image")
	flag.Parse()

	log := logrus.WithField("component", "rtm-image")

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

	img, dets, err := det.PredictFile(*input)
	if err != nil {
		log.WithError(err).Fatal("detect")
	}
	defer img.Close()

	boxes := make([]image.Rectangle, 0, len(dets))
	scores := make([]float32, 0, len(dets))
	for _, d := range dets {
		if *personClass >= 0 && d.ClassID != *personClass {
			continue
		}
		boxes = append(boxes, d.Box)
		scores = append(scores, d.Score)
	}

	poses, err := pose.PredictBoxes(img, boxes, scores)
	if err != nil {
		log.WithError(err).Fatal("estimate poses")
	}

	for _, d := range dets {
		utils.DrawBox(&img, d.Label, d.Score, d.Box, color.RGBA{255, 0, 0, 0}, 0, 0, 0)
	}
	rtmpose.Draw(&img, poses, 2, 3)

	if ok := gocv.IMWrite(*output, img); !ok {
		log.Fatalf("write %s failed", *output)
	}
	log.Infof("detected %d objects, %d poses, saved to %s", len(dets), len(poses), *output)
}
