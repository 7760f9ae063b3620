// Command rtm-eval computes keypoint accuracy metrics over a batch of
// predicted and ground-truth poses stored as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"rtm-pose-go/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// instanceJSON is one evaluated pose in the input file.
type instanceJSON struct {
	Pred     [][2]float64 `json:"pred"`
	GT       [][2]float64 `json:"gt"`
	Visible  []bool       `json:"visible"`
	BBoxSize float64      `json:"bbox_size,omitempty"`
	HeadSize float64      `json:"head_size,omitempty"`
}

func main() {
	input := flag.String("input", "", "JSON file with evaluation instances")
	pckThr := flag.Float64("pck-thr", 0.2, "PCK threshold as a fraction of the normalization size")
	norm := flag.String("norm", "bbox", "PCK normalization: bbox, head or torso")
	aucNorm := flag.Float64("auc-norm", 30, "AUC pixel normalization factor")
	aucSteps := flag.Int("auc-steps", 20, "AUC threshold steps")
	nmeIndices := flag.String("nme", "", "NME keypoint pair, either a dataset name or two comma-separated indices")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	collector, err := loadInstances(*input)
	if err != nil {
		logrus.WithError(err).Fatal("load instances")
	}
	logrus.WithField("instances", collector.Len()).Info("loaded evaluation batch")

	acc, avgAcc, err := collector.PCK(*pckThr, metrics.NormItem(*norm))
	if err != nil {
		logrus.WithError(err).Fatal("compute PCK")
	}
	fmt.Printf("PCK@%.2f (%s): %.4f\n", *pckThr, *norm, avgAcc)
	for i, a := range acc {
		if a >= 0 {
			logrus.WithFields(logrus.Fields{"keypoint": i, "acc": fmt.Sprintf("%.4f", a)}).Debug("per-keypoint accuracy")
		}
	}

	auc, err := collector.AUC(*aucNorm, *aucSteps)
	if err != nil {
		logrus.WithError(err).Fatal("compute AUC")
	}
	fmt.Printf("AUC (norm %.0fpx, %d steps): %.4f\n", *aucNorm, *aucSteps, auc)

	epe, err := collector.EPE()
	if err != nil {
		logrus.WithError(err).Fatal("compute EPE")
	}
	fmt.Printf("EPE: %.4f px\n", epe)

	if *nmeIndices != "" {
		idx1, idx2, err := parseNMEPair(*nmeIndices)
		if err != nil {
			logrus.WithError(err).Fatal("parse -nme")
		}
		nme, err := collector.NME(idx1, idx2)
		if err != nil {
			logrus.WithError(err).Fatal("compute NME")
		}
		fmt.Printf("NME (keypoints %d-%d): %.4f\n", idx1, idx2, nme)
	}
}

func loadInstances(file string) (*metrics.Collector, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	var raw []instanceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s contains no instances", file)
	}

	collector := &metrics.Collector{}
	for i, r := range raw {
		inst := metrics.Instance{
			Pred:     toPoints(r.Pred),
			GT:       toPoints(r.GT),
			Visible:  r.Visible,
			BBoxSize: r.BBoxSize,
			HeadSize: r.HeadSize,
		}
		if inst.Visible == nil {
			inst.Visible = make([]bool, len(inst.GT))
			for k := range inst.Visible {
				inst.Visible[k] = true
			}
		}
		if err := collector.Add(inst); err != nil {
			return nil, fmt.Errorf("instance %d: %w", i, err)
		}
	}
	return collector, nil
}

func toPoints(raw [][2]float64) []metrics.Point {
	pts := make([]metrics.Point, len(raw))
	for i, p := range raw {
		pts[i] = metrics.Point{p[0], p[1]}
	}
	return pts
}

// parseNMEPair accepts either a known dataset name or "idx1,idx2".
func parseNMEPair(s string) (int, int, error) {
	if pair, ok := metrics.DefaultKeypointIndices[s]; ok {
		return pair[0], pair[1], nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want a dataset name or two comma-separated indices, got %q", s)
	}
	idx1, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("parse index %q: %w", parts[0], err)
	}
	idx2, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("parse index %q: %w", parts[1], err)
	}
	return idx1, idx2, nil
}
