// Command rtm-convert orchestrates the external model conversion tools:
// mmdeploy's tools/deploy.py for checkpoint-to-ONNX export, and trtexec
// for ONNX-to-TensorRT engine builds. Both tools stay external; this
// command only assembles their invocations and relays their output.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
)

func main() {
	mode := flag.String("mode", "onnx", "conversion mode: onnx (mmdeploy export) or engine (trtexec build)")

	// onnx mode
	python := flag.String("python", "python3", "python interpreter for mmdeploy")
	deployScript := flag.String("deploy-script", "tools/deploy.py", "path to mmdeploy tools/deploy.py")
	deployCfg := flag.String("deploy-cfg", "", "mmdeploy deploy config")
	modelCfg := flag.String("config", "", "model config")
	checkpoint := flag.String("checkpoint", "", "model checkpoint (.pth)")
	image := flag.String("image", "demo.jpg", "trace image for the export")
	workDir := flag.String("output", "work_dir", "output directory for end2end.onnx")
	device := flag.String("device", "cpu", "export device")

	// engine mode
	trtexec := flag.String("trtexec", "trtexec", "path to the trtexec binary")
	onnxFile := flag.String("onnx", "", "input ONNX model (engine mode)")
	engineFile := flag.String("engine", "", "output engine file (engine mode)")
	fp16 := flag.Bool("fp16", false, "build the engine with fp16 kernels")
	workspace := flag.Int("workspace", 0, "builder workspace limit in MB (0 for default)")
	minShape := flag.String("min-shape", "", "minimum dynamic shape, e.g. input:1x3x256x192")
	optShape := flag.String("opt-shape", "", "optimal dynamic shape")
	maxShape := flag.String("max-shape", "", "maximum dynamic shape")
	flag.Parse()

	log := logrus.WithField("component", "rtm-convert")

	var err error
	switch *mode {
	case "onnx":
		if *deployCfg == "" || *modelCfg == "" || *checkpoint == "" {
			log.Fatal("onnx mode requires -deploy-cfg, -config, and -checkpoint")
		}
		args := buildDeployArgs(DeployConfig{
			DeployScript: *deployScript,
			DeployCfg:    *deployCfg,
			ModelCfg:     *modelCfg,
			Checkpoint:   *checkpoint,
			Image:        *image,
			WorkDir:      *workDir,
			Device:       *device,
		})
		err = runTool(log, *python, args)
	case "engine":
		if *onnxFile == "" || *engineFile == "" {
			log.Fatal("engine mode requires -onnx and -engine")
		}
		args := buildTrtexecArgs(EngineConfig{
			ONNX:        *onnxFile,
			Engine:      *engineFile,
			FP16:        *fp16,
			WorkspaceMB: *workspace,
			MinShape:    *minShape,
			OptShape:    *optShape,
			MaxShape:    *maxShape,
		})
		err = runTool(log, *trtexec, args)
		if err == nil {
			log.Warn("engine files are specific to this GPU, driver, and TensorRT version; rebuild on every target machine")
		}
	default:
		log.Fatalf("unknown mode %q", *mode)
	}

	if err != nil {
		log.WithError(err).Fatal("conversion failed")
	}
	log.Info("conversion finished")
}

// runTool executes an external conversion tool, streaming its output.
func runTool(log *logrus.Entry, bin string, args []string) error {
	log.WithField("argv", append([]string{bin}, args...)).Info("running external tool")

	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}
