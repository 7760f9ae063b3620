package main

import "fmt"

// DeployConfig describes one mmdeploy export invocation.
type DeployConfig struct {
	DeployScript string // path to mmdeploy tools/deploy.py
	DeployCfg    string // mmdeploy deploy config (e.g. detection_onnxruntime_static.py)
	ModelCfg     string // mmdetection/mmpose model config
	Checkpoint   string // trained checkpoint (.pth)
	Image        string // calibration/trace image
	WorkDir      string // output directory for end2end.onnx
	Device       string // export device, e.g. "cpu" or "cuda:0"
}

// buildDeployArgs assembles the mmdeploy tools/deploy.py argument vector.
// Positional arguments follow the upstream CLI exactly.
func buildDeployArgs(cfg DeployConfig) []string {
	args := []string{
		cfg.DeployScript,
		cfg.DeployCfg,
		cfg.ModelCfg,
		cfg.Checkpoint,
		cfg.Image,
	}
	if cfg.WorkDir != "" {
		args = append(args, "--work-dir", cfg.WorkDir)
	}
	if cfg.Device != "" {
		args = append(args, "--device", cfg.Device)
	}
	return args
}

// EngineConfig describes one trtexec engine build. Engine files are tied
// to the GPU, driver, and TensorRT version they were built on and must be
// regenerated per target machine.
type EngineConfig struct {
	ONNX        string // input ONNX model
	Engine      string // output .engine path
	FP16        bool   // build with fp16 kernels
	WorkspaceMB int    // builder workspace limit, 0 for trtexec default
	MinShape    string // optional dynamic shape spec, e.g. "input:1x3x256x192"
	OptShape    string
	MaxShape    string
}

// buildTrtexecArgs assembles the trtexec argument vector.
func buildTrtexecArgs(cfg EngineConfig) []string {
	args := []string{
		fmt.Sprintf("--onnx=%s", cfg.ONNX),
		fmt.Sprintf("--saveEngine=%s", cfg.Engine),
	}
	if cfg.FP16 {
		args = append(args, "--fp16")
	}
	if cfg.WorkspaceMB > 0 {
		args = append(args, fmt.Sprintf("--memPoolSize=workspace:%dM", cfg.WorkspaceMB))
	}
	if cfg.MinShape != "" {
		args = append(args, fmt.Sprintf("--minShapes=%s", cfg.MinShape))
	}
	if cfg.OptShape != "" {
		args = append(args, fmt.Sprintf("--optShapes=%s", cfg.OptShape))
	}
	if cfg.MaxShape != "" {
		args = append(args, fmt.Sprintf("--maxShapes=%s", cfg.MaxShape))
	}
	return args
}
