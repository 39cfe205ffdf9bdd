package main

import (
	"path/filepath"
	"strings"

	"github.com/airbusgeo/s2angles/internal/utils"
)

// resolveInput joins a relative input path to the input mount, if the mount exists
func resolveInput(arg, inputDir string) string {
	if strings.Contains(arg, "://") || filepath.IsAbs(arg) {
		return arg
	}
	if inputDir != "" && utils.IsDir(inputDir) {
		return filepath.Join(inputDir, arg)
	}
	return arg
}

// resolveOutput returns the output mount if it exists, else the input mount if it exists.
// An empty result lets the pipeline choose the default location.
func resolveOutput(outputDir, inputDir string) string {
	for _, dir := range []string{outputDir, inputDir} {
		if strings.Contains(dir, "://") {
			return dir
		}
		if dir != "" && utils.IsDir(dir) {
			return dir
		}
	}
	return ""
}
