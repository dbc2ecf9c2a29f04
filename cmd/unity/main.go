// Package main provides the unity CLI: sizing, inspecting and running
// transformer encoders assembled from a parameter registry.
package main

import (
	"context"
	"os"

	"k8s.io/klog/v2"
)

const version = "v0.1.0-dev"

func main() {
	ctx := context.Background()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		klog.ErrorS(err, "Command failed")
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}
