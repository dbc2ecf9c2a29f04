// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model provides the inference handle of a transformer encoder.
//
// Example:
//
//	h, err := model.LoadHParams("encoder.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m, err := model.Build(h, model.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	m.SetContext(graph.NewContext(graph.Options{Name: "scratch"}))
//	out, err := m.Run(data, seq, false)
package model

import (
	"github.com/born-ml/unity/internal/config"
	"github.com/born-ml/unity/internal/model"
)

// Model owns the parameters of one model instance for an inference session.
type Model = model.Model

// Options configures New and Build.
type Options = model.Options

// HParams describes the shape of a transformer encoder.
type HParams = config.HParams

// Encoder is a stack of encoder layers.
type Encoder = model.Encoder

// EncoderLayer is one post-norm transformer encoder layer.
type EncoderLayer = model.EncoderLayer

// MaxHParamsBytes is the maximum size of a serialized hyperparameter block.
const MaxHParamsBytes = config.MaxHParamsBytes

// Common errors.
var (
	ErrNoContext       = model.ErrNoContext
	ErrNoEncoder       = model.ErrNoEncoder
	ErrHParamsTooLarge = config.ErrHParamsTooLarge
	ErrInvalidHParams  = config.ErrInvalidHParams
)

// New allocates a model with an empty registry and no bound context.
func New(opts Options) *Model {
	return model.New(opts)
}

// Build allocates a model sized for h and registers a transformer encoder.
func Build(h HParams, opts Options) (*Model, error) {
	return model.Build(h, opts)
}

// Size returns the parameter bytes of a model built from h.
func Size(h HParams) int {
	return model.Size(h)
}

// DefaultHParams returns the default hyperparameters.
func DefaultHParams() HParams {
	return config.Defaults()
}

// ParseHParams decodes a YAML hyperparameter block.
func ParseHParams(data []byte) (HParams, error) {
	return config.Parse(data)
}

// LoadHParams reads a YAML hyperparameter file.
func LoadHParams(path string) (HParams, error) {
	return config.Load(path)
}
