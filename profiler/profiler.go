// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package profiler provides nested timing groups for pipeline stages.
package profiler

import (
	"context"
	"log/slog"
	"time"
)

type ProfilerGroup interface {
	Start(label string) ProfilerGroup
	End()
}

// Nop is a ProfilerGroup that records nothing.
type Nop struct{}

func (Nop) Start(string) ProfilerGroup { return Nop{} }
func (Nop) End()                       {}

// LogGroup logs the duration of every group at debug level when it ends.
type LogGroup struct {
	logger *slog.Logger
	label  string
	depth  int
	start  time.Time
}

// NewLogGroup returns the root group of a log-backed profiler.
func NewLogGroup(logger *slog.Logger) *LogGroup {
	return &LogGroup{logger: logger, start: time.Now()}
}

func (g *LogGroup) Start(label string) ProfilerGroup {
	if g.label != "" {
		label = g.label + "/" + label
	}
	return &LogGroup{
		logger: g.logger,
		label:  label,
		depth:  g.depth + 1,
		start:  time.Now(),
	}
}

func (g *LogGroup) End() {
	if g.logger == nil || !g.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	g.logger.Debug("profiler: stage done",
		"stage", g.label,
		"depth", g.depth,
		"elapsed", time.Since(g.start))
}
