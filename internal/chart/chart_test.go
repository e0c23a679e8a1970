package chart

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/cwbudde/polyga/internal/controller"
	"github.com/cwbudde/polyga/internal/ga"
	"github.com/cwbudde/polyga/internal/store"
)

func TestPopulation(t *testing.T) {
	cfg := ga.DefaultConfig()
	cfg.Seed = 3
	c := controller.New(cfg, controller.DefaultOptions())
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	c.Step()

	var buf bytes.Buffer
	if err := Population(&buf, c.Snapshot()); err != nil {
		t.Fatalf("Population failed: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		t.Error("Expected non-empty image")
	}
}

func TestPopulation_NoPoints(t *testing.T) {
	var buf bytes.Buffer
	if err := Population(&buf, controller.Snapshot{}); err == nil {
		t.Error("Expected error for snapshot without curve points")
	}
}

func TestTrace(t *testing.T) {
	entries := []store.TraceEntry{
		{Generation: 1, BestY: 10, MeanY: 2},
		{Generation: 2, BestY: 12, MeanY: 5},
		{Generation: 3, BestY: 12, MeanY: 9},
	}

	var buf bytes.Buffer
	if err := Trace(&buf, entries); err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}

	if err := Trace(&buf, nil); err == nil {
		t.Error("Expected error for empty trace")
	}
}
