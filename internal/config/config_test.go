package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Face.Tolerance != 0.6 {
		t.Errorf("Tolerance = %f, want 0.6", cfg.Face.Tolerance)
	}
	if cfg.Face.DetectionScale != 0.5 {
		t.Errorf("DetectionScale = %f, want 0.5", cfg.Face.DetectionScale)
	}
	if cfg.Face.MinConfidence != 0.25 {
		t.Errorf("MinConfidence = %f, want 0.25", cfg.Face.MinConfidence)
	}
	if cfg.Location.POIRadius != 200 {
		t.Errorf("POIRadius = %f, want 200", cfg.Location.POIRadius)
	}
	if !cfg.Location.PreferCustom {
		t.Error("PreferCustom should default to true")
	}
	if cfg.Processing.MarkerTag != "ai-processed" {
		t.Errorf("MarkerTag = %q", cfg.Processing.MarkerTag)
	}
	if cfg.Vision.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", cfg.Vision.Provider)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FACE_TOLERANCE", "0.45")
	t.Setenv("POI_RADIUS", "350")
	t.Setenv("PREFER_CUSTOM_LOCATIONS", "false")
	t.Setenv("MARKER_TAG", "enriched")
	t.Setenv("VISION_PROVIDER", "gemini")

	cfg := Load()

	if cfg.Face.Tolerance != 0.45 {
		t.Errorf("Tolerance = %f, want 0.45", cfg.Face.Tolerance)
	}
	if cfg.Location.POIRadius != 350 {
		t.Errorf("POIRadius = %f, want 350", cfg.Location.POIRadius)
	}
	if cfg.Location.PreferCustom {
		t.Error("PreferCustom override not applied")
	}
	if cfg.Processing.MarkerTag != "enriched" {
		t.Errorf("MarkerTag = %q, want enriched", cfg.Processing.MarkerTag)
	}
	if cfg.Vision.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", cfg.Vision.Provider)
	}
}

func TestEnvFloat_Invalid(t *testing.T) {
	t.Setenv("FACE_TOLERANCE", "not-a-number")
	if cfg := Load(); cfg.Face.Tolerance != 0.6 {
		t.Errorf("invalid value should fall back to default, got %f", cfg.Face.Tolerance)
	}

	t.Setenv("FACE_TOLERANCE", "-1")
	if cfg := Load(); cfg.Face.Tolerance != 0.6 {
		t.Errorf("negative value should fall back to default, got %f", cfg.Face.Tolerance)
	}
}

func TestEnvBool_Invalid(t *testing.T) {
	t.Setenv("PRESERVE_EXISTING", "maybe")
	if cfg := Load(); !cfg.Processing.PreserveExisting {
		t.Error("unparsable bool should fall back to default true")
	}
}
