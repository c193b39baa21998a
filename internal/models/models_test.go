package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestBackgroundUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Background
	}{
		{"hex color string", `"#ff0000"`, Background{Color: "#ff0000"}},
		{"rgb color string", `"rgb(1,2,3)"`, Background{Color: "rgb(1,2,3)"}},
		{"named color string", `"white"`, Background{Color: "white"}},
		{"named color any case", `"Transparent"`, Background{Color: "Transparent"}},
		{"relative image name", `"whiteboard.png"`, Background{ImageURL: "whiteboard.png"}},
		{"url string", `"https://cdn.example.org/bg.png"`, Background{ImageURL: "https://cdn.example.org/bg.png"}},
		{"object form", `{"color":"#fff","imageUrl":"a.png"}`, Background{Color: "#fff", ImageURL: "a.png"}},
		{"null", `null`, Background{}},
		{"empty string", `""`, Background{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Background
			if err := json.Unmarshal([]byte(tt.input), &b); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if b != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, b)
			}
		})
	}
}

func TestPageBackground(t *testing.T) {
	d := Design{
		Background:      Background{Color: "#ffffff"},
		BackgroundRight: Background{Color: "#000000"},
	}

	d.Side = SideLeft
	if bg := d.PageBackground(); bg.Color != "#ffffff" {
		t.Errorf("Expected left side to fall back to background, got %+v", bg)
	}

	d.Side = SideRight
	if bg := d.PageBackground(); bg.Color != "#000000" {
		t.Errorf("Expected right background, got %+v", bg)
	}
}

func TestVariantValidate(t *testing.T) {
	tests := []struct {
		name    string
		variant VariantConfig
		valid   bool
	}{
		{"default postcard", VariantConfig{WidthMm: 150, HeightMm: 100, BleedMm: 3, DPI: 300}, true},
		{"zero dpi", VariantConfig{WidthMm: 150, HeightMm: 100, BleedMm: 3}, false},
		{"zero width", VariantConfig{HeightMm: 100, DPI: 300}, false},
		{"negative bleed", VariantConfig{WidthMm: 150, HeightMm: 100, BleedMm: -1, DPI: 300}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.variant.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidVariant) {
				t.Errorf("Expected ErrInvalidVariant, got %v", err)
			}
		})
	}
}

func TestOriented(t *testing.T) {
	v := VariantConfig{WidthMm: 150, HeightMm: 100, BleedMm: 3, DPI: 300}

	p := v.Oriented(Portrait)
	if p.WidthMm != 100 || p.HeightMm != 150 {
		t.Errorf("Expected 100x150 portrait, got %vx%v", p.WidthMm, p.HeightMm)
	}
	if l := p.Oriented(Landscape); l != v {
		t.Errorf("Expected landscape to restore %+v, got %+v", v, l)
	}
}

func TestAlphaAndNextZIndex(t *testing.T) {
	half := 0.5
	over := 1.7
	d := Design{Objects: []CanvasObject{
		{ID: "a", ZIndex: 0},
		{ID: "b", ZIndex: 4, Opacity: &half},
		{ID: "c", ZIndex: 2, Opacity: &over},
	}}

	if a := d.Objects[0].Alpha(); a != 1 {
		t.Errorf("Expected default opacity 1, got %v", a)
	}
	if a := d.Objects[1].Alpha(); a != 0.5 {
		t.Errorf("Expected 0.5, got %v", a)
	}
	if a := d.Objects[2].Alpha(); a != 1 {
		t.Errorf("Expected clamped opacity 1, got %v", a)
	}
	if z := d.NextZIndex(); z != 5 {
		t.Errorf("Expected next z-index 5, got %d", z)
	}
}
