package render

import (
	"reflect"
	"testing"

	"github.com/jlindqvist/chorogram/pkg/errors"
)

func TestOptionsRequiredFields(t *testing.T) {
	err := (&Options{Granularity: "countries"}).ValidateAndSetDefaults()
	if !errors.Is(err, errors.ErrCodeInvalidOptions) {
		t.Errorf("missing dataset: error = %v, want INVALID_OPTIONS", err)
	}

	err = (&Options{Dataset: "world"}).ValidateAndSetDefaults()
	if !errors.Is(err, errors.ErrCodeInvalidOptions) {
		t.Errorf("missing granularity: error = %v, want INVALID_OPTIONS", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := &Options{Dataset: "world", Granularity: "countries"}
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults error: %v", err)
	}

	if o.Width != DefaultWidth {
		t.Errorf("Width = %v, want %v", o.Width, DefaultWidth)
	}
	if o.AspectRatio != DefaultAspectRatio {
		t.Errorf("AspectRatio = %v, want %v", o.AspectRatio, DefaultAspectRatio)
	}
	if o.Height != DefaultWidth*DefaultAspectRatio {
		t.Errorf("Height = %v, want width*aspectRatio", o.Height)
	}
	if o.ColorScheme != SchemeQualitative {
		t.Errorf("ColorScheme = %q, want qualitative", o.ColorScheme)
	}
	if o.Labels == nil || *o.Labels {
		t.Error("Labels should default to false")
	}
	if o.Tooltip == nil || !*o.Tooltip {
		t.Error("Tooltip should default to true")
	}
	if o.LabelsSource != DefaultLabelSource {
		t.Errorf("LabelsSource = %q, want %q", o.LabelsSource, DefaultLabelSource)
	}
	if o.Center == nil || *o.Center != [2]float64{0.5, 0.5} {
		t.Errorf("Center = %v, want [0.5 0.5]", o.Center)
	}
	if o.ScaleFactor != DefaultScaleFactor {
		t.Errorf("ScaleFactor = %v, want %v", o.ScaleFactor, DefaultScaleFactor)
	}
}

func TestOptionsHeightDrivesWidth(t *testing.T) {
	o := &Options{Dataset: "world", Granularity: "countries", Height: 500, AspectRatio: 0.5}
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults error: %v", err)
	}
	if o.Width != 1000 {
		t.Errorf("Width = %v, want 1000 (height/aspectRatio)", o.Width)
	}
}

// Defaulting never touches a field the caller set, even to false.
func TestOptionsExplicitFalseSurvives(t *testing.T) {
	o := &Options{
		Dataset:     "world",
		Granularity: "countries",
		Tooltip:     boolPtr(false),
		Legend:      boolPtr(false),
		Labels:      boolPtr(true),
	}
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults error: %v", err)
	}
	if *o.Tooltip {
		t.Error("explicitly disabled Tooltip was overwritten")
	}
	if *o.Legend {
		t.Error("explicitly disabled Legend was overwritten")
	}
	if !*o.Labels {
		t.Error("explicitly enabled Labels was overwritten")
	}
}

// Running the fill step on an already-complete Options changes nothing.
func TestOptionsDefaultingIdempotent(t *testing.T) {
	o := &Options{
		Dataset:     "world",
		Granularity: "countries",
		Width:       800,
		ColorScheme: SchemeQualitative,
		ColorData:   map[string]string{"5": "#ff0000"},
	}
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("first fill error: %v", err)
	}
	before := *o
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("second fill error: %v", err)
	}
	if !reflect.DeepEqual(before, *o) {
		t.Errorf("second fill changed options:\n before %+v\n after  %+v", before, *o)
	}
}

func TestOptionsRejectsUnknownScheme(t *testing.T) {
	o := &Options{Dataset: "world", Granularity: "countries", ColorScheme: "plasma"}
	err := o.ValidateAndSetDefaults()
	if !errors.Is(err, errors.ErrCodeInvalidScheme) {
		t.Errorf("error = %v, want INVALID_SCHEME", err)
	}
}
