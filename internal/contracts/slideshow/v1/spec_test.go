package v1

import (
	"encoding/json"
	"testing"
	"time"

	"montage/internal/pkg/errors"
)

func ptr[T any](v T) *T { return &v }

func TestValidate(t *testing.T) {
	ok := Slide{ImageAssetID: "ast_1"}
	tests := []struct {
		name  string
		spec  JobSpec
		field string
	}{
		{"valid", JobSpec{Slides: []Slide{ok, ok}}, ""},
		{"no slides", JobSpec{}, "slides"},
		{"missing asset", JobSpec{Slides: []Slide{ok, {}}}, "slides[1].image_asset_id"},
		{"zero duration", JobSpec{Slides: []Slide{{ImageAssetID: "a", DurationMs: ptr(int64(0))}}}, "slides[0].duration_ms"},
		{"bad default", JobSpec{Slides: []Slide{ok}, DefaultDurationMs: ptr(int64(-5))}, "default_duration_ms"},
		{"negative window", JobSpec{Slides: []Slide{ok}, TransitionWindowMs: ptr(int64(-1))}, "transition_window_ms"},
		{"darkening", JobSpec{Slides: []Slide{{ImageAssetID: "a", Darkening: ptr(1.5)}}}, "slides[0].darkening"},
		{"effect", JobSpec{Slides: []Slide{{ImageAssetID: "a", Effect: "spin"}}}, "slides[0].effect"},
		{"transition", JobSpec{Slides: []Slide{{ImageAssetID: "a", Transition: "wipe"}}}, "slides[0].transition"},
		{"duration overflows", JobSpec{Slides: []Slide{{ImageAssetID: "a", DurationMs: ptr(int64(1) << 62)}}}, "slides[0].duration_ms"},
		{"default overflows", JobSpec{Slides: []Slide{ok}, DefaultDurationMs: ptr(int64(1) << 62)}, "default_duration_ms"},
		{"window overflows", JobSpec{Slides: []Slide{ok}, TransitionWindowMs: ptr(int64(1) << 62)}, "transition_window_ms"},
		{"total too long", JobSpec{Slides: []Slide{
			{ImageAssetID: "a", DurationMs: ptr(int64(20 * 3600 * 1000))},
			{ImageAssetID: "b", DurationMs: ptr(int64(20 * 3600 * 1000))},
		}}, "slides"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := errors.GetFields(err)["field"]; got != tt.field {
				t.Errorf("field = %v, want %s", got, tt.field)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	spec := JobSpec{
		Slides: []Slide{
			{ImageAssetID: "a", Effect: "ripple"},
			{ImageAssetID: "b", Darkening: ptr(0.0)},
		},
		TransitionWindowMs: ptr(int64(100)),
	}
	d := Defaults{
		DefaultDurationMs:  ptr(int64(2500)),
		TransitionWindowMs: ptr(int64(900)),
		Effect:             "ken_burns",
		Transition:         "glitch",
		Darkening:          ptr(0.4),
	}
	out := spec.Apply(d)

	if *out.DefaultDurationMs != 2500 || *out.TransitionWindowMs != 100 {
		t.Errorf("job fields should win over preset: %+v", out)
	}
	if out.Slides[0].Effect != "ripple" || out.Slides[1].Effect != "ken_burns" {
		t.Errorf("unexpected effects %q %q", out.Slides[0].Effect, out.Slides[1].Effect)
	}
	if out.Slides[0].Transition != "glitch" || *out.Slides[0].Darkening != 0.4 {
		t.Errorf("unset slide fields should come from the preset: %+v", out.Slides[0])
	}
	if *out.Slides[1].Darkening != 0 {
		t.Error("an explicit zero darkening must be kept")
	}
	if spec.Slides[1].Effect != "" {
		t.Error("Apply must not modify the receiver")
	}
}

func TestDefaultsValidate(t *testing.T) {
	if err := (Defaults{Effect: "static", Transition: "random"}).Validate(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	err := Defaults{Transition: "wipe"}.Validate()
	if errors.GetFields(err)["field"] != "transition" {
		t.Errorf("expected transition field error, got %v", err)
	}
	err = Defaults{DefaultDurationMs: ptr(int64(100 * 24 * 3600 * 1000))}.Validate()
	if errors.GetFields(err)["field"] != "default_duration_ms" {
		t.Errorf("expected default_duration_ms field error, got %v", err)
	}
}

func TestInput(t *testing.T) {
	var spec JobSpec
	raw := `{"slides":[{"image_asset_id":"a","duration_ms":1500,"text":"hi"},{"image_asset_id":"b"}],"default_duration_ms":3000,"transition_window_ms":250,"seed":7}`
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		t.Fatal(err)
	}
	in := spec.Input([][]byte{{1}, {2}}, []byte{9})

	if in.DefaultDuration != 3*time.Second || *in.TransitionWindow != 250*time.Millisecond || *in.Seed != 7 {
		t.Errorf("unexpected job fields %+v", in)
	}
	if *in.Slides[0].Duration != 1500*time.Millisecond || in.Slides[1].Duration != nil {
		t.Error("slide durations not carried over")
	}
	if in.Slides[1].Image[0] != 2 || in.Audio[0] != 9 || in.Slides[0].Text != "hi" {
		t.Error("assets not attached by index")
	}
	if ids := spec.AssetIDs(); len(ids) != 2 || ids[1] != "b" {
		t.Errorf("unexpected asset ids %v", ids)
	}
}
