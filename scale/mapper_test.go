package scale

import "testing"

func TestMapperScenarioRadii(t *testing.T) {
	m := NewMapper(DefaultConfig())
	m.Update([]float64{10, 3000}, []float64{5})

	if got := m.Radius(10); !approx(got, 5) {
		t.Errorf("radius(A) = %v, want 5", got)
	}
	if got := m.Radius(3000); !approx(got, 74) {
		t.Errorf("radius(B) = %v, want 74", got)
	}
	if got := m.LabelSize(3000); !approx(got, 50) {
		t.Errorf("label(B) = %v, want 50", got)
	}
}

func TestMapperLabelCutoff(t *testing.T) {
	m := NewMapper(DefaultConfig())
	m.Update([]float64{1, 10, 1000}, nil)

	// max/50 = 20
	if m.LabelVisible(10) {
		t.Error("power 10 should be below the default cutoff")
	}
	if !m.LabelVisible(1000) {
		t.Error("power 1000 should be visible")
	}
	if !m.EdgeVisible(0) {
		t.Error("edges are visible by default")
	}
}

func TestMapperLinkShape(t *testing.T) {
	cfg := DefaultConfig()
	m := NewMapper(cfg)
	m.Update([]float64{1, 2}, []float64{1, 9})

	heavy := m.LinkDistance(9, 5, 5)
	light := m.LinkDistance(1, 5, 5)
	if !(heavy < light) {
		t.Errorf("heavier edges should be shorter: heavy=%v light=%v", heavy, light)
	}
	if !approx(heavy, 10+cfg.LinkGap.Min) {
		t.Errorf("heaviest distance = %v, want %v", heavy, 10+cfg.LinkGap.Min)
	}
	if s := m.LinkStrength(1); !approx(s, 0.2) {
		t.Errorf("lightest strength = %v, want 0.2", s)
	}
	if s := m.LinkStrength(9); !approx(s, 1.0) {
		t.Errorf("heaviest strength = %v, want 1.0", s)
	}
	if w := m.StrokeWidth(16); !approx(w, 4) {
		t.Errorf("stroke(16) = %v, want 4", w)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Radius.Exponent = 0
	if cfg.Validate() == nil {
		t.Error("zero exponent accepted")
	}
	cfg = DefaultConfig()
	cfg.EdgeCutoff = Cutoff{Mode: "median"}
	if cfg.Validate() == nil {
		t.Error("unknown cutoff mode accepted")
	}
}
