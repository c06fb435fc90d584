package geometry

import (
	"math"
	"testing"

	"watvision-service/internal/models"
)

func TestApply_Identity(t *testing.T) {
	p := models.Point{X: 12.5, Y: -3}
	got := Apply(Identity(), p)
	if got != p {
		t.Errorf("identity transform changed point: %v -> %v", p, got)
	}
}

func TestApply_Translation(t *testing.T) {
	h := models.Homography{1, 0, 10, 0, 1, -5, 0, 0, 1}
	got := Apply(h, models.Point{X: 1, Y: 2})
	want := models.Point{X: 11, Y: -3}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestInvert_RoundTrip(t *testing.T) {
	// Scale + translation + mild perspective.
	h := models.Homography{2, 0.1, 30, -0.05, 1.8, -12, 0.0002, 0.0001, 1}

	inv, err := Invert(h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pts := []models.Point{{X: 0, Y: 0}, {X: 100, Y: 40}, {X: -20, Y: 350}}
	for _, p := range pts {
		back := Apply(inv, Apply(h, p))
		if math.Abs(back.X-p.X) > 1e-6 || math.Abs(back.Y-p.Y) > 1e-6 {
			t.Errorf("round trip moved %v to %v", p, back)
		}
	}
}

func TestInvert_Singular(t *testing.T) {
	var zero models.Homography
	if _, err := Invert(zero); err != ErrSingularHomography {
		t.Errorf("expected ErrSingularHomography, got %v", err)
	}
}

func TestPointInQuad(t *testing.T) {
	q := RectQuad(10, 10, 50, 50)

	tests := []struct {
		name string
		p    models.Point
		want bool
	}{
		{"center", models.Point{X: 30, Y: 30}, true},
		{"outside top-left", models.Point{X: 5, Y: 5}, false},
		{"on edge", models.Point{X: 10, Y: 30}, true},
		{"on corner", models.Point{X: 50, Y: 50}, true},
		{"outside right", models.Point{X: 51, Y: 30}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointInQuad(tt.p, q); got != tt.want {
				t.Errorf("PointInQuad(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestPointInQuad_NonAxisAligned(t *testing.T) {
	// Diamond centered on (50, 50).
	q := models.Quad{
		{X: 50, Y: 30},
		{X: 70, Y: 50},
		{X: 50, Y: 70},
		{X: 30, Y: 50},
	}

	if !PointInQuad(models.Point{X: 50, Y: 50}, q) {
		t.Error("center of diamond should be inside")
	}
	// Inside the bounding rect but outside the diamond.
	if PointInQuad(models.Point{X: 32, Y: 32}, q) {
		t.Error("corner of bounding rect should be outside diamond")
	}
}

func TestQuadCenter(t *testing.T) {
	c := QuadCenter(RectQuad(0, 0, 100, 40))
	if c.X != 50 || c.Y != 20 {
		t.Errorf("expected (50, 20), got %v", c)
	}
}

func TestDistance(t *testing.T) {
	d := Distance(models.Point{X: 0, Y: 0}, models.Point{X: 3, Y: 4})
	if d != 5 {
		t.Errorf("expected 5, got %v", d)
	}
}
