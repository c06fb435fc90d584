package render

import (
	"image"
	"image/color"
	"testing"

	"watvision-service/internal/geometry"
	"watvision-service/internal/models"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{128, 128, 128, 255})
		}
	}
	return img
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	img := testImage(16, 8)

	encoded, err := EncodePNGBase64(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := DecodeBase64Image(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decoded.Bounds().Dx() != 16 || decoded.Bounds().Dy() != 8 {
		t.Errorf("round trip changed dimensions: %v", decoded.Bounds())
	}
}

func TestDecodeBase64Image_DataURLPrefix(t *testing.T) {
	encoded, err := EncodePNGBase64(testImage(4, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := DecodeBase64Image("data:image/png;base64," + encoded); err != nil {
		t.Errorf("expected data URL prefix to be tolerated, got %v", err)
	}
}

func TestDecodeBase64Image_Invalid(t *testing.T) {
	if _, err := DecodeBase64Image("!!not base64!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := DecodeBase64Image("aGVsbG8="); err == nil {
		t.Error("expected error for non-image bytes")
	}
}

func TestAnnotate_DoesNotMutateInputs(t *testing.T) {
	live := testImage(100, 100)
	source := testImage(80, 80)

	finger := models.Point{X: 50, Y: 50}
	ov := Overlay{
		Homography:   geometry.Identity(),
		Valid:        true,
		SourceBounds: source.Bounds(),
		TextElements: []models.TextElement{
			{ID: 0, Text: "ok", BoundingBox: geometry.RectQuad(10, 10, 40, 30)},
		},
		HitIndex:     0,
		FingerLive:   &finger,
		FingerSource: &finger,
	}

	liveOut, sourceOut := Annotate(live, source, ov)

	if liveOut == nil || sourceOut == nil {
		t.Fatal("expected annotated copies")
	}
	// The original live frame must be untouched.
	if got := live.RGBAAt(50, 50); got != (color.RGBA{128, 128, 128, 255}) {
		t.Errorf("input live frame was mutated: %v", got)
	}
	// The copy must carry the fingertip marker.
	if got := liveOut.RGBAAt(50, 50); got == (color.RGBA{128, 128, 128, 255}) {
		t.Error("expected fingertip marker on annotated live frame")
	}
}

func TestAnnotate_InvalidAlignmentSkipsBoxes(t *testing.T) {
	live := testImage(60, 60)
	source := testImage(60, 60)

	ov := Overlay{
		Valid:        false,
		SourceBounds: source.Bounds(),
		TextElements: []models.TextElement{
			{ID: 0, Text: "x", BoundingBox: geometry.RectQuad(5, 5, 20, 20)},
		},
		HitIndex: -1,
	}

	_, sourceOut := Annotate(live, source, ov)

	// No boxes drawn when the alignment is invalid.
	if got := sourceOut.RGBAAt(5, 5); got != (color.RGBA{128, 128, 128, 255}) {
		t.Errorf("expected untouched source frame, got %v", got)
	}
}
