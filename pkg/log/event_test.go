package log

import "testing"

func TestLayerString(t *testing.T) {
	tests := []struct {
		layer Layer
		want  string
	}{
		{LayerHAL, "HAL"},
		{LayerAccessor, "ACCESSOR"},
		{LayerSession, "SESSION"},
		{Layer(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.layer.String()
		if got != tt.want {
			t.Errorf("Layer(%d).String() = %q, want %q", tt.layer, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryState, "STATE"},
		{CategoryAccess, "ACCESS"},
		{CategoryCapture, "CAPTURE"},
		{CategoryError, "ERROR"},
		{Category(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.cat.String()
		if got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.cat, got, tt.want)
		}

		parsed, ok := ParseCategory(tt.want)
		if tt.want == "UNKNOWN" {
			if ok {
				t.Errorf("ParseCategory(%q) should fail", tt.want)
			}
			continue
		}
		if !ok || parsed != tt.cat {
			t.Errorf("ParseCategory(%q) = %v, %v; want %v", tt.want, parsed, ok, tt.cat)
		}
	}
}

func TestAccessOpString(t *testing.T) {
	if AccessRead.String() != "READ" || AccessWrite.String() != "WRITE" || AccessOp(7).String() != "UNKNOWN" {
		t.Error("unexpected AccessOp names")
	}
}

func TestCaptureKindString(t *testing.T) {
	if CaptureRepeating.String() != "REPEATING" || CaptureSingle.String() != "SINGLE" || CaptureKind(7).String() != "UNKNOWN" {
		t.Error("unexpected CaptureKind names")
	}
}
