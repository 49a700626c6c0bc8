package conv

import "testing"

func TestToFloat64(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{1.5, 1.5, true},
		{float32(2), 2, true},
		{3, 3, true},
		{int64(4), 4, true},
		{"0.7", 0.7, true},
		{"abc", 0, false},
		{true, 1, true},
		{nil, 0, false},
		{[]int{1}, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToFloat64(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ToFloat64(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParams(t *testing.T) {
	params := map[string]any{"k": 3.0, "w": "0.6", "name": "hybrid"}
	if got := ParamInt(params, "k", 5); got != 3 {
		t.Errorf("ParamInt = %d, want 3", got)
	}
	if got := ParamInt(params, "missing", 5); got != 5 {
		t.Errorf("ParamInt default = %d, want 5", got)
	}
	if got := ParamFloat(params, "w", 0.7); got != 0.6 {
		t.Errorf("ParamFloat = %v, want 0.6", got)
	}
	if got := ParamGet(params, "name", ""); got != "hybrid" {
		t.Errorf("ParamGet = %q", got)
	}
	if got := ParamGet(nil, "name", "x"); got != "x" {
		t.Errorf("ParamGet(nil) = %q", got)
	}
	m := MapToFloat64(map[string]any{"a": 1, "b": "x"})
	if len(m) != 1 || m["a"] != 1 {
		t.Errorf("MapToFloat64 = %v", m)
	}
}
