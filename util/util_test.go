package util_test

import (
	"fmt"
	"testing"

	"github.com/nuclab/mcfd16/util"
)

func ExampleFloatSliceToTSV() {
	fmt.Printf("%q\n", util.FloatSliceToTSV([]float64{12.5, 1.2, 2000}))
	// Output: "12.5\t1.2\t2000"
}

func ExampleLimiter_Check() {
	l := util.Limiter{Min: 16, Max: 222}
	fmt.Println(l.Check(15), l.Check(16), l.Check(222), l.Check(223))
	// Output: false true true false
}

func TestFloatSliceToTSVEmpty(t *testing.T) {
	out := util.FloatSliceToTSV(nil)
	if out != "" {
		t.Errorf("expected empty string got %q", out)
	}
}

func TestLimiterBounds(t *testing.T) {
	l := util.Limiter{Min: -1, Max: 1}
	for _, f := range []float64{-1, 0, 1} {
		if !l.Check(f) {
			t.Errorf("expected %v to be within [-1, 1]", f)
		}
	}
	for _, f := range []float64{-1.5, 1.01} {
		if l.Check(f) {
			t.Errorf("expected %v to be outside [-1, 1]", f)
		}
	}
}
