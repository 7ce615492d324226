package engine

import "testing"

func TestSampleContactsPerDayReturnsRequestedCount(t *testing.T) {
	ctx := newTestContext(10, []int{40}, 0, 10, 10)
	out := ctx.Sample("contacts_per_day", 40)
	if len(out) != sampleIterations {
		t.Fatalf("Sample returned %d values, want %d", len(out), sampleIterations)
	}
}

func TestSampleInfectiousnessOverTimeCoversFullRange(t *testing.T) {
	ctx := newTestContext(11, []int{40}, 0, 10, 10)
	out := ctx.Sample("infectiousness_over_time", 0)
	if len(out) != 200 {
		t.Fatalf("Sample(infectiousness_over_time) returned %d values, want 200", len(out))
	}
}

func TestSampleUnknownKindReturnsNil(t *testing.T) {
	ctx := newTestContext(12, []int{40}, 0, 10, 10)
	if out := ctx.Sample("not_a_real_distribution", 0); out != nil {
		t.Fatalf("Sample with unknown kind = %v, want nil", out)
	}
}
