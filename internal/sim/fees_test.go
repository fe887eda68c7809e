package sim

import (
	"math"
	"testing"
)

func TestFeeSchedule_Fee(t *testing.T) {
	tests := []struct {
		name        string
		schedule    FeeSchedule
		grossProfit float64
		want        float64
	}{
		{
			name:        "seven percent of ten dollar profit",
			schedule:    DefaultFeeSchedule(),
			grossProfit: 10.0,
			want:        0.70,
		},
		{
			name:        "zero profit pays nothing",
			schedule:    DefaultFeeSchedule(),
			grossProfit: 0,
			want:        0,
		},
		{
			name:        "losing trade pays nothing",
			schedule:    DefaultFeeSchedule(),
			grossProfit: -25.0,
			want:        0,
		},
		{
			name:        "min fee floor applies",
			schedule:    FeeSchedule{ProfitFeeRate: 0.07, MinFee: 1.0},
			grossProfit: 2.0,
			want:        1.0,
		},
		{
			name:        "max fee cap applies",
			schedule:    FeeSchedule{ProfitFeeRate: 0.07, MaxFee: 5.0},
			grossProfit: 1000.0,
			want:        5.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.schedule.Fee(tt.grossProfit)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Fee(%v) = %v, want %v", tt.grossProfit, got, tt.want)
			}
		})
	}
}

func TestFeeSchedule_NetNeverExceedsGross(t *testing.T) {
	schedule := DefaultFeeSchedule()
	for gross := 0.5; gross < 100; gross += 7.3 {
		fee := schedule.Fee(gross)
		if fee < 0 {
			t.Fatalf("negative fee %v for gross %v", fee, gross)
		}
		if gross-fee > gross {
			t.Fatalf("net %v exceeds gross %v", gross-fee, gross)
		}
	}
}
