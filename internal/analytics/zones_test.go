package analytics

import "testing"

func TestKarvonenZones(t *testing.T) {
	zones := KarvonenZones(ZoneParams{HRMax: 190, HRResting: 60})

	if len(zones) != 5 {
		t.Fatalf("expected 5 zones, got %d", len(zones))
	}
	if zones[0].Min != 60 {
		t.Fatalf("first zone should start at resting hr, got %d", zones[0].Min)
	}
	if zones[4].Max != 190 {
		t.Fatalf("last zone should end at max hr, got %d", zones[4].Max)
	}

	// 60% of the 130 bpm reserve above resting
	if zones[0].Max != 138 {
		t.Fatalf("unexpected recovery ceiling %d", zones[0].Max)
	}
	for i := 1; i < len(zones); i++ {
		if zones[i].Min != zones[i-1].Max {
			t.Fatalf("zone %d does not start where zone %d ends", i, i-1)
		}
	}
}

func TestZoneIndex(t *testing.T) {
	zones := KarvonenZones(ZoneParams{HRMax: 190, HRResting: 60})

	cases := []struct {
		hr   int
		want int
	}{
		{40, 0},  // below resting spills into the first zone
		{138, 0}, // ceiling belongs to its zone
		{139, 1},
		{160, 2},
		{170, 3},
		{185, 4},
		{210, 4}, // above max spills into the last zone
	}
	for _, c := range cases {
		if got := zoneIndex(zones, c.hr); got != c.want {
			t.Fatalf("hr %d: expected zone %d, got %d", c.hr, c.want, got)
		}
	}
}
