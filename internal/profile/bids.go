package profile

import "fmt"

// bidsTable is the bogie instability detection unit: lateral acceleration
// statistics of the four bogie frames plus two carbody reference points,
// with instability warning and alarm flags.
func bidsTable() Table {
	t := Table{
		Name:       "BIDS",
		FrameSize:  255,
		TimeOffset: 23,
		Speed:      trainSpeed,
		Channels: []Channel{
			event("comm_fault", bit(87, 0x30)),
			event("sensor_check_fault", bit(89, 0x0F)),
			event("sensor_realtime_fault", bit(89, 0xF0)),
			event("mount_fault", bit(90, 0x0F)),
			event("instability_warn", bit(91, 0x0F)),
			event("instability_alarm", bit(91, 0xF0)),
		},
	}

	// Per-bogie lateral acceleration statistics, g, four bogies each.
	groups := []struct {
		name string
		base int
	}{
		{"bogie_lat_min", 92},
		{"bogie_lat_mean", 100},
		{"bogie_lat_max", 108},
		{"bogie_lat_rms", 116},
		{"carbody_lat_max", 124},
		{"carbody_lat_rms", 132},
	}
	for _, g := range groups {
		for pos := 0; pos < 4; pos++ {
			t.Channels = append(t.Channels,
				maxU16(fmt.Sprintf("%s_%d", g.name, pos+1), g.base+2*pos, 0.001))
		}
	}
	return t
}
