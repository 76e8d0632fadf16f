package profile

import "github.com/ferrous-data/condition.report/internal/frame"

// wndsTable is the ride quality monitoring unit: carbody stability indices,
// band-limited accelerations and the dominant vertical vibration component,
// measured at both car ends, plus sway and hunting flag bits.
func wndsTable() Table {
	return Table{
		Name:       "WNDS",
		FrameSize:  255,
		TimeOffset: 23,
		Speed:      trainSpeed,
		Channels: []Channel{
			event("comm_fault", bit(87, 0x30)),
			event("sensor_check_fault", bit(90, 0x03)),
			event("sensor_realtime_fault", bit(90, 0x0C)),
			event("ride_lat_warn", bit(88, 0x01)),
			event("ride_lat_alarm", bit(88, 0x10)),
			event("ride_vert_warn", bit(88, 0x02)),
			event("ride_vert_alarm", bit(88, 0x20)),
			event("sway_warn", bit(89, 0x02)),
			event("sway_alarm", bit(89, 0x20)),
			event("hunting_warn", bit(89, 0x01)),
			event("hunting_alarm", bit(89, 0x10)),

			// Sperling ride indices per car end.
			maxU16("ride_index_lat_1", 105, 0.01),
			maxU16("ride_index_lat_2", 107, 0.01),
			maxU16("ride_index_vert_1", 109, 0.01),
			maxU16("ride_index_vert_2", 111, 0.01),

			// Band-limited carbody accelerations, g.
			maxU8("peak_02_3hz_lat_1", 93, 0.001),
			maxU8("peak_02_3hz_lat_2", 94, 0.001),
			maxU8("rms_5_13hz_lat_1", 95, 0.001),
			maxU8("rms_5_13hz_lat_2", 96, 0.001),
			maxU8("rms_5_13hz_vert_1", 97, 0.001),
			maxU8("rms_5_13hz_vert_2", 98, 0.001),

			// Dominant vertical vibration: amplitude with its frequency.
			{
				Name:  "dominant_vib_vert_1",
				Kind:  MaxFreqSpeed,
				Value: frame.Field{Offset: 99, Width: 1, Scale: 0.001},
				Freq:  frame.Field{Offset: 101, Width: 2, Scale: 0.1},
			},
			{
				Name:  "dominant_vib_vert_2",
				Kind:  MaxFreqSpeed,
				Value: frame.Field{Offset: 100, Width: 1, Scale: 0.001},
				Freq:  frame.Field{Offset: 103, Width: 2, Scale: 0.1},
			},

			// Full-band acceleration peak and RMS, g.
			maxU16("accel_max_lat_1", 117, 0.001),
			maxU16("accel_max_lat_2", 119, 0.001),
			maxU16("accel_rms_lat_1", 129, 0.001),
			maxU16("accel_rms_lat_2", 131, 0.001),
			maxU16("accel_max_vert_1", 121, 0.001),
			maxU16("accel_max_vert_2", 123, 0.001),
			maxU16("accel_rms_vert_1", 133, 0.001),
			maxU16("accel_rms_vert_2", 135, 0.001),
		},
	}
}
