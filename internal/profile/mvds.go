package profile

import "fmt"

// mvdsTable is the traction motor vibration and temperature unit: five
// vibration metrics per bearing at the drive and non-drive ends of four
// motors, bearing and stator temperatures, and a sensor supply voltage
// check. This family alone reports values rounded to three decimals, the
// train speed included.
func mvdsTable() Table {
	t := Table{
		Name:       "MVDS",
		FrameSize:  255,
		TimeOffset: 23,
		Speed:      trainSpeed,
		Round3:     true,
		Channels: []Channel{
			event("comm_fault", bit(87, 0x30)),
			event("sensor_fault", anyOf(88)...),
			event("temp_alert_1", anyOf(137, 148, 149, 150, 151)...),
			event("temp_alert_2", anyOf(138, 140, 141, 142, 143)...),
			event("temp_alert_3", anyOf(139, 144, 145, 146, 147)...),
			{
				Name: "supply_fault",
				Kind: BandViolation,
				Band: Band{Offset: 184, Count: 8, Scale: 0.1, Lo: 8, Hi: 14},
			},
		},
	}

	// Vibration metrics, raw units. Each motor owns a 12 byte block at
	// 89+12(m-1): six drive end bytes then six non-drive end bytes, with
	// the second byte of each half reserved. Drive end channels of all
	// four motors come first in the output order.
	metricBytes := []int{0, 2, 3, 4, 5}
	for _, end := range []struct {
		name string
		off  int
	}{{"de", 0}, {"nde", 6}} {
		for motor := 0; motor < 4; motor++ {
			block := 89 + 12*motor + end.off
			for i, b := range metricBytes {
				t.Channels = append(t.Channels,
					maxU8(fmt.Sprintf("vib%d_%s_m%d", i+1, end.name, motor+1), block+b, 1))
			}
		}
	}

	// Bearing temperatures, 0.1 degC, drive and non-drive end interleaved
	// by offset but grouped by end in the output order.
	for i, end := range []string{"de", "nde"} {
		for motor := 0; motor < 4; motor++ {
			t.Channels = append(t.Channels,
				maxU16(fmt.Sprintf("brg_temp_%s_m%d", end, motor+1), 152+2*(2*motor+i), 0.1))
		}
	}

	// Stator winding temperatures, two points per motor, same interleave.
	for i := 0; i < 2; i++ {
		for motor := 0; motor < 4; motor++ {
			t.Channels = append(t.Channels,
				maxU16(fmt.Sprintf("stator%d_temp_m%d", i+1, motor+1), 168+2*(2*motor+i), 0.1))
		}
	}
	return t
}
