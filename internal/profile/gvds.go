package profile

import "fmt"

// gvdsTable is the gearbox vibration and temperature unit: sixteen vibration
// metrics and eight temperature points per gearbox, four gearboxes per car,
// three temperature alert levels and a sensor supply voltage check. Metric
// groups keep their ICD row numbering; the source document carries no
// descriptive names for them.
func gvdsTable() Table {
	t := Table{
		Name:       "GVDS",
		FrameSize:  384,
		TimeOffset: 23,
		Speed:      trainSpeed,
		Channels: []Channel{
			event("comm_fault", bit(87, 0x30)),
			event("sensor_fault", anyOf(88, 89)...),
			event("temp_alert_1", anyOf(218, 221, 232, 233, 234, 235, 238, 247, 248, 249, 250, 253)...),
			event("temp_alert_2", anyOf(219, 222, 224, 225, 226, 227, 236, 239, 240, 241, 242, 251)...),
			event("temp_alert_3", anyOf(220, 223, 228, 229, 230, 231, 237, 243, 244, 245, 246, 252)...),
			{
				Name: "supply_fault",
				Kind: BandViolation,
				Band: Band{Offset: 286, Count: 16, Scale: 0.1, Lo: 8, Hi: 14},
			},
		},
	}

	// Vibration metrics, raw units, one byte per gearbox. Base offsets
	// follow the ICD output order, which walks the even rows first.
	vibBases := []int{92, 104, 116, 128, 140, 152, 164, 176, 98, 110, 122, 134, 146, 158, 170, 182}
	for i, base := range vibBases {
		for pos := 0; pos < 4; pos++ {
			t.Channels = append(t.Channels,
				maxU8(fmt.Sprintf("vib%02d_gb%d", i+1, pos+1), base+pos, 1))
		}
	}

	// Temperature points, 0.1 degC, two bytes per gearbox. The ICD orders
	// the groups interleaved rather than by ascending offset.
	tempBases := []int{186, 202, 194, 210, 254, 270, 262, 278}
	for i, base := range tempBases {
		for pos := 0; pos < 4; pos++ {
			t.Channels = append(t.Channels,
				maxU16(fmt.Sprintf("temp%d_gb%d", i+1, pos+1), base+2*pos, 0.1))
		}
	}
	return t
}
