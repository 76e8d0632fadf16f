package frame

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// testFrame builds a minimum-size frame with the 6-byte timestamp placed at
// the default time offset.
func testFrame(stamp [6]byte) []byte {
	data := make([]byte, MIN_FRAME_SIZE)
	copy(data[DEFAULT_TIME_OFFSET:], stamp[:])
	return data
}

func TestDecodeTime(t *testing.T) {
	data := testFrame([6]byte{25, 3, 15, 10, 30, 0})

	got, err := DecodeTime(data, DEFAULT_TIME_OFFSET, time.UTC)
	if err != nil {
		t.Fatalf("DecodeTime failed: %v", err)
	}

	want := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if got.Location() != time.UTC {
		t.Errorf("Expected UTC location, got %s", got.Location())
	}
}

func TestDecodeTimeLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	data := testFrame([6]byte{25, 3, 15, 10, 30, 0})
	got, err := DecodeTime(data, DEFAULT_TIME_OFFSET, loc)
	if err != nil {
		t.Fatalf("DecodeTime failed: %v", err)
	}

	// Same wall-clock reading, interpreted eight hours ahead of UTC.
	want := time.Date(2025, 3, 15, 10, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if got.Unix() != want.Unix() {
		t.Errorf("Expected epoch %d, got %d", want.Unix(), got.Unix())
	}
}

func TestDecodeTimeRejectsBadCalendar(t *testing.T) {
	cases := []struct {
		name  string
		stamp [6]byte
	}{
		{"zero_month", [6]byte{25, 0, 15, 10, 30, 0}},
		{"month_13", [6]byte{25, 13, 15, 10, 30, 0}},
		{"zero_day", [6]byte{25, 3, 0, 10, 30, 0}},
		{"day_32", [6]byte{25, 1, 32, 10, 30, 0}},
		{"april_31", [6]byte{25, 4, 31, 10, 30, 0}},
		{"feb_29_common_year", [6]byte{25, 2, 29, 10, 30, 0}},
		{"hour_24", [6]byte{25, 3, 15, 24, 0, 0}},
		{"minute_60", [6]byte{25, 3, 15, 10, 60, 0}},
		{"second_61", [6]byte{25, 3, 15, 10, 30, 61}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeTime(testFrame(tc.stamp), DEFAULT_TIME_OFFSET, time.UTC)
			if !errors.Is(err, ErrMalformedTimestamp) {
				t.Errorf("Expected ErrMalformedTimestamp, got %v", err)
			}
		})
	}
}

func TestDecodeTimeLeapDay(t *testing.T) {
	data := testFrame([6]byte{24, 2, 29, 0, 0, 0})

	got, err := DecodeTime(data, DEFAULT_TIME_OFFSET, time.UTC)
	if err != nil {
		t.Fatalf("2024-02-29 should decode: %v", err)
	}
	if got.Day() != 29 || got.Month() != time.February {
		t.Errorf("Expected Feb 29, got %s", got)
	}
}

func TestDecodeTimeSanityRange(t *testing.T) {
	for _, yearByte := range []byte{101, 200, 255} {
		data := testFrame([6]byte{yearByte, 3, 15, 10, 30, 0})
		_, err := DecodeTime(data, DEFAULT_TIME_OFFSET, time.UTC)
		if !errors.Is(err, ErrTimestampRange) {
			t.Errorf("year byte %d: expected ErrTimestampRange, got %v", yearByte, err)
		}
	}

	// Year 2100 is the inclusive upper bound.
	data := testFrame([6]byte{100, 3, 15, 10, 30, 0})
	if _, err := DecodeTime(data, DEFAULT_TIME_OFFSET, time.UTC); err != nil {
		t.Errorf("year 2100 should decode: %v", err)
	}
}

func TestDecodeTimeShortFrame(t *testing.T) {
	data := make([]byte, 100)
	_, err := DecodeTime(data, DEFAULT_TIME_OFFSET, time.UTC)
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("Expected ErrShortFrame, got %v", err)
	}
}

func TestDecodeTimeOffsetPastFrame(t *testing.T) {
	data := make([]byte, MIN_FRAME_SIZE)
	_, err := DecodeTime(data, MIN_FRAME_SIZE-3, time.UTC)
	if !errors.Is(err, ErrMalformedTimestamp) {
		t.Errorf("Expected ErrMalformedTimestamp, got %v", err)
	}
}

func TestFieldRead(t *testing.T) {
	data := make([]byte, MIN_FRAME_SIZE)
	data[90] = 200
	binary.BigEndian.PutUint16(data[78:80], 9850)

	cases := []struct {
		name  string
		field Field
		want  float64
	}{
		{"u8_milli", Field{Offset: 90, Width: 1, Scale: 0.001}, 0.2},
		{"u8_raw", Field{Offset: 90, Width: 1, Scale: 1}, 200},
		{"u16_speed", Field{Offset: 78, Width: 2, Scale: 0.01}, 98.5},
		{"u16_tenth", Field{Offset: 78, Width: 2, Scale: 0.1}, 985},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.field.Read(data)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFieldReadBounds(t *testing.T) {
	data := make([]byte, 10)

	if _, err := (Field{Offset: 10, Width: 1, Scale: 1}).Read(data); err == nil {
		t.Error("Expected error for offset past frame end")
	}
	if _, err := (Field{Offset: 9, Width: 2, Scale: 1}).Read(data); err == nil {
		t.Error("Expected error for two byte field at last byte")
	}
	if _, err := (Field{Offset: -1, Width: 1, Scale: 1}).Read(data); err == nil {
		t.Error("Expected error for negative offset")
	}
	if _, err := (Field{Offset: 0, Width: 4, Scale: 1}).Read(data); err == nil {
		t.Error("Expected error for unsupported width")
	}
}
