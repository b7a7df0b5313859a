package state

import "testing"

func TestReading_String(t *testing.T) {
	tests := []struct {
		name string
		r    Reading
		want string
	}{
		{"unset", Reading{}, "--"},
		{"integral", NewReading(21), "21"},
		{"fraction", NewReading(23.5), "23.5"},
		{"negative", NewReading(-4.25), "-4.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCount_MarshalJSON(t *testing.T) {
	tests := []struct {
		c    Count
		want string
	}{
		{Count{}, `"--"`},
		{NewCount(0), `0`},
		{NewCount(12), `12`},
	}
	for _, tt := range tests {
		got, err := tt.c.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON() error = %v", err)
		}
		if string(got) != tt.want {
			t.Errorf("MarshalJSON() = %s, want %s", got, tt.want)
		}
	}
}

func TestParseSwitch(t *testing.T) {
	tests := []struct {
		in     string
		want   Switch
		wantOK bool
	}{
		{"on", SwitchOn, true},
		{"OFF", SwitchOff, true},
		{" On ", SwitchOn, true},
		{"toggle", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSwitch(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseSwitch(%q) = %q/%v, want %q/%v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFields_OnlySetValues(t *testing.T) {
	sensor := SensorReading{Humidity: NewReading(40)}
	fields := sensor.Fields()
	if len(fields) != 1 || fields[0].Key != "humidity" || fields[0].Value != 40 {
		t.Errorf("SensorReading.Fields() = %+v", fields)
	}

	security := SecurityStatus{PeopleCount: NewCount(4), MaxPeopleAllowed: NewCount(10)}
	fields = security.Fields()
	if len(fields) != 2 || fields[0].Key != "people_count" || fields[1].Value != 10 {
		t.Errorf("SecurityStatus.Fields() = %+v", fields)
	}
}
