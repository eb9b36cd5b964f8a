package recordstatus_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
)

func TestParseTimeCounting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []recordstatus.TimeCounting
	}{
		{in: "", want: []recordstatus.TimeCounting{}},
		{in: ",,", want: []recordstatus.TimeCounting{}},
		{in: ",", want: []recordstatus.TimeCounting{}},
		{in: "1", want: []recordstatus.TimeCounting{1}},
		{in: ",1,", want: []recordstatus.TimeCounting{1}},
		{in: ",1,2,", want: []recordstatus.TimeCounting{1, 2}},
		{in: "1,2,3", want: []recordstatus.TimeCounting{1, 2, 3}},
		{in: ", 3 ,", want: []recordstatus.TimeCounting{3}},
	}
	for _, tt := range tests {
		got, err := recordstatus.ParseTimeCounting(tt.in)
		if err != nil {
			t.Errorf("ParseTimeCounting(%q) error = %v", tt.in, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseTimeCounting(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestParseTimeCounting_IllegalValue(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"a", ",1,x,", "1,,2", ",1.5,", "reaction"} {
		_, err := recordstatus.ParseTimeCounting(in)
		if !errors.Is(err, recordstatus.ErrIllegalValue) {
			t.Errorf("ParseTimeCounting(%q) error = %v; want ErrIllegalValue", in, err)
		}
	}
}

func TestFormatTimeCounting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []recordstatus.TimeCounting
		want string
	}{
		{in: nil, want: ""},
		{in: []recordstatus.TimeCounting{}, want: ""},
		{in: []recordstatus.TimeCounting{recordstatus.TimeCountingReaction}, want: ",1,"},
		{in: []recordstatus.TimeCounting{recordstatus.TimeCountingIdle, recordstatus.TimeCountingReaction}, want: ",3,1,"},
		{in: []recordstatus.TimeCounting{1, 2, 3}, want: ",1,2,3,"},
	}
	for _, tt := range tests {
		got, err := recordstatus.FormatTimeCounting(tt.in)
		if err != nil {
			t.Errorf("FormatTimeCounting(%v) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("FormatTimeCounting(%v) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimeCounting_Rejects(t *testing.T) {
	t.Parallel()

	for _, in := range [][]recordstatus.TimeCounting{
		{0},
		{4},
		{1, -1},
		{1, 2, 3, 1}, // wider than the column
	} {
		if _, err := recordstatus.FormatTimeCounting(in); !errors.Is(err, recordstatus.ErrIllegalValue) {
			t.Errorf("FormatTimeCounting(%v) error = %v; want ErrIllegalValue", in, err)
		}
	}
}

// Formatting then parsing returns the original categories.
func TestTimeCounting_FormatParse(t *testing.T) {
	t.Parallel()

	in := []recordstatus.TimeCounting{recordstatus.TimeCountingResolve, recordstatus.TimeCountingIdle}
	encoded, err := recordstatus.FormatTimeCounting(in)
	if err != nil {
		t.Fatalf("FormatTimeCounting() error = %v", err)
	}
	out, err := recordstatus.ParseTimeCounting(encoded)
	if err != nil {
		t.Fatalf("ParseTimeCounting(%q) error = %v", encoded, err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("mismatch (-in +out):\n%s", diff)
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()

	want := map[recordstatus.RecordState]string{
		0: "LBL_RECORD_STATE_NO_CONCERN",
		1: "LBL_RECORD_STATE_OPEN",
		2: "LBL_RECORD_STATE_CLOSED",
	}
	if diff := cmp.Diff(want, recordstatus.Labels()); diff != "" {
		t.Errorf("Labels() mismatch (-want +got):\n%s", diff)
	}
	if recordstatus.RecordState(3).Valid() {
		t.Error("RecordState(3).Valid() = true; want false")
	}
	if got := recordstatus.TimeCountingIdle.Label(); got != "LBL_TIME_COUNTING_IDLE" {
		t.Errorf("TimeCountingIdle.Label() = %q", got)
	}
}
