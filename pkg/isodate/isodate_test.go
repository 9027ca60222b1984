package isodate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			name: "positive offset",
			in:   time.Date(2008, 3, 1, 13, 0, 0, 0, time.FixedZone("", 3600)),
			want: "2008-03-01T13:00:00+01:00",
		},
		{
			name: "negative half hour offset",
			in:   time.Date(2021, 12, 31, 23, 59, 59, 0, time.FixedZone("", -(3*3600 + 30*60))),
			want: "2021-12-31T23:59:59-03:30",
		},
		{
			name: "utc is numeric",
			in:   time.Date(2014, 1, 2, 3, 4, 5, 0, time.UTC),
			want: "2014-01-02T03:04:05+00:00",
		},
		{
			name: "sub-second precision dropped",
			in:   time.Date(2014, 1, 2, 3, 4, 5, 999_000_000, time.UTC),
			want: "2014-01-02T03:04:05+00:00",
		},
		{
			name: "zero time is absent",
			in:   time.Time{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in))
		})
	}
}

func TestFormatPtr(t *testing.T) {
	assert.Nil(t, FormatPtr(nil))
	assert.Nil(t, FormatPtr(&time.Time{}))

	ts := time.Date(2008, 3, 1, 13, 0, 0, 0, time.UTC)
	got := FormatPtr(&ts)
	require.NotNil(t, got)
	assert.Equal(t, "2008-03-01T13:00:00+00:00", *got)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{
			name: "offset form",
			in:   "2008-03-01T13:00:00+01:00",
			want: time.Date(2008, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "negative offset",
			in:   "2008-03-01T13:00:00-05:00",
			want: time.Date(2008, 3, 1, 18, 0, 0, 0, time.UTC),
		},
		{
			name: "zulu",
			in:   "2008-03-01T13:00:00Z",
			want: time.Date(2008, 3, 1, 13, 0, 0, 0, time.UTC),
		},
		{name: "not a date", in: "not-a-date", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "offset without colon", in: "2008-03-01T13:00:00+0100", wantErr: true},
		{name: "fractional seconds", in: "2008-03-01T13:00:00.123Z", wantErr: true},
		{name: "fractional seconds with offset", in: "2008-03-01T13:00:00.1+01:00", wantErr: true},
		{name: "single digit hour", in: "2008-03-01T1:00:00+01:00", wantErr: true},
		{name: "two digit year", in: "08-03-01T13:00:00+01:00", wantErr: true},
		{name: "invalid month", in: "2008-13-01T13:00:00+01:00", wantErr: true},
		{name: "invalid day", in: "2008-02-30T13:00:00Z", wantErr: true},
		{name: "lowercase z", in: "2008-03-01T13:00:00z", wantErr: true},
		{name: "space separator", in: "2008-03-01 13:00:00+01:00", wantErr: true},
		{name: "date only", in: "2008-03-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedTimestamp))
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParse_ZuluEqualsZeroOffset(t *testing.T) {
	z, err := Parse("2008-03-01T13:00:00Z")
	require.NoError(t, err)

	o, err := Parse("2008-03-01T13:00:00+00:00")
	require.NoError(t, err)

	assert.True(t, z.Equal(o))
}

func TestRoundTrip(t *testing.T) {
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("", 3600),
		time.FixedZone("", -7*3600),
		time.FixedZone("", 5*3600+45*60),
		time.FixedZone("", -(9*3600 + 30*60)),
	}
	instants := []time.Time{
		time.Date(2008, 3, 1, 13, 0, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
	}

	for _, loc := range zones {
		for _, instant := range instants {
			x := instant.In(loc)
			got, err := Parse(Format(x))
			require.NoError(t, err)
			assert.True(t, x.Equal(got), "round trip of %s gave %s", Format(x), Format(got))
			_, wantOffset := x.Zone()
			_, gotOffset := got.Zone()
			assert.Equal(t, wantOffset, gotOffset)
		}
	}
}

func TestRoundTrip_CanonicalString(t *testing.T) {
	x := MustParse("2008-03-01T13:00:00+01:00")
	assert.Equal(t, "2008-03-01T13:00:00+01:00", Format(x))
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("garbage") })
}
