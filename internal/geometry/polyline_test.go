package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-console/internal/domain"
)

// mumbaiRoute is [(19.0760, 72.8777), (19.0800, 72.8800)] with precision header 5.
const mumbaiRoute = "D_xlsBs|x{L_XkM"

func TestDecode_KnownPolyline(t *testing.T) {
	points, err := Decode(mumbaiRoute)
	require.NoError(t, err)

	assert.Equal(t, []domain.Coordinates{
		{Lat: 19.0760, Lon: 72.8777},
		{Lat: 19.0800, Lon: 72.8800},
	}, points)
}

func TestDecode_NegativeCoordinates(t *testing.T) {
	points, err := Decode("D`yumEwt{y[agLgbQ")
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.InDelta(t, -33.86785, points[0].Lat, 1e-9)
	assert.InDelta(t, 151.20732, points[0].Lon, 1e-9)
	assert.InDelta(t, -33.8, points[1].Lat, 1e-9)
	assert.InDelta(t, 151.3, points[1].Lon, 1e-9)
}

func TestDecode_ThirdDimensionConsumed(t *testing.T) {
	points, err := Decode("d@_xlsBs|x{L_c`|@_XkM_seK")
	require.NoError(t, err)

	assert.Equal(t, []domain.Coordinates{
		{Lat: 19.0760, Lon: 72.8777},
		{Lat: 19.0800, Lon: 72.8800},
	}, points)
}

func TestDecode_HeaderOnly(t *testing.T) {
	points, err := Decode("D")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty input", "", ErrTruncated},
		{"ends mid-value", "D_xlsBs|x{L_Xk", ErrTruncated},
		{"latitude without longitude", "D_xlsB", ErrTruncated},
		{"elevation missing", "d@_xlsBs|x{L", ErrTruncated},
		{"character below alphabet", "D_xl sB", ErrInvalidChar},
		{"character above alphabet", "D\x7f", ErrInvalidChar},
		{"value wider than 64 bits", "D" + "~~~~~~~~~~~~~~~~?", ErrOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := Decode(tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, points)
		})
	}
}

func TestDecodeHeader(t *testing.T) {
	h, err := DecodeHeader("d@_xlsB")
	require.NoError(t, err)
	assert.Equal(t, Header{Precision: 5, ThirdDim: 2, ThirdDimPrecision: 0}, h)
	assert.True(t, h.HasThirdDim())

	h, err = DecodeHeader(mumbaiRoute)
	require.NoError(t, err)
	assert.False(t, h.HasThirdDim())
}

func TestEncode_InverseOfDecode(t *testing.T) {
	assert.Equal(t, mumbaiRoute, Encode([]domain.Coordinates{
		{Lat: 19.0760, Lon: 72.8777},
		{Lat: 19.0800, Lon: 72.8800},
	}))

	path := []domain.Coordinates{
		{Lat: 28.61394, Lon: 77.20902},
		{Lat: -12.04637, Lon: -77.04279},
		{Lat: 0, Lon: 0},
		{Lat: 89.99999, Lon: -179.99999},
	}
	decoded, err := Decode(Encode(path))
	require.NoError(t, err)
	require.Len(t, decoded, len(path))
	for i := range path {
		assert.InDelta(t, path[i].Lat, decoded[i].Lat, 1e-9)
		assert.InDelta(t, path[i].Lon, decoded[i].Lon, 1e-9)
	}
}
