package rastreader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBoundingBox(t *testing.T) {
	b, err := ParseBoundingBox("-10,-5,10,5")
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{MinX: -10, MinY: -5, MaxX: 10, MaxY: 5}, b)

	b, err = ParseBoundingBox(" 1.5, 2e3 ,3,4 ")
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{MinX: 1.5, MinY: 2000, MaxX: 3, MaxY: 4}, b)
}

func TestParseBoundingBoxMalformed(t *testing.T) {
	for _, s := range []string{"", "1,2,3", "1,2,3,4,5", "a,b,c,d", "1,,3,4"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseBoundingBox(s)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestBoundingBoxValidate(t *testing.T) {
	assert.NoError(t, DefaultBoundingBox().Validate())
	assert.NoError(t, BoundingBox{MinX: 1, MinY: 1, MaxX: 1, MaxY: 1}.Validate())

	assert.ErrorIs(t, BoundingBox{MinX: 2, MaxX: 1}.Validate(), ErrInvalidParameter)
	assert.ErrorIs(t, BoundingBox{MinY: 2, MaxY: 1}.Validate(), ErrInvalidParameter)

	b, err := ParseBoundingBox("NaN,0,1,1")
	require.NoError(t, err)
	assert.ErrorIs(t, b.Validate(), ErrInvalidParameter)
}

func TestBoundingBoxDefaultAndString(t *testing.T) {
	b := DefaultBoundingBox()
	assert.Equal(t, BoundingBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}, b)
	assert.Equal(t, "-180,-90,180,90", b.String())

	back, err := ParseBoundingBox(b.String())
	require.NoError(t, err)
	assert.Equal(t, b, back)
}

func TestBoundingBoxGeometry(t *testing.T) {
	g := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 5}.Geometry()
	assert.Equal(t, 0.0, g.Min.X)
	assert.Equal(t, 5.0, g.Max.Y)
	assert.InDelta(t, 50.0, g.Area(), 1e-9)
}
