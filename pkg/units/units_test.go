package units_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/multisum/pkg/units"
)

func TestBinarySizeConstants(t *testing.T) {
	t.Parallel()

	assert.EqualValues(t, 1<<10, units.KiB)
	assert.EqualValues(t, 1<<20, units.MiB)
	assert.EqualValues(t, 1<<30, units.GiB)
	assert.EqualValues(t, 1024*units.KiB, units.MiB)
}
