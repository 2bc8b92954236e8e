package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountryNameModifier(t *testing.T) {
	source := ParseSource(`{"alpha2": "PE", "alpha3": "PER", "name": "Peru", "bogus": "Atlantis"}`)

	for _, path := range []string{"alpha2", "alpha3", "name"} {
		value, ok := source.StringForPath(path + "|@countryName")
		assert.True(t, ok, path)
		assert.Equal(t, "Peru", value, path)
	}

	value, _ := source.StringForPath("bogus|@countryName")
	assert.Equal(t, "", value, "unknown countries map to empty")
}

func TestPhoneModifier(t *testing.T) {
	source := ParseSource(`{"prefixed": "+51987654321", "national": "987654321", "garbage": "not a phone"}`)

	value, ok := source.StringForPath("prefixed|@phone:51")
	assert.True(t, ok)
	assert.Equal(t, "+51987654321", value, "numbers already carrying the prefix pass through")

	value, ok = source.StringForPath("national|@phone:51")
	assert.True(t, ok)
	assert.Equal(t, "+51987654321", value, "national numbers gain the country code")

	value, _ = source.StringForPath("garbage|@phone:51")
	assert.Equal(t, "", value)
}
