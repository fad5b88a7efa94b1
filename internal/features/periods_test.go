package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGranularity(t *testing.T) {
	for _, s := range []string{"day", "week", "month"} {
		g, err := ParseGranularity(s)
		require.NoError(t, err)
		assert.Equal(t, Granularity(s), g)
	}

	_, err := ParseGranularity("quarter")
	assert.Error(t, err)
}

func TestBucketStart(t *testing.T) {
	wednesday := time.Date(2017, 1, 4, 15, 30, 0, 0, time.UTC)

	assert.Equal(t,
		time.Date(2017, 1, 4, 0, 0, 0, 0, time.UTC),
		GranularityDay.BucketStart(wednesday))

	// Weeks start Monday.
	assert.Equal(t,
		time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC),
		GranularityWeek.BucketStart(wednesday))

	monday := time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, GranularityWeek.BucketStart(monday))

	sunday := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t,
		time.Date(2016, 12, 26, 0, 0, 0, 0, time.UTC),
		GranularityWeek.BucketStart(sunday))

	assert.Equal(t,
		time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		GranularityMonth.BucketStart(wednesday))
}

func TestNext(t *testing.T) {
	p := time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, p.AddDate(0, 0, 1), GranularityDay.Next(p))
	assert.Equal(t, p.AddDate(0, 0, 7), GranularityWeek.Next(p))
	assert.Equal(t, time.Date(2017, 2, 2, 0, 0, 0, 0, time.UTC), GranularityMonth.Next(p))
}
