package boundary

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
)

func ping(t *testing.T, subject id.SubjectID, lat, lng float64) *models.LocationPing {
	t.Helper()
	p, err := models.NewLocationPing(id.EventID{}, subject, lat, lng, time.Now())
	require.NoError(t, err)
	return p
}

func TestEvaluate(t *testing.T) {
	subject := id.SubjectID(uuid.New())
	b, err := models.NewBoundary(subject, 0, 0, 100, time.Now())
	require.NoError(t, err)

	t.Run("no boundary yields UNRESOLVED, never INSIDE", func(t *testing.T) {
		verdict := Evaluate(ping(t, subject, 0, 0), nil)
		assert.Equal(t, models.VerdictUnresolved, verdict)
	})

	t.Run("ping at ~50m is inside a 100m boundary", func(t *testing.T) {
		verdict := Evaluate(ping(t, subject, 0.00045, 0), b)
		assert.Equal(t, models.VerdictInside, verdict)
	})

	t.Run("ping at ~150m is outside a 100m boundary", func(t *testing.T) {
		verdict := Evaluate(ping(t, subject, 0.00135, 0), b)
		assert.Equal(t, models.VerdictOutside, verdict)
	})

	t.Run("increasing radius never flips INSIDE to OUTSIDE", func(t *testing.T) {
		p := ping(t, subject, 0.0004, 0.0002)
		inside := false
		for radius := 10.0; radius <= 10000; radius *= 2 {
			wider, err := models.NewBoundary(subject, 0, 0, radius, time.Now())
			require.NoError(t, err)
			verdict := Evaluate(p, wider)
			if inside {
				assert.Equal(t, models.VerdictInside, verdict, "radius %f", radius)
			}
			if verdict == models.VerdictInside {
				inside = true
			}
		}
		assert.True(t, inside, "point should be contained at some radius")
	})
}
