package airquality_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/airfusion/airfusion/internal/airquality"
)

func TestOutcomeConstructors(t *testing.T) {
	reading := airquality.SynthesizeGround(1, 1, fixedTime)
	failure := errors.New("boom")

	ok := airquality.OK(reading)
	assert.Equal(t, airquality.StatusOK, ok.Status)
	assert.False(t, ok.Synthesized)

	est := airquality.Estimated(reading)
	assert.Equal(t, airquality.StatusOK, est.Status)
	assert.True(t, est.Synthesized)

	none := airquality.NoData(nil, nil)
	assert.Equal(t, airquality.StatusNoData, none.Status)
	assert.False(t, none.Synthesized)
	assert.Nil(t, none.Reading)

	down := airquality.Unavailable(reading, failure)
	assert.Equal(t, airquality.StatusUnavailable, down.Status)
	assert.True(t, down.Synthesized)
	assert.ErrorIs(t, down.Err, failure)
}

func TestHealth(t *testing.T) {
	var h airquality.Health

	snap := h.Snapshot()
	assert.True(t, snap.LastSuccess.IsZero())
	assert.Zero(t, snap.ConsecutiveErrors)

	h.RecordFailure(fixedTime)
	h.RecordFailure(fixedTime.Add(time.Minute))
	snap = h.Snapshot()
	assert.Equal(t, int64(2), snap.ConsecutiveErrors)
	assert.Equal(t, fixedTime.Add(time.Minute), snap.LastFailure)

	h.RecordSuccess(fixedTime.Add(2 * time.Minute))
	snap = h.Snapshot()
	assert.Zero(t, snap.ConsecutiveErrors)
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, fixedTime.Add(2*time.Minute), snap.LastSuccess)
}

func TestHealth_Concurrent(t *testing.T) {
	var (
		h  airquality.Health
		wg sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.RecordFailure(time.Now())
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), h.Snapshot().ConsecutiveErrors)
	assert.Equal(t, int64(50), h.Snapshot().TotalRequests)
}
