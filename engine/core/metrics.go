package core

import "time"

const AVG_COUNT uint8 = 30

// RollingAverage keeps the mean of the last AVG_COUNT samples, in milliseconds.
type RollingAverage struct {
	counter uint8
	filled  bool
	samples [AVG_COUNT]float64
	average float64
	total   uint64
}

// AddDuration records one sample.
func (r *RollingAverage) AddDuration(d time.Duration) {
	r.Add(float64(d) / float64(time.Millisecond))
}

// Add records one sample expressed in milliseconds.
func (r *RollingAverage) Add(ms float64) {
	r.samples[r.counter] = ms
	r.counter++
	r.total++
	if r.counter == AVG_COUNT {
		r.filled = true
	}
	r.counter %= AVG_COUNT

	n := int(r.counter)
	if r.filled {
		n = int(AVG_COUNT)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += r.samples[i]
	}
	r.average = sum / float64(n)
}

// Average returns the mean of the retained samples, 0 when empty.
func (r *RollingAverage) Average() float64 {
	return r.average
}

// Count is the number of samples ever added.
func (r *RollingAverage) Count() uint64 {
	return r.total
}
