package metric_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/synthflow/metric"
)

type meteredA struct{}

type meteredB struct{}

func TestMeter(t *testing.T) {
	sampleRate := 44100
	// test cases
	var tests = []struct {
		module          interface{}
		routines        int
		calcs           int
		blockSize       int
		expectedSamples string
		expectedModules string
	}{
		{
			module:          &meteredA{},
			routines:        2,
			calcs:           10,
			blockSize:       100,
			expectedSamples: "2000",
			expectedModules: "2",
		},
		{
			module:          meteredA{},
			routines:        2,
			calcs:           10,
			blockSize:       100,
			expectedSamples: "4000",
			expectedModules: "4",
		},
		{
			module:          &meteredB{},
			routines:        1,
			calcs:           4,
			blockSize:       44100,
			expectedSamples: "176400",
			expectedModules: "1",
		},
	}
	// function to test meter.
	testFn := func(m *metric.Meter, wg *sync.WaitGroup, calcs int, blockSize int) {
		for i := 0; i < calcs; i++ {
			m.Request()
			m.Calc(blockSize)
		}
		wg.Done()
	}

	for _, c := range tests {
		wg := &sync.WaitGroup{}
		wg.Add(c.routines)
		for i := 0; i < c.routines; i++ {
			go testFn(metric.New(c.module, sampleRate), wg, c.calcs, c.blockSize)
		}
		// check if no data race.
		wg.Wait()
		values := metric.Get(c.module)
		assert.Equal(t, c.expectedSamples, values[metric.SampleCounter])
		assert.Equal(t, c.expectedModules, values[metric.ModuleCounter])
	}
	values := metric.Get(&meteredB{})
	assert.Equal(t, "4", values[metric.RequestCounter])
	assert.Equal(t, "4", values[metric.CalcCounter])
	assert.Equal(t, "0", values[metric.BusyHitCounter])
	assert.Equal(t, `"4s"`, values[metric.DurationCounter])

	all := metric.GetAll()
	assert.Contains(t, all, "metric_test.meteredA")
	assert.Contains(t, all, "metric_test.meteredB")
}

func TestNilMeter(t *testing.T) {
	var m *metric.Meter
	m.Request()
	m.BusyHit()
	m.Calc(10)
}
