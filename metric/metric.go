// Package metric publishes scheduling counters of modules with expvar.
// Counters are aggregated per module type.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dudk/synthflow/signal"
)

const modulesLabel = "synthflow.modules"

const (
	// RequestCounter measures number of pull requests.
	RequestCounter = "Requests"
	// SampleCounter measures number of calculated samples.
	SampleCounter = "Samples"
	// CalcCounter measures number of calculations which produced samples.
	CalcCounter = "Calcs"
	// BusyHitCounter measures number of requests rejected by re-entrancy.
	BusyHitCounter = "BusyHits"
	// DurationCounter counts what's the duration of calculated signal.
	DurationCounter = "Duration"
	// ModuleCounter counts number of metered modules.
	ModuleCounter = "Modules"
)

var (
	modules = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		RequestCounter,
		SampleCounter,
		CalcCounter,
		BusyHitCounter,
		DurationCounter,
		ModuleCounter,
	}
)

// Get metrics values for provided module type.
func Get(module interface{}) map[string]string {
	return getCounters(getType(module))
}

// GetAll returns counters for all measured modules.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	modules.Lock()
	defer modules.Unlock()
	for module := range modules.m {
		m[module] = getCounters(module)
	}
	return m
}

func getCounters(moduleType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(moduleType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// Meter captures counters of a single module.
type Meter struct {
	metric
	sampleRate int
}

// New creates a meter for the module. Counters are shared by all modules
// of the same type.
func New(module interface{}, sampleRate int) *Meter {
	m := modules.get(getType(module))
	m.modules.Add(1)
	return &Meter{
		metric:     m,
		sampleRate: sampleRate,
	}
}

// Request captures a pull request.
func (m *Meter) Request() {
	if m == nil {
		return
	}
	m.requests.Add(1)
}

// BusyHit captures a rejected re-entrant request.
func (m *Meter) BusyHit() {
	if m == nil {
		return
	}
	m.busyHits.Add(1)
}

// Calc captures calculated samples.
func (m *Meter) Calc(samples int) {
	if m == nil || samples <= 0 {
		return
	}
	m.calcs.Add(1)
	m.samples.Add(int64(samples))
	if m.sampleRate > 0 {
		m.duration.add(signal.DurationOf(m.sampleRate, int64(samples)))
	}
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(moduleType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[moduleType]; ok {
		// return existing metric if available
		return metric
	}
	// create new metric
	metric := newMetric(moduleType)
	m.m[moduleType] = metric
	return metric
}

type metric struct {
	key      string
	modules  *expvar.Int
	requests *expvar.Int
	samples  *expvar.Int
	calcs    *expvar.Int
	busyHits *expvar.Int
	duration *duration
}

func newMetric(moduleType string) metric {
	m := metric{
		key:      moduleType,
		modules:  expvar.NewInt(key(moduleType, ModuleCounter)),
		requests: expvar.NewInt(key(moduleType, RequestCounter)),
		samples:  expvar.NewInt(key(moduleType, SampleCounter)),
		calcs:    expvar.NewInt(key(moduleType, CalcCounter)),
		busyHits: expvar.NewInt(key(moduleType, BusyHitCounter)),
		duration: &duration{},
	}
	expvar.Publish(key(moduleType, DurationCounter), m.duration)
	return m
}

func key(moduleType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", modulesLabel, moduleType, counter)
}

func getType(module interface{}) string {
	rv := reflect.ValueOf(module)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)).String())
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}
