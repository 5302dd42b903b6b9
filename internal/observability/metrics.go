package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for the consultation workflows.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	soapSaveCount map[string]int64
	workflowCount map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		soapSaveCount: make(map[string]int64),
		workflowCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSoapSave counts SOAP note saves per trigger and result.
func (m *Metrics) RecordSoapSave(trigger string, ok bool) {
	if m == nil {
		return
	}
	key := trigger + "|" + strconv.FormatBool(ok)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.soapSaveCount[key]++
}

// RecordWorkflow counts named workflow outcomes (completions, sends).
func (m *Metrics) RecordWorkflow(name string, ok bool) {
	if m == nil {
		return
	}
	key := name + "|" + strconv.FormatBool(ok)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflowCount[key]++
}

// SoapSaves returns a copy of the save counters.
func (m *Metrics) SoapSaves() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.soapSaveCount))
	for k, v := range m.soapSaveCount {
		out[k] = v
	}
	return out
}
