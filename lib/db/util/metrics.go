package util

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// OpCounters groups the per-backend operation counters.
// Counters are registered in the default VictoriaMetrics set, so every engine
// of the same type shares them.
type OpCounters struct {
	Get     *metrics.Counter
	Insert  *metrics.Counter
	Remove  *metrics.Counter
	Batch   *metrics.Counter
	BatchOp *metrics.Counter
	Persist *metrics.Counter
	Iter    *metrics.Counter
	Errors  *metrics.Counter
}

// NewOpCounters returns the counters of the given engine type.
func NewOpCounters(engine string) *OpCounters {
	c := func(op string) *metrics.Counter {
		return metrics.GetOrCreateCounter(fmt.Sprintf(`vsdb_engine_ops_total{engine=%q,op=%q}`, engine, op))
	}
	return &OpCounters{
		Get:     c("get"),
		Insert:  c("insert"),
		Remove:  c("remove"),
		Batch:   c("batch"),
		BatchOp: c("batch_op"),
		Persist: c("persist"),
		Iter:    c("iter"),
		Errors:  metrics.GetOrCreateCounter(fmt.Sprintf(`vsdb_engine_errors_total{engine=%q}`, engine)),
	}
}

// Err counts err if it is non-nil and returns it unchanged.
func (c *OpCounters) Err(err error) error {
	if err != nil {
		c.Errors.Inc()
	}
	return err
}
