package metrics

// Noop implements Recorder with empty methods, used when the caller
// doesn't want a Prometheus backend at all (distinct from a nil
// *Metrics, which is also safe, for callers that prefer an explicit
// value over a nil check).
type Noop struct{}

func (Noop) RecordLoopIteration(status string)              {}
func (Noop) RecordLoopDuration(status string, seconds float64) {}
func (Noop) RecordToolCall(toolName, status string)         {}
func (Noop) RecordToolDuration(toolName string, seconds float64) {}
func (Noop) RecordLLMCall(status string)                    {}
func (Noop) RecordLLMDuration(seconds float64)               {}
func (Noop) RecordLLMTokens(kind string, count int)          {}
func (Noop) RecordTruncation()                               {}
func (Noop) RecordCompaction(status string)                  {}
func (Noop) RecordRepetitionCapHit(toolName string)           {}
func (Noop) SetActiveSessions(n int)                          {}

var _ Recorder = Noop{}
