// Package progress carries step-level progress events from the pipeline
// to whatever transport the caller wires up. The pipeline writes; the
// transport layer reads and forwards.
package progress

// Step identifies a pipeline stage. Events are emitted in stage order
// within a request, even though intra-stage work is unordered.
type Step string

const (
	StepOptimizing    Step = "optimizing"
	StepSearching     Step = "searching"
	StepDeduplicating Step = "deduplicating"
	StepRanking       Step = "ranking"
	StepFiltering     Step = "filtering"
	StepEnriching     Step = "enriching"
	StepComplete      Step = "complete"
)

// stepPercent maps each step to its overall progress percentage.
// Strictly increasing percent across a request is a soft guarantee.
var stepPercent = map[Step]int{
	StepOptimizing:    5,
	StepSearching:     45,
	StepDeduplicating: 60,
	StepRanking:       70,
	StepFiltering:     80,
	StepEnriching:     90,
	StepComplete:      100,
}

// Event is one progress update.
type Event struct {
	Step    Step   `json:"step"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Percent int    `json:"percent"`
}

// NewEvent builds an event with the step's standard percentage.
func NewEvent(step Step, message, detail string) Event {
	return Event{
		Step:    step,
		Message: message,
		Detail:  detail,
		Percent: stepPercent[step],
	}
}

// Sink receives progress events.
type Sink interface {
	Publish(Event)
}

// Func adapts a function to the Sink interface.
type Func func(Event)

// Publish implements Sink.
func (f Func) Publish(e Event) {
	f(e)
}

// Discard returns a sink that drops all events.
func Discard() Sink {
	return Func(func(Event) {})
}
