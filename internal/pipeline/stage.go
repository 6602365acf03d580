package pipeline

import "context"

// Stage is one unit of the session state machine. Stages run sequentially;
// a stage error fails the whole session.
type Stage interface {
	// ID is the stable identifier used in events and dependency wiring.
	ID() string
	// Name is the human-readable label for progress messages.
	Name() string
	// Begin is the session status entered when the stage starts.
	Begin() Status
	// Done is the session status after the stage completes.
	Done() Status
	Execute(ctx context.Context, run *Run) error
}

// BaseStage provides the common identity plumbing for stage
// implementations.
type BaseStage struct {
	id    string
	name  string
	begin Status
	done  Status
}

// NewBaseStage creates the embedded base for a stage.
func NewBaseStage(id, name string, begin, done Status) BaseStage {
	return BaseStage{id: id, name: name, begin: begin, done: done}
}

func (s BaseStage) ID() string    { return s.id }
func (s BaseStage) Name() string  { return s.name }
func (s BaseStage) Begin() Status { return s.begin }
func (s BaseStage) Done() Status  { return s.done }

// Stage identifiers.
const (
	StageIDLinks     = "links"
	StageIDDownload  = "download"
	StageIDExtract   = "extract"
	StageIDAggregate = "aggregate"
	StageIDFilter    = "filter"
)
