package build

import (
	"context"
	"fmt"

	"github.com/goplus/pkgsmith/internal/errors"
)

// State is the progress of one pipeline run. It only moves forward, one
// step at a time; a failed run is started over from Unfetched.
type State int

const (
	Unfetched State = iota
	Fetched
	Built
	Packaged
	Published
)

var stateNames = [...]string{"UNFETCHED", "FETCHED", "BUILT", "PACKAGED", "PUBLISHED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// stage returns the stage that moves a run out of s.
func (s State) stage() errors.Stage {
	switch s {
	case Unfetched:
		return errors.StageFetch
	case Fetched:
		return errors.StageBuild
	case Built:
		return errors.StagePackage
	}
	return errors.StagePublish
}

// run tracks one pipeline run.
type run struct {
	state State
	// failed is the stage that failed, if any. The state stays where the
	// failing stage started.
	failed errors.Stage
}

// advance moves to the next state.
func (r *run) advance(to State) {
	if r.failed != "" || to != r.state+1 {
		panic(fmt.Sprintf("build: invalid transition %s -> %s", r.state, to))
	}
	r.state = to
}

// fail records err as a failure of the current stage and returns it stamped
// with that stage. Plain errors take the kind of the stage they broke;
// cancellation is passed through.
func (r *run) fail(err error) error {
	r.failed = r.state.stage()
	if errors.KindOf(err) == "" && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = errors.Wrap(stageKinds[r.failed], err, "%s", r.failed)
	}
	return errors.InStage(r.failed, err)
}

var stageKinds = map[errors.Stage]errors.Kind{
	errors.StageFetch:   errors.KindFetch,
	errors.StageBuild:   errors.KindBuildTool,
	errors.StagePackage: errors.KindPackaging,
	errors.StagePublish: errors.KindPackaging,
}
