package runner

import "github.com/cuemby/groupsync/pkg/types"

// Step handler names of the group pipeline
const (
	StepFetchRemote = "fetch-remote"
	StepFetchLocal  = "fetch-local"
	StepRemove      = "remove"
	StepAdd         = "add"
)

// StepDef describes one step queued for every group task
type StepDef struct {
	Handler string
	Title   string
	State   types.TaskState
}

// DefaultPipeline is the fixed step order of a group task. Removal always
// precedes addition.
var DefaultPipeline = []StepDef{
	{Handler: StepFetchRemote, Title: "Fetched data from the remote group", State: types.TaskStateFetchingRemote},
	{Handler: StepFetchLocal, Title: "Fetched data from the local groups", State: types.TaskStateFetchingLocal},
	{Handler: StepRemove, Title: "Removed those who should no longer be subscribed", State: types.TaskStateRemoving},
	{Handler: StepAdd, Title: "Added new subscribers", State: types.TaskStateAdding},
}
