package workflow

import (
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/warroom/internal/activity"
)

// registerActivities registers the activity struct with the test workflow
// environment so that parameter and return types can be deserialized
// correctly. All activities are mocked via OnActivity in the tests.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.Response{})
}
