package endpoints

import (
	"github.com/siftlabs/sift/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Job endpoints
		&ExtractEndpoint{},
		&JobsListEndpoint{},
		&JobStatusEndpoint{},
		&JobResultsEndpoint{},
		&JobCancelEndpoint{},
		&FeedbackEndpoint{},

		// Input and catalog endpoints
		&UploadEndpoint{},
		&ProvidersEndpoint{},
	}
}

// JobCommands returns the endpoints grouped under the "jobs" CLI
// subcommand.
func JobCommands() []api.Endpoint {
	return []api.Endpoint{
		&JobsListEndpoint{},
		&JobStatusEndpoint{},
		&JobResultsEndpoint{},
		&JobCancelEndpoint{},
		&FeedbackEndpoint{},
	}
}
