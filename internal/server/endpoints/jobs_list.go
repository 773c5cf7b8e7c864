package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/siftlabs/sift/internal/api"
	"github.com/siftlabs/sift/internal/jobs"
	"github.com/siftlabs/sift/internal/svcctx"
)

// JobsListResponse is the payload for the jobs listing.
type JobsListResponse struct {
	Jobs  []jobs.Record `json:"jobs"`
	Count int           `json:"count"`
}

// JobsListEndpoint handles GET /api/v1/jobs.
type JobsListEndpoint struct{}

func (e *JobsListEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/jobs", e.handler
}

func (e *JobsListEndpoint) RequiresInit() bool { return true }

func (e *JobsListEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	manager := svcctx.JobManagerFrom(r.Context())
	records := manager.List()

	writeJSON(w, http.StatusOK, JobsListResponse{Jobs: records, Count: len(records)})
}

func (e *JobsListEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all extraction jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp JobsListResponse
			if err := client.Get(cmd.Context(), "/api/v1/jobs", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
