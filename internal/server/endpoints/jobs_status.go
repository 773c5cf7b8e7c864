package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/siftlabs/sift/internal/api"
	"github.com/siftlabs/sift/internal/jobs"
	"github.com/siftlabs/sift/internal/svcctx"
)

// JobStatusEndpoint handles GET /api/v1/jobs/{id}/status.
type JobStatusEndpoint struct{}

func (e *JobStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/jobs/{id}/status", e.handler
}

func (e *JobStatusEndpoint) RequiresInit() bool { return true }

func (e *JobStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	manager := svcctx.JobManagerFrom(r.Context())
	record, ok := manager.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (e *JobStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of an extraction job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var record jobs.Record
			if err := client.Get(cmd.Context(), "/api/v1/jobs/"+args[0]+"/status", &record); err != nil {
				return err
			}
			return api.Output(record)
		},
	}
}
