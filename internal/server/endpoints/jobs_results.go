package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/siftlabs/sift/internal/api"
	"github.com/siftlabs/sift/internal/jobs"
	"github.com/siftlabs/sift/internal/svcctx"
	"github.com/siftlabs/sift/internal/types"
)

// JobResultsResponse carries the per-row results of a finished job.
type JobResultsResponse struct {
	JobID   string            `json:"job_id"`
	Status  string            `json:"status"`
	Results []types.RowResult `json:"results"`
	Errors  []string          `json:"errors,omitempty"`
}

// JobResultsEndpoint handles GET /api/v1/jobs/{id}/results.
//
// Results are only served for jobs in a terminal state: a pending or
// processing job yields 409, a cancelled job 410. Failed jobs return
// whatever partial results exist along with the job-level errors.
type JobResultsEndpoint struct{}

func (e *JobResultsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/jobs/{id}/results", e.handler
}

func (e *JobResultsEndpoint) RequiresInit() bool { return true }

func (e *JobResultsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	manager := svcctx.JobManagerFrom(r.Context())
	record, ok := manager.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
		return
	}

	switch record.Status {
	case jobs.StatusPending, jobs.StatusProcessing:
		writeError(w, http.StatusConflict, fmt.Sprintf("job %s is %s; results not ready", jobID, record.Status))
		return
	case jobs.StatusCancelled:
		writeError(w, http.StatusGone, fmt.Sprintf("job %s was cancelled", jobID))
		return
	}

	store := svcctx.StoreFrom(r.Context())
	results, err := store.GetResults(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load results: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, JobResultsResponse{
		JobID:   jobID,
		Status:  string(record.Status),
		Results: results,
		Errors:  record.Errors,
	})
}

func (e *JobResultsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "results <job-id>",
		Short: "Fetch the results of a finished extraction job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp JobResultsResponse
			if err := client.Get(cmd.Context(), "/api/v1/jobs/"+args[0]+"/results", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
