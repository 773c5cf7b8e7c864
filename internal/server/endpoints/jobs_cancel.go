package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/siftlabs/sift/internal/api"
	"github.com/siftlabs/sift/internal/svcctx"
)

// CancelResponse reports the outcome of a cancellation request.
type CancelResponse struct {
	JobID     string `json:"job_id"`
	Cancelled bool   `json:"cancelled"`
	Status    string `json:"status"`
}

// JobCancelEndpoint handles POST /api/v1/jobs/{id}/cancel.
//
// Cancellation is cooperative: a processing job finishes its in-flight
// row before stopping. Cancelling a job already in a terminal state is
// a no-op and reports Cancelled: false.
type JobCancelEndpoint struct{}

func (e *JobCancelEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/jobs/{id}/cancel", e.handler
}

func (e *JobCancelEndpoint) RequiresInit() bool { return true }

func (e *JobCancelEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	manager := svcctx.JobManagerFrom(r.Context())
	if _, ok := manager.Get(jobID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
		return
	}

	cancelled := manager.Cancel(jobID)
	record, _ := manager.Get(jobID)

	writeJSON(w, http.StatusOK, CancelResponse{
		JobID:     jobID,
		Cancelled: cancelled,
		Status:    string(record.Status),
	})
}

func (e *JobCancelEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or processing extraction job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CancelResponse
			if err := client.Post(cmd.Context(), "/api/v1/jobs/"+args[0]+"/cancel", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
