package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/siftlabs/sift/internal/api"
	"github.com/siftlabs/sift/internal/svcctx"
	"github.com/siftlabs/sift/internal/types"
)

// FeedbackItem is one per-category validation verdict on a row result.
type FeedbackItem struct {
	Category         string                 `json:"category"`
	ValidationStatus types.ValidationStatus `json:"validation_status"`
	Sentences        []int                  `json:"user_validated_sentences,omitempty"`
	ManualValue      *string                `json:"manual_value,omitempty"`
	Notes            string                 `json:"notes,omitempty"`
}

// FeedbackRequest is the submission payload for row feedback.
type FeedbackRequest struct {
	Items []FeedbackItem `json:"items"`
}

// FeedbackResponse acknowledges stored feedback.
type FeedbackResponse struct {
	JobID string `json:"job_id"`
	RowID string `json:"row_id"`
	Saved int    `json:"saved"`
}

// FeedbackEndpoint handles POST /api/v1/jobs/{id}/rows/{rowID}/feedback.
type FeedbackEndpoint struct{}

func (e *FeedbackEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/jobs/{id}/rows/{rowID}/feedback", e.handler
}

func (e *FeedbackEndpoint) RequiresInit() bool { return true }

func (e *FeedbackEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	rowID := r.PathValue("rowID")

	manager := svcctx.JobManagerFrom(r.Context())
	if _, ok := manager.Get(jobID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items must not be empty")
		return
	}

	now := time.Now().UTC()
	items := make([]types.Feedback, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Category == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("item %d has no category", i))
			return
		}
		switch item.ValidationStatus {
		case types.ValidationConfirmed, types.ValidationRejected, types.ValidationCorrected:
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("item %d has invalid validation_status %q", i, item.ValidationStatus))
			return
		}
		if item.ValidationStatus == types.ValidationCorrected && item.ManualValue == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("item %d is corrected but has no manual_value", i))
			return
		}
		items = append(items, types.Feedback{
			JobID:            jobID,
			RowID:            rowID,
			Category:         item.Category,
			ValidationStatus: item.ValidationStatus,
			Sentences:        item.Sentences,
			ManualValue:      item.ManualValue,
			Notes:            item.Notes,
			CreatedAt:        now,
		})
	}

	store := svcctx.StoreFrom(r.Context())
	if err := store.SaveFeedback(r.Context(), items); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store feedback: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, FeedbackResponse{JobID: jobID, RowID: rowID, Saved: len(items)})
}

func (e *FeedbackEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <job-id> <row-id> <feedback.json>",
		Short: "Submit validation feedback for a row's extractions",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[2])
			if err != nil {
				return fmt.Errorf("failed to read feedback file: %w", err)
			}
			var req FeedbackRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse feedback file: %w", err)
			}

			client := api.NewClient(getServerURL())
			var resp FeedbackResponse
			path := "/api/v1/jobs/" + args[0] + "/rows/" + args[1] + "/feedback"
			if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
