package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/siftlabs/sift/internal/api"
	"github.com/siftlabs/sift/internal/jobs"
	"github.com/siftlabs/sift/internal/svcctx"
	"github.com/siftlabs/sift/internal/types"
)

// ExtractRequest is the submission payload for a new extraction job.
type ExtractRequest struct {
	Rows       []types.Row      `json:"rows"`
	Categories []types.Category `json:"categories"`

	Provider    string  `json:"provider,omitempty"` // config default if empty
	Model       string  `json:"model,omitempty"`
	APIKey      string  `json:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// ExtractResponse acknowledges an accepted job.
type ExtractResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	TotalRows int    `json:"total_rows"`
}

// ExtractEndpoint handles POST /api/v1/extract.
type ExtractEndpoint struct{}

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/extract", e.handler
}

func (e *ExtractEndpoint) RequiresInit() bool { return true }

func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "rows must not be empty")
		return
	}
	if len(req.Categories) == 0 {
		writeError(w, http.StatusBadRequest, "categories must not be empty")
		return
	}
	for i, row := range req.Rows {
		if row.Text == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("row %d has no text", i))
			return
		}
		if row.ID == "" {
			req.Rows[i].ID = fmt.Sprintf("row-%d", i+1)
		}
	}
	for i, cat := range req.Categories {
		if cat.Name == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("category %d has no name", i))
			return
		}
		if cat.Prompt == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("category %q has no prompt", cat.Name))
			return
		}
	}

	// Fill provider defaults from config.
	if req.Provider == "" {
		if cm := svcctx.ConfigManagerFrom(r.Context()); cm != nil {
			req.Provider = cm.Get().Defaults.Provider
		}
	}
	if req.Provider == "" {
		writeError(w, http.StatusBadRequest, "provider is required (no default configured)")
		return
	}

	// Reject unknown providers before any work is queued.
	if registry := svcctx.RegistryFrom(r.Context()); registry != nil {
		if _, err := registry.Resolve(req.Provider, req.Model, req.APIKey, req.BaseURL, req.Temperature); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	manager := svcctx.JobManagerFrom(r.Context())
	store := svcctx.StoreFrom(r.Context())
	scheduler := svcctx.SchedulerFrom(r.Context())

	jobID := manager.Create(req.Categories, req.Provider, req.Model, len(req.Rows))

	if err := store.PutRows(r.Context(), jobID, req.Rows); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store rows: %v", err))
		return
	}

	err := scheduler.Submit(jobs.Request{
		JobID:       jobID,
		Categories:  req.Categories,
		Provider:    req.Provider,
		Model:       req.Model,
		APIKey:      req.APIKey,
		BaseURL:     req.BaseURL,
		Temperature: req.Temperature,
	})
	if err != nil {
		manager.Cancel(jobID)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, ExtractResponse{
		JobID:     jobID,
		Status:    string(jobs.StatusPending),
		TotalRows: len(req.Rows),
	})
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	var provider, model string
	cmd := &cobra.Command{
		Use:   "extract <request.json>",
		Short: "Submit an extraction job from a JSON request file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read request file: %w", err)
			}
			var req ExtractRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse request file: %w", err)
			}
			if provider != "" {
				req.Provider = provider
			}
			if model != "" {
				req.Model = model
			}

			client := api.NewClient(getServerURL())
			var resp ExtractResponse
			if err := client.Post(cmd.Context(), "/api/v1/extract", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Override the provider")
	cmd.Flags().StringVar(&model, "model", "", "Override the model")
	return cmd
}
