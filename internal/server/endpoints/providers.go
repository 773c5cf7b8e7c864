package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/siftlabs/sift/internal/api"
	"github.com/siftlabs/sift/internal/providers"
	"github.com/siftlabs/sift/internal/svcctx"
)

// ProvidersResponse lists the provider catalog and which providers are
// actually configured on this server.
type ProvidersResponse struct {
	Providers  []providers.ModelInfo `json:"providers"`
	Configured []string              `json:"configured"`
}

// ProvidersEndpoint handles GET /api/v1/providers.
type ProvidersEndpoint struct{}

func (e *ProvidersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/providers", e.handler
}

func (e *ProvidersEndpoint) RequiresInit() bool { return true }

func (e *ProvidersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	registry := svcctx.RegistryFrom(r.Context())

	writeJSON(w, http.StatusOK, ProvidersResponse{
		Providers:  providers.Catalog(),
		Configured: registry.List(),
	})
}

func (e *ProvidersEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers and models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ProvidersResponse
			if err := client.Get(cmd.Context(), "/api/v1/providers", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
