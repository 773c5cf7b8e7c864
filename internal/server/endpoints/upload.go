package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/siftlabs/sift/internal/api"
	"github.com/siftlabs/sift/internal/ingest"
	"github.com/siftlabs/sift/internal/types"
)

const maxUploadBytes = 64 << 20 // 64 MiB

// UploadResponse returns the rows parsed from an uploaded file, ready
// to be submitted as an extraction request.
type UploadResponse struct {
	Filename string      `json:"filename"`
	Rows     []types.Row `json:"rows"`
	Count    int         `json:"count"`
}

// UploadEndpoint handles POST /api/v1/upload. It accepts a multipart
// "file" field holding a CSV or PDF and returns the parsed rows.
type UploadEndpoint struct{}

func (e *UploadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/upload", e.handler
}

func (e *UploadEndpoint) RequiresInit() bool { return true }

func (e *UploadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("missing file field: %v", err))
		return
	}
	defer file.Close()

	var rows []types.Row
	switch ext := strings.ToLower(filepath.Ext(header.Filename)); ext {
	case ".csv":
		rows, err = ingest.ParseCSV(file)
	case ".pdf":
		rows, err = parseUploadedPDF(file, header.Filename)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q (want .csv or .pdf)", ext))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse %s: %v", header.Filename, err))
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Filename: header.Filename,
		Rows:     rows,
		Count:    len(rows),
	})
}

// parseUploadedPDF spools the upload to a temp file; the PDF reader
// needs random access.
func parseUploadedPDF(file io.Reader, name string) ([]types.Row, error) {
	tmp, err := os.CreateTemp("", "sift-upload-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		return nil, err
	}

	rows, err := ingest.ParsePDF(tmp.Name())
	if err != nil {
		return nil, err
	}
	// Name the row after the uploaded file, not the temp file.
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	for i := range rows {
		rows[i].ID = base
	}
	return rows, nil
}

func (e *UploadEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a CSV or PDF and preview the parsed rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp UploadResponse
			if err := client.PostFile(cmd.Context(), "/api/v1/upload", "file", args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
