// Package storage archives completed run records to Azure Blob Storage.
// Intermediate per-node state is never persisted; only the final record list
// of a run is uploaded, as one JSON blob per run.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/engine"
)

// RunArchiver stores and retrieves completed run archives.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, runID, workflowID string, records []engine.Record) (string, error)
	FetchRun(ctx context.Context, runID string) ([]engine.Record, error)
}

// runArchive is the blob payload.
type runArchive struct {
	RunID      string          `json:"run_id"`
	WorkflowID string          `json:"workflow_id"`
	ArchivedAt time.Time       `json:"archived_at"`
	Records    []engine.Record `json:"records"`
}

// BlobArchiver archives runs to an Azure Blob container. It targets local
// Azurite instances over HTTP as well as real accounts.
type BlobArchiver struct {
	client        *azblob.Client
	containerName string
	logger        *zap.Logger
	containerInit bool
}

// NewBlobArchiver creates an archiver from a standard Azure connection
// string.
func NewBlobArchiver(connectionString, containerName string, logger *zap.Logger) (*BlobArchiver, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if containerName == "" {
		return nil, fmt.Errorf("container name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	params := parseConnectionString(connectionString)
	accountName := params["AccountName"]
	accountKey := params["AccountKey"]
	serviceURL := params["BlobEndpoint"]
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("account name and key are required in the connection string")
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("creating shared key credential: %w", err)
	}

	var clientOpts *azblob.ClientOptions
	if strings.HasPrefix(strings.ToLower(serviceURL), "http://") {
		clientOpts = &azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				InsecureAllowCredentialWithHTTP: true,
			},
		}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}

	return &BlobArchiver{
		client:        client,
		containerName: containerName,
		logger:        logger,
	}, nil
}

// blobPath names a run's archive inside the container.
func blobPath(runID string) string {
	return "runs/" + runID + ".json"
}

// ArchiveRun uploads the run's record list and returns the blob URL.
func (a *BlobArchiver) ArchiveRun(ctx context.Context, runID, workflowID string, records []engine.Record) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	if err := a.ensureContainer(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(runArchive{
		RunID:      runID,
		WorkflowID: workflowID,
		ArchivedAt: time.Now().UTC(),
		Records:    records,
	})
	if err != nil {
		return "", fmt.Errorf("encoding run archive: %w", err)
	}

	blobClient := a.client.ServiceClient().
		NewContainerClient(a.containerName).
		NewBlockBlobClient(blobPath(runID))

	_, err = blobClient.UploadBuffer(ctx, payload, &azblob.UploadBufferOptions{
		Metadata: map[string]*string{
			"workflow_id": to.Ptr(workflowID),
		},
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr("application/json"),
		},
	})
	if err != nil {
		a.logger.Error("run archive upload failed",
			zap.String("run_id", runID),
			zap.Int("size_bytes", len(payload)),
			zap.Error(err))
		return "", fmt.Errorf("archiving run %s: %w", runID, err)
	}

	a.logger.Info("run archived",
		zap.String("run_id", runID),
		zap.Int("records", len(records)),
		zap.Int("size_bytes", len(payload)))

	return blobClient.URL(), nil
}

// FetchRun downloads and decodes a previously archived run.
func (a *BlobArchiver) FetchRun(ctx context.Context, runID string) ([]engine.Record, error) {
	blobClient := a.client.ServiceClient().
		NewContainerClient(a.containerName).
		NewBlobClient(blobPath(runID))

	resp, err := blobClient.DownloadStream(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("downloading run %s: %w", runID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", runID, err)
	}

	var archive runArchive
	if err := json.Unmarshal(raw, &archive); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	return archive.Records, nil
}

func (a *BlobArchiver) ensureContainer(ctx context.Context) error {
	if a.containerInit {
		return nil
	}
	_, err := a.client.CreateContainer(ctx, a.containerName, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == "ContainerAlreadyExists" {
			a.containerInit = true
			return nil
		}
		if strings.Contains(strings.ToLower(err.Error()), "containeralreadyexists") {
			a.containerInit = true
			return nil
		}
		return fmt.Errorf("ensuring container: %w", err)
	}
	a.containerInit = true
	return nil
}

func parseConnectionString(connectionString string) map[string]string {
	parts := strings.Split(connectionString, ";")
	params := make(map[string]string, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.Index(part, "=")
		if idx <= 0 {
			continue
		}
		params[part[:idx]] = part[idx+1:]
	}
	return params
}
