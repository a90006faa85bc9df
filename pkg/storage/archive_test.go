package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
	"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
	"BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1"

func TestParseConnectionString(t *testing.T) {
	params := parseConnectionString(azuriteConnString)
	assert.Equal(t, "devstoreaccount1", params["AccountName"])
	assert.Equal(t, "http://127.0.0.1:10000/devstoreaccount1", params["BlobEndpoint"])
	assert.NotEmpty(t, params["AccountKey"])
	// Key values containing '=' padding survive the split.
	assert.Contains(t, params["AccountKey"], "==")
}

func TestNewBlobArchiverValidation(t *testing.T) {
	_, err := NewBlobArchiver("", "runs", zap.NewNop())
	assert.Error(t, err)

	_, err = NewBlobArchiver(azuriteConnString, "", zap.NewNop())
	assert.Error(t, err)

	_, err = NewBlobArchiver("AccountName=only", "runs", zap.NewNop())
	assert.Error(t, err)
}

func TestNewBlobArchiverAzurite(t *testing.T) {
	a, err := NewBlobArchiver(azuriteConnString, "runs", nil)
	require.NoError(t, err)
	assert.NotNil(t, a.client)
}

func TestBlobPath(t *testing.T) {
	assert.Equal(t, "runs/abc-123.json", blobPath("abc-123"))
}
