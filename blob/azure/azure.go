// Package azure stores uploaded photos in an Azure Blob Storage container.
package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	gblob "github.com/adeilh/gallery/blob"
)

var ErrMissingConnectionString = errors.New("azure: connection string is required")

const DefaultContainer = "images"

// Store uploads block blobs and returns their URLs.
type Store struct {
	container *container.Client
}

// New builds a Store for containerName from a storage account connection string.
func New(connectionString, containerName string) (*Store, error) {
	if connectionString == "" {
		return nil, ErrMissingConnectionString
	}
	if containerName == "" {
		containerName = DefaultContainer
	}
	client, err := container.NewClientFromConnectionString(connectionString, containerName, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: container client: %w", err)
	}
	return &Store{container: client}, nil
}

// EnsureContainer creates the container when it does not exist yet.
func (s *Store) EnsureContainer(ctx context.Context) error {
	_, err := s.container.Create(ctx, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("azure: create container: %w", err)
	}
	return nil
}

// Put uploads data as a block blob named name.
func (s *Store) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := gblob.Validate(name, data); err != nil {
		return "", err
	}
	client := s.container.NewBlockBlobClient(name)
	opts := &blockblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := client.UploadBuffer(ctx, data, opts); err != nil {
		return "", fmt.Errorf("azure: upload %s: %w", name, err)
	}
	return client.URL(), nil
}
