package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
)

// AzureStore maps each bucket to a container in one storage account. The
// containers must exist and allow public blob reads.
type AzureStore struct {
	cred       *azblob.SharedKeyCredential
	serviceURL string
	options    *blockblob.ClientOptions
}

// NewAzureStore authenticates with the account's shared key. serviceURL
// defaults to https://<account>.blob.core.windows.net/.
func NewAzureStore(account, key, serviceURL string) (*AzureStore, error) {
	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("blob: azure credential: %w", err)
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	}
	if !strings.HasSuffix(serviceURL, "/") {
		serviceURL += "/"
	}
	return &AzureStore{cred: cred, serviceURL: serviceURL}, nil
}

func (s *AzureStore) client(bucket, name string) (*blockblob.Client, error) {
	return blockblob.NewClientWithSharedKeyCredential(s.PublicURL(bucket, name), s.cred, s.options)
}

func (s *AzureStore) Upload(ctx context.Context, bucket, name string, body io.Reader, contentType string) (string, error) {
	if err := checkNames(bucket, name); err != nil {
		return "", err
	}
	c, err := s.client(bucket, name)
	if err != nil {
		return "", fmt.Errorf("blob: azure client: %w", err)
	}

	var opts *blockblob.UploadStreamOptions
	if contentType != "" {
		opts = &blockblob.UploadStreamOptions{
			HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		}
	}
	if _, err := c.UploadStream(ctx, body, opts); err != nil {
		return "", fmt.Errorf("blob: azure upload %s/%s: %w", bucket, name, err)
	}
	return c.URL(), nil
}

func (s *AzureStore) Delete(ctx context.Context, bucket, name string) error {
	if err := checkNames(bucket, name); err != nil {
		return err
	}
	c, err := s.client(bucket, name)
	if err != nil {
		return fmt.Errorf("blob: azure client: %w", err)
	}
	if _, err := c.Delete(ctx, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return fmt.Errorf("blob: azure delete %s/%s: %w", bucket, name, err)
	}
	return nil
}

func (s *AzureStore) PublicURL(bucket, name string) string {
	return s.serviceURL + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}
