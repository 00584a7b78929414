package aws

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/rancher/distros-deploy-framework/shared"
)

// UploadArtifacts puts each file under <prefix>/ in the bucket, keyed by its
// base name. Missing files are skipped with a warning so a partially aborted
// run still uploads what it produced.
func (c *Client) UploadArtifacts(bucket, prefix string, files []string) error {
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			if os.IsNotExist(err) {
				shared.LogLevel("warn", "skipping missing artifact %s", file)
				continue
			}
			return fmt.Errorf("failed to read artifact %s: %w", file, err)
		}

		key := prefix + "/" + filepath.Base(file)
		input := &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		}

		if _, err := c.s3.PutObject(input); err != nil {
			return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", file, bucket, key, err)
		}

		shared.LogLevel("info", "uploaded artifact s3://%s/%s", bucket, key)
	}

	return nil
}

// GetObjects lists the objects stored under a deployment's prefix.
func (c *Client) GetObjects(bucket, prefix string) ([]*s3.Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}

	output, err := c.s3.ListObjectsV2(input)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects under s3://%s/%s: %w", bucket, prefix, err)
	}

	return output.Contents, nil
}
