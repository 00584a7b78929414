package aws

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/rancher/distros-deploy-framework/shared"
)

type Client struct {
	s3 *s3.S3
}

func AddS3Client(region string) (*Client, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region)})
	if err != nil {
		return nil, shared.ReturnLogError("error creating AWS S3 client session: %v", err)
	}

	return &Client{
		s3: s3.New(sess),
	}, nil
}
