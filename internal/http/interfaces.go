package http

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// HTTPExecutor performs one structured HTTP transaction
// This enables easy mocking of the transport in host and tool tests
type HTTPExecutor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// CredentialsProvider resolves AWS credentials for SigV4 signing when none
// are configured through CURLOPT_USERPWD
type CredentialsProvider interface {
	Retrieve(ctx context.Context) (creds aws.Credentials, region string, err error)
}
