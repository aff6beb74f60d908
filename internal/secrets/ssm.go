package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// NewSSMClient builds an SSM client from the default AWS credential chain.
func NewSSMClient(ctx context.Context, region string) (*ssm.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws configuration: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

// SSM loads every parameter under path (recursively, decrypted) and resolves
// names relative to it: with path "/postserve", the parameter
// "/postserve/SIGNATURE_SECRET" resolves as "SIGNATURE_SECRET".
func SSM(ctx context.Context, client ssm.GetParametersByPathAPIClient, path string) (Resolver, error) {
	if path == "" {
		return nil, fmt.Errorf("ssm: parameter path is empty")
	}
	prefix := strings.TrimSuffix(path, "/") + "/"

	values := make(map[string]string)
	pages := ssm.NewGetParametersByPathPaginator(client, &ssm.GetParametersByPathInput{
		Path:           aws.String(path),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ssm get parameters by path %q: %w", path, err)
		}
		for _, p := range page.Parameters {
			name := aws.ToString(p.Name)
			values[strings.TrimPrefix(name, prefix)] = aws.ToString(p.Value)
		}
	}
	return Map(values), nil
}
