package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/mattjoyce/postserve/internal/config"
)

// SSMClientFactory builds an SSM client for a region. Swapped in tests.
type SSMClientFactory func(ctx context.Context, region string) (ssm.GetParametersByPathAPIClient, error)

// FromConfig builds one Resolver over all configured sources, earlier sources
// winning. Remote sources are read here, once.
func FromConfig(ctx context.Context, cfg config.SecretsConfig, newSSM SSMClientFactory) (Resolver, error) {
	if newSSM == nil {
		newSSM = func(ctx context.Context, region string) (ssm.GetParametersByPathAPIClient, error) {
			return NewSSMClient(ctx, region)
		}
	}

	resolvers := make([]Resolver, 0, len(cfg.Sources))
	for i, src := range cfg.Sources {
		switch src.Type {
		case config.SourceEnv:
			resolvers = append(resolvers, Env())
		case config.SourceDotEnv:
			r, err := DotEnv(src.Files...)
			if err != nil {
				return nil, fmt.Errorf("secrets source %d: %w", i, err)
			}
			resolvers = append(resolvers, r)
		case config.SourceSSM:
			client, err := newSSM(ctx, src.Region)
			if err != nil {
				return nil, fmt.Errorf("secrets source %d: %w", i, err)
			}
			r, err := SSM(ctx, client, src.Path)
			if err != nil {
				return nil, fmt.Errorf("secrets source %d: %w", i, err)
			}
			resolvers = append(resolvers, r)
		default:
			return nil, fmt.Errorf("secrets source %d: unknown type %q", i, src.Type)
		}
	}
	if len(resolvers) == 0 {
		return Env(), nil
	}
	return First(resolvers...), nil
}
