package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretValueAPI is the part of the Secrets Manager client the storefront uses.
type SecretValueAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsClient loads the storefront's key/value secret bundles. A bundle is
// fetched once and reused until the process exits.
type SecretsClient struct {
	api     SecretValueAPI
	mu      sync.Mutex
	bundles map[string]map[string]string
}

func NewSecretsClient(cfg sdkaws.Config) *SecretsClient {
	return NewSecretsClientWithAPI(secretsmanager.NewFromConfig(cfg))
}

func NewSecretsClientWithAPI(api SecretValueAPI) *SecretsClient {
	return &SecretsClient{api: api, bundles: make(map[string]map[string]string)}
}

// GetSecretMap returns the JSON object stored under name, for example
// {"JWT_SECRET":"...","STRIPE_SECRET_KEY":"..."}. Binary secrets are accepted
// when they hold the same JSON.
func (s *SecretsClient) GetSecretMap(ctx context.Context, name string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bundle, ok := s.bundles[name]; ok {
		return bundle, nil
	}

	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: sdkaws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", name, err)
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case len(out.SecretBinary) > 0:
		raw = out.SecretBinary
	default:
		return nil, fmt.Errorf("secret %s is empty", name)
	}

	bundle := map[string]string{}
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object: %w", name, err)
	}
	s.bundles[name] = bundle
	return bundle, nil
}
