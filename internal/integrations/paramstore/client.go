package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Client reads deployment settings, such as the backend URL, from SSM
// Parameter Store.
type Client struct {
	api ssmAPI
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// GetParameter returns the decrypted, trimmed value of name.
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q missing value", name)
	}
	value := strings.TrimSpace(*out.Parameter.Value)
	if value == "" {
		return "", fmt.Errorf("paramstore: parameter %q is empty", name)
	}
	return value, nil
}

// ResolveBackendURL returns the URL stored under param, or fallback when no
// parameter name is configured.
func (c *Client) ResolveBackendURL(ctx context.Context, param, fallback string) (string, error) {
	if strings.TrimSpace(param) == "" {
		return fallback, nil
	}
	v, err := c.GetParameter(ctx, param)
	if err != nil {
		return "", fmt.Errorf("paramstore: resolve backend URL: %w", err)
	}
	return strings.TrimRight(v, "/"), nil
}
