package mainconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/realty-lead-agent/internal/config"
)

func testConfig(endpoint string) *appconfig.Config {
	return &appconfig.Config{
		AWSRegion:           "ap-south-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "secret",
		AWSEndpointOverride: endpoint,
	}
}

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	awsCfg, err := LoadAWSConfig(context.Background(), testConfig(""))
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)
}

func TestEndpointOverride(t *testing.T) {
	assert.Nil(t, endpointOverride(testConfig("  ")))

	got := endpointOverride(testConfig("http://localhost:4566"))
	require.NotNil(t, got)
	assert.Equal(t, "http://localhost:4566", *got)
}

func TestServiceClientsHonorOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := testConfig("http://localhost:4566")
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)

	s3Opts := NewS3Client(awsCfg, cfg).Options()
	require.NotNil(t, s3Opts.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *s3Opts.BaseEndpoint)
	assert.True(t, s3Opts.UsePathStyle)

	brOpts := NewBedrockClient(awsCfg, cfg).Options()
	require.NotNil(t, brOpts.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *brOpts.BaseEndpoint)
}
