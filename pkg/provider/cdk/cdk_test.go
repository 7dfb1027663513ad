package cdk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

func TestMajorVersion(t *testing.T) {
	assert.Equal(t, "15", majorVersion("15.5"))
	assert.Equal(t, "16", majorVersion("16"))
	assert.Equal(t, "", majorVersion(""))
}

func TestAsRejectsForeignHandles(t *testing.T) {
	rec := provider.NewRecorder("app", "app-pipeline")
	foreign, err := rec.Bucket(context.Background(), provider.BucketSpec{ID: "docs"})
	require.NoError(t, err)

	_, err = as[string](foreign)
	assert.ErrorContains(t, err, "not declared by this provider")

	_, err = as[string](nil)
	assert.ErrorContains(t, err, "missing reference")

	_, err = as[int](&handle{id: "vpc", kind: types.KindNetwork, construct: "not an int"})
	assert.ErrorContains(t, err, "wrong kind network")

	got, err := as[string](&handle{id: "vpc", construct: "construct"})
	require.NoError(t, err)
	assert.Equal(t, "construct", got)
}

func TestHandleAttr(t *testing.T) {
	token := "${Token[TOKEN.42]}"
	h := &handle{id: "db", attrs: map[string]*string{types.AttrEndpointAddress: &token}}
	assert.Equal(t, token, h.Attr(types.AttrEndpointAddress))
	assert.Empty(t, h.Attr("Missing"))
}

func TestRecoverAsConvertsPanics(t *testing.T) {
	run := func() (err error) {
		defer recoverAs("Network", "ECS-VPC", &err)
		panic("jsii: invalid MaxAzs")
	}

	err := run()
	require.Error(t, err)
	var pe *provider.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "Network", pe.Op)
	assert.Equal(t, "ECS-VPC", pe.Resource)
	assert.ErrorIs(t, err, provider.ErrProvider)
}

func TestIngressID(t *testing.T) {
	spec := provider.IngressSpec{
		Target: &handle{id: "AuroraSecurityGroup"},
		Source: &handle{id: "FargateSecurityGroup"},
		Port:   5432,
	}
	assert.Equal(t, "AuroraSecurityGroup-from-FargateSecurityGroup-5432", ingressID(spec))
}
