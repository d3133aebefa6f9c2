package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromConfig(t *testing.T) {
	testCases := []struct {
		description   string
		config        *Config
		expectIsolate bool
		expectReject  bool
	}{
		{description: "nil config", config: nil, expectIsolate: true},
		{description: "fail instance", config: &Config{Error: ErrorFailInstance}, expectIsolate: false},
		{description: "reject resume", config: &Config{Resume: ResumeReject}, expectIsolate: true, expectReject: true},
	}
	for _, testCase := range testCases {
		p := FromConfig(testCase.config)
		assert.Equal(t, testCase.expectIsolate, p.IsolatesErrors(), testCase.description)
		assert.Equal(t, testCase.expectReject, p.RejectsResume(), testCase.description)
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&Config{Error: ErrorIsolate, Resume: ResumeReject}).Validate())
	assert.Error(t, (&Config{Error: "panic"}).Validate())
	assert.Error(t, (&Config{Resume: "maybe"}).Validate())
}

func TestContext(t *testing.T) {
	p := &Policy{Error: ErrorFailInstance}
	ctx := WithPolicy(context.Background(), p)
	assert.Equal(t, p, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
	assert.Equal(t, ErrorFailInstance, FromConfig(ToConfig(p)).Error)
}
