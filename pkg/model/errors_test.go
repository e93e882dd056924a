package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentErrorCodes(t *testing.T) {
	cause := errors.New("connection refused")

	err := fmt.Errorf("迭代失败: %w", NewPollTransportError("http://a:1", cause))
	assert.True(t, IsCode(err, ErrPollTransport))
	assert.False(t, IsCode(err, ErrPollParse))
	assert.ErrorIs(t, err, cause, "应能解包出原始错误")

	statusErr := NewPublishStatusError("http://hydra/app/x", 500)
	assert.True(t, IsCode(statusErr, ErrPublishStatus))
	assert.Contains(t, statusErr.Error(), "500")
	assert.Contains(t, statusErr.Error(), "http://hydra/app/x")

	cfgErr := NewConfigError(errors.New("app_id: cannot be blank"))
	assert.Equal(t, "config: app_id: cannot be blank", cfgErr.Error())
	assert.False(t, IsCode(cause, ErrConfig))
}
