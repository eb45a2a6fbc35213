package topic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePublishRejectsWildcards(t *testing.T) {
	require.Error(t, ValidatePublish("a/+/c"))
	require.Error(t, ValidatePublish("a/#"))
	require.Error(t, ValidatePublish(""))
}

func TestValidatePublishAcceptsConcreteTopic(t *testing.T) {
	assert.NoError(t, ValidatePublish("home/sensor/temperature"))
}

func TestValidatePublishUnreservedLimits(t *testing.T) {
	levels := make([]string, 8)
	for i := range levels {
		levels[i] = "x"
	}
	tooDeep := strings.Join(levels, "/")
	require.Error(t, ValidatePublish(tooDeep))

	longTopic := strings.Repeat("a", 300)
	require.Error(t, ValidatePublish(longTopic))
}

func TestValidatePublishAWSRulesPrefixExcluded(t *testing.T) {
	levels := make([]string, 7)
	for i := range levels {
		levels[i] = "x"
	}
	topic := "$aws/rules/myRule/" + strings.Join(levels, "/")
	assert.NoError(t, ValidatePublish(topic))
}

func TestValidateSubscribeAllowsWildcards(t *testing.T) {
	assert.NoError(t, ValidateSubscribe("home/+/temperature"))
	assert.NoError(t, ValidateSubscribe("home/#"))
}

func TestValidateSubscribeRejectsMalformedWildcards(t *testing.T) {
	require.Error(t, ValidateSubscribe("home/se+nsor"))
	require.Error(t, ValidateSubscribe("home/#/temperature"))
}

func TestValidateSubscribeSharedSubscription(t *testing.T) {
	assert.NoError(t, ValidateSubscribe("$share/group1/home/+/temperature"))
	require.Error(t, ValidateSubscribe("$share/group1"))
	require.Error(t, ValidateSubscribe("$share//temperature"))
}

func TestValidateSubscribeOtherReservedUnboundedLevels(t *testing.T) {
	levels := make([]string, 20)
	for i := range levels {
		levels[i] = "x"
	}
	topic := "$aws/iotwireless/" + strings.Join(levels, "/")
	assert.NoError(t, ValidateSubscribe(topic))
}
