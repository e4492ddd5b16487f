package mqttclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicMatches(t *testing.T) {
	cases := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"sensors/cpu/Value", "sensors/cpu/Value", true},
		{"sensors/cpu/Value", "sensors/cpu/Label", false},
		{"sensors/+/Value", "sensors/cpu/Value", true},
		{"sensors/+/Value", "sensors/cpu/board/Value", false},
		{"sensors/#", "sensors/cpu/Value", true},
		{"sensors/#", "sensors", true},
		{"#", "anything/at/all", true},
		{"sensors/+", "sensors/cpu", true},
		{"sensors/+", "sensors", false},
		{"sensors/cpu", "sensors/cpu/Value", false},
		{"sensors/#/Value", "sensors/cpu/Value", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, topicMatches(tc.filter, tc.topic),
			"filter %q topic %q", tc.filter, tc.topic)
	}
}
