package uetr

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_WellFormed(t *testing.T) {
	for _, msgType := range []string{MsgPain001, MsgPacs008, MsgPacs002, "camt.056"} {
		u := Generate(msgType, "ZA01")
		assert.Len(t, u, Length, u)
		assert.True(t, Validate(u), u)
	}
}

func TestGenerate_Segments(t *testing.T) {
	u := Generate(MsgPain001, "ZA01")
	parts := strings.Split(u, "-")
	require.Len(t, parts, 5)

	assert.Equal(t, time.Now().UTC().Format("20060102"), parts[0])
	assert.Equal(t, SelfOrigin, parts[1])
	assert.Equal(t, "PA01", parts[2])
	assert.Len(t, parts[3], 4)
	assert.Len(t, parts[4], 12)
}

func TestGenerate_MessageTypeSegments(t *testing.T) {
	assert.Equal(t, "PC08", strings.Split(Generate(MsgPacs008, "ZA01"), "-")[2])
	assert.Equal(t, "PC02", strings.Split(Generate(MsgPacs002, "ZA01"), "-")[2])
	assert.Equal(t, "GN00", strings.Split(Generate("camt.056", "ZA01"), "-")[2], "unknown types use the generic segment")
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		u := Generate(MsgPain001, "ZA01")
		assert.False(t, seen[u], "duplicate UETR %s", u)
		seen[u] = true
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		valid     bool
	}{
		{"self-generated", Generate(MsgPain001, "ZA01"), true},
		{"external origin", "20260827-AB12-PC08-Q7W2-AABBCCDDEEFF", true},
		{"lowercase segments", "20260827-ab12-pc08-q7w2-aabbccddeeff", true},
		{"empty", "", false},
		{"too short", "20260827-PE01-PA01-Z4K9", false},
		{"too long", "20260827-PE01-PA01-Z4K9-AABBCCDDEEFF00", false},
		{"wrong segmentation", "20260827PE01-PA01-Z4K9X-AABBCCDDEEFF", false},
		{"illegal characters", "20260827-PE_1-PA01-Z4K9-AABBCCDDEEFF", false},
		{"plain uuid", "2c1b0b0e-8f5a-4f7e-9a3b-1c2d3e4f5a6b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, Validate(tt.candidate))
		})
	}
}
