package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	TargetUserID string `json:"targetUserId" validate:"required,uuid"`
	Limit        int    `json:"limit" validate:"min=1,max=100"`
	Mode         string `json:"mode" validate:"omitempty,oneof=reject unmatch"`
}

func TestStruct(t *testing.T) {
	ok := sampleRequest{TargetUserID: "0b8f8a52-4c7e-4b53-9c3f-7f5f3bb2a1d4", Limit: 10}
	assert.NoError(t, Struct(&ok))

	bad := sampleRequest{TargetUserID: "nope", Limit: 0, Mode: "ghost"}
	err := Struct(&bad)
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 3)
	assert.Equal(t, "targetUserId", verr.Fields[0].Field)
	assert.Equal(t, "uuid", verr.Fields[0].Tag)
	assert.Equal(t, "limit", verr.Fields[1].Field)
	assert.Equal(t, "min", verr.Fields[1].Tag)
	assert.Contains(t, err.Error(), "targetUserId must be a UUID")
	assert.Contains(t, err.Error(), "limit must be at least 1")
}

func TestGetIsShared(t *testing.T) {
	assert.Same(t, Get(), Get())
}
