package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrap_FlatData(t *testing.T) {
	var out struct {
		OrderID string `json:"order_id"`
	}
	err := unwrap([]byte(`{"data":{"order_id":"o-1"}}`), &out)
	require.NoError(t, err)
	assert.Equal(t, "o-1", out.OrderID)
}

func TestUnwrap_NestedData(t *testing.T) {
	var out struct {
		OrderID string `json:"order_id"`
	}
	err := unwrap([]byte(`{"data":{"data":{"order_id":"o-2"},"message":"ok"}}`), &out)
	require.NoError(t, err)
	assert.Equal(t, "o-2", out.OrderID)
}

func TestUnwrap_ArrayPayloadIsNotProbed(t *testing.T) {
	var out []int
	err := unwrap([]byte(`{"data":[1,2,3]}`), &out)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, out)
}

func TestUnwrap_NullAndMissingData(t *testing.T) {
	var out struct {
		OrderID string `json:"order_id"`
	}
	require.NoError(t, unwrap([]byte(`{"data":null}`), &out))
	assert.Empty(t, out.OrderID)
	require.NoError(t, unwrap([]byte(`{"message":"accepted"}`), &out))
	assert.Empty(t, out.OrderID)
}

func TestUnwrap_MalformedEnvelope(t *testing.T) {
	var out map[string]any
	assert.Error(t, unwrap([]byte(`not json`), &out))
}
