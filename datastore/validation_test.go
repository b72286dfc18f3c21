package datastore

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcube-dev/xcube-gedidb/errors"
)

func TestValidateRawParams(t *testing.T) {
	tests := []struct {
		name    string
		params  string
		wantErr bool
	}{
		{"empty", "", false},
		{"simple object", `{"bucket": "b1", "limit": 10}`, false},
		{"nested ok", `{"a": {"b": {"c": [1, 2, 3]}}}`, false},
		{"malformed", `{not json`, true},
		{"null byte in string", "{\"key\": \"a\x00b\"}", true},
		{"control character", "{\"key\": \"a\x01b\"}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRawParams([]byte(tt.params))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRawParams_DepthLimit(t *testing.T) {
	deep := strings.Repeat(`{"a":`, MaxDepth+2) + "1" + strings.Repeat("}", MaxDepth+2)
	err := ValidateRawParams([]byte(deep))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidateRawParams_StringLimit(t *testing.T) {
	long := fmt.Sprintf(`{"key": %q}`, strings.Repeat("x", MaxStringLength+1))
	assert.Error(t, ValidateRawParams([]byte(long)))
}

type safeParams struct {
	Bucket string `json:"bucket"`
	Limit  int    `json:"limit"`
}

func (p *safeParams) Validate() error {
	if p.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}
	return nil
}

func TestSafeUnmarshal(t *testing.T) {
	var params safeParams
	err := SafeUnmarshal([]byte(`{"bucket": "b1", "limit": 5}`), &params)
	require.NoError(t, err)
	assert.Equal(t, "b1", params.Bucket)
	assert.Equal(t, 5, params.Limit)
}

func TestSafeUnmarshal_EmptyKeepsDefaults(t *testing.T) {
	params := safeParams{Bucket: "default"}
	require.NoError(t, SafeUnmarshal(nil, &params))
	assert.Equal(t, "default", params.Bucket)
}

func TestSafeUnmarshal_UnknownField(t *testing.T) {
	var params safeParams
	err := SafeUnmarshal([]byte(`{"bukcet": "typo"}`), &params)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestSafeUnmarshal_ValidateHook(t *testing.T) {
	var params safeParams
	err := SafeUnmarshal([]byte(`{"limit": -1}`), &params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must be non-negative")
}

func TestSafeUnmarshal_NonPointer(t *testing.T) {
	err := SafeUnmarshal([]byte(`{}`), safeParams{})
	assert.Error(t, err)
}

func TestValidateStoreName(t *testing.T) {
	tests := []struct {
		name    string
		store   string
		wantErr bool
	}{
		{"simple", "gedi", false},
		{"with separators", "gedi-store_v1.2", false},
		{"empty", "", true},
		{"spaces", "gedi store", true},
		{"slash", "gedi/store", true},
		{"too long", strings.Repeat("a", MaxStringLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStoreName(tt.store)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
