package domain

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImageDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))

	tests := []struct {
		name     string
		dataURL  string
		wantCode string
		wantType string
	}{
		{
			name:     "valid png",
			dataURL:  "data:image/png;base64," + payload,
			wantType: "image/png",
		},
		{
			name:     "valid jpeg",
			dataURL:  "data:image/jpeg;base64," + payload,
			wantType: "image/jpeg",
		},
		{
			name:     "missing base64 marker",
			dataURL:  "data:image/png," + payload,
			wantCode: EINVALID,
		},
		{
			name:     "missing data prefix",
			dataURL:  "image/png;base64," + payload,
			wantCode: EINVALID,
		},
		{
			name:     "unsupported media type",
			dataURL:  "data:application/pdf;base64," + payload,
			wantCode: EINVALID,
		},
		{
			name:     "invalid base64 payload",
			dataURL:  "data:image/png;base64,!!!not-base64!!!",
			wantCode: EINVALID,
		},
		{
			name:     "empty payload",
			dataURL:  "data:image/png;base64,",
			wantCode: EINVALID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ParseImageDataURL(tt.dataURL)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, img.MediaType)
			assert.Equal(t, []byte("fake-png-bytes"), img.Bytes)
		})
	}
}

func TestParseImageDataURLRejectsOversizedPayload(t *testing.T) {
	big := strings.Repeat("A", MaxImageBytes+1)
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(big))

	_, err := ParseImageDataURL(dataURL)
	require.Error(t, err)
	assert.Equal(t, ETOOLARGE, ErrorCode(err))
}

func TestEncodeImageDataURLRoundTrip(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4e, 0x47}

	dataURL := EncodeImageDataURL("image/png", data)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))

	img, err := ParseImageDataURL(dataURL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MediaType)
	assert.Equal(t, data, img.Bytes)
}
