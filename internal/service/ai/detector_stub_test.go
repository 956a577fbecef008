//go:build !gocv

package ai

import (
	"testing"

	"github.com/stretchr/testify/require"

	"annotator/internal/config"
	"annotator/internal/logger"
)

func TestStubDetector_Unavailable(t *testing.T) {
	d := NewDetectorService(&config.Config{GridTile: 64}, logger.NewDiscard())
	require.False(t, d.Available())

	_, err := d.Detect([]byte{1, 2, 3}, nil)
	require.ErrorIs(t, err, ErrDetectorUnavailable)
}
