package controller

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitServicesWiresSingletons(t *testing.T) {
	InitServices()

	require.NotNil(t, chatService)
	require.NotNil(t, uploadService)
	require.NotNil(t, imagesService)
	require.NotNil(t, voiceRegistry)
}
