package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/virtualpost/forwarding-api/internal/models"
)

func TestManifestRendererRequiresDispatchData(t *testing.T) {
	renderer := NewManifestRenderer()

	_, err := renderer.Render(nil)
	require.Error(t, err)

	_, err = renderer.Render(&models.ForwardingRequest{ID: "fr-1"})
	require.Error(t, err)
}

func TestManifestRendererProducesPDF(t *testing.T) {
	renderer := NewManifestRenderer()
	courier := "DHL"
	tracking := "DHL-4711"
	notes := "fragile, handle with care"
	dispatched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	payload, err := renderer.Render(&models.ForwardingRequest{
		ID:                 "fr-1",
		OwnerUserID:        "user-1",
		SourceMailItemID:   "mail-1",
		DestinationAddress: "14 Canal Walk, Amsterdam",
		Status:             models.StatusDispatched,
		Courier:            &courier,
		TrackingNumber:     &tracking,
		AdminNotes:         &notes,
		DispatchedAt:       &dispatched,
	})
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	require.Equal(t, "%PDF", string(payload[:4]))
}
