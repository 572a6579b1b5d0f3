package vision

import (
	"context"

	"github.com/teslashibe/go-tagvision/pkg/camlink"
	"github.com/teslashibe/go-tagvision/pkg/protocol"
)

// Provider is one coprocessor camera as seen by the controller.
// *camlink.Link satisfies it.
type Provider interface {
	Addr() string
	State() camlink.State
	IsConnected() bool
	Rotation() float64 // Mounting rotation in degrees

	Tags(ctx context.Context) []protocol.TagObservation
	Piece(ctx context.Context) (protocol.PieceObservation, bool)
	Info(ctx context.Context) (protocol.CameraInfo, bool)

	Clear()
	Disconnect() error
}

var _ Provider = (*camlink.Link)(nil)
