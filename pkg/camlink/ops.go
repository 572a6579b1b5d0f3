package camlink

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-tagvision/pkg/protocol"
)

// Info queries the coprocessor's camera configuration.
func (l *Link) Info(ctx context.Context) (protocol.CameraInfo, bool) {
	reply, ok := l.Query(ctx, protocol.CmdInfo, l.config.Timeout)
	if !ok {
		return protocol.CameraInfo{}, false
	}
	info, ok := protocol.DecodeInfo(reply)
	if !ok {
		l.logger.Warn("undecodable info reply", "reply", reply)
	}
	return info, ok
}

// Tags queries the current tag observations. No reply yields an empty list.
func (l *Link) Tags(ctx context.Context) []protocol.TagObservation {
	reply, ok := l.Query(ctx, protocol.CmdTags, l.config.Timeout)
	if !ok {
		return []protocol.TagObservation{}
	}
	return protocol.DecodeTags(reply)
}

// Piece queries the current piece observation.
func (l *Link) Piece(ctx context.Context) (protocol.PieceObservation, bool) {
	reply, ok := l.Query(ctx, protocol.CmdPiece, l.config.Timeout)
	if !ok {
		return protocol.PieceObservation{}, false
	}
	return protocol.DecodePiece(reply)
}

// SwitchColor selects the active color-detection profile and waits for the acknowledgement.
func (l *Link) SwitchColor(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("camlink: invalid color index %d", index)
	}
	return l.command(ctx, protocol.SwitchColorCommand(index))
}

// SaveColors persists a new color profile list on the coprocessor.
func (l *Link) SaveColors(ctx context.Context, colors []protocol.ColorProfile) error {
	cmd, err := protocol.SaveColorsCommand(colors)
	if err != nil {
		return err
	}
	return l.command(ctx, cmd)
}

func (l *Link) command(ctx context.Context, cmd string) error {
	res := l.Do(ctx, cmd, l.config.Timeout)
	switch res.Status {
	case StatusOK:
		if protocol.IsErrorReply(res.Reply) {
			return fmt.Errorf("camlink [%s]: coprocessor rejected %q: %s", l.addr, cmd, res.Reply)
		}
		return nil
	case StatusAbsent:
		return ErrNoReply
	default:
		return res.Err
	}
}
