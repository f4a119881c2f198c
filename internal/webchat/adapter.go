package webchat

import (
	"github.com/wolfman30/realty-lead-agent/internal/blocks"
	"github.com/wolfman30/realty-lead-agent/internal/conversation"
)

// blocksMessage converts a turn result into the widget frame.
func blocksMessage(res *conversation.TurnResult) OutboundMessage {
	return OutboundMessage{
		Type:      "blocks",
		SessionID: res.SessionID,
		Blocks:    res.Payload.Blocks,
		Stage:     string(res.Stage),
	}
}

func fallbackMessage(sessionID, contact string) OutboundMessage {
	return OutboundMessage{
		Type:      "blocks",
		SessionID: sessionID,
		Blocks:    blocks.Fallback(contact).Blocks,
	}
}
