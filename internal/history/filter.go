package history

import "gridchat/internal/config"

// Filter applies the configured history policy: drop system messages unless
// included, optionally drop the final message (the one being answered), and
// keep only the most recent maxMessages. It returns a new Conversation and
// never mutates the original.
func Filter(c Conversation, cfg config.HistoryConfig, excludeLast bool) Conversation {
	if !cfg.Enabled {
		return Conversation{}
	}

	msgs := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Role == RoleSystem && !cfg.IncludeSystem {
			continue
		}
		msgs = append(msgs, m)
	}

	if excludeLast && len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}

	if cfg.MaxMessages > 0 && len(msgs) > cfg.MaxMessages {
		msgs = msgs[len(msgs)-cfg.MaxMessages:]
	}

	return Conversation{Messages: msgs}
}
