package agent

import "github.com/kokoro-ai/kokoro/provider"

// trimHistory drops the oldest complete user/assistant exchanges until
// at most maxExchanges remain. Only user/assistant pairs count; tool
// messages ride along with their exchange and are removed with it, so
// no orphaned tool message survives. Leading system messages keep their
// position.
func trimHistory(msgs []provider.Message, maxExchanges int) []provider.Message {
	if maxExchanges <= 0 {
		return msgs
	}

	split := 0
	for split < len(msgs) && msgs[split].Role == provider.MessageRoleSystem {
		split++
	}
	head, rest := msgs[:split], msgs[split:]

	for countExchanges(rest) > maxExchanges {
		rest = dropOldestExchange(rest)
	}

	if len(head) == 0 {
		return rest
	}
	out := make([]provider.Message, 0, len(head)+len(rest))
	out = append(out, head...)
	return append(out, rest...)
}

// countExchanges counts complete user→assistant exchanges.
func countExchanges(msgs []provider.Message) int {
	count := 0
	sawUser := false
	for _, m := range msgs {
		switch m.Role {
		case provider.MessageRoleUser:
			sawUser = true
		case provider.MessageRoleAssistant:
			if sawUser {
				count++
				sawUser = false
			}
		}
	}
	return count
}

// dropOldestExchange removes everything up to (excluding) the second
// user message: the oldest user turn, its assistant response, and any
// tool messages in between. A non-user prefix (orphans from an earlier
// trim) is removed with the block.
func dropOldestExchange(msgs []provider.Message) []provider.Message {
	i := 0
	for i < len(msgs) && msgs[i].Role != provider.MessageRoleUser {
		i++
	}
	i++ // past the oldest user message
	for i < len(msgs) && msgs[i].Role != provider.MessageRoleUser {
		i++
	}
	if i >= len(msgs) {
		return nil
	}
	return msgs[i:]
}
