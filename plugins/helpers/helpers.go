package helpers

import (
	"context"
	"regexp"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

var mentionPattern = regexp.MustCompile(`^<@([A-Za-z0-9]+)(?:\|[^>]*)?>$`)

// ThreadReplyOption returns a slack.MsgOptionTS for threading replies when
// threadTS is non-empty, and a no-op option otherwise so callers can include
// it unconditionally.
func ThreadReplyOption(threadTS string) slack.MsgOption {
	if threadTS != "" {
		return slack.MsgOptionTS(threadTS)
	}
	return slack.MsgOptionCompose()
}

// PostMessage sends a message to channel and logs any failure. It returns
// the channel and timestamp Slack reports, both empty on failure.
func PostMessage(ctx context.Context, api *slack.Client, channel, plugin string, options ...slack.MsgOption) (string, string) {
	ch, ts, err := api.PostMessageContext(ctx, channel, options...)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Str("plugin", plugin).Msg("Failed to post message")
		return "", ""
	}
	return ch, ts
}

// AddReaction adds a reaction to a message and logs any failure.
func AddReaction(ctx context.Context, api *slack.Client, channel, plugin, reaction, timestamp string) {
	msgRef := slack.NewRefToMessage(channel, timestamp)
	if err := api.AddReactionContext(ctx, reaction, msgRef); err != nil {
		log.Error().Err(err).Str("channel", channel).Str("plugin", plugin).Str("reaction", reaction).Msg("Failed to add reaction")
	}
}

// MentionedUser extracts the user ID from a mention token such as
// "<@U123>" or "<@U123|name>".
func MentionedUser(token string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(token)
	if m == nil {
		return "", false
	}
	return m[1], true
}
