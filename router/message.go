package router

import "github.com/slack-go/slack"

// Values of response_type understood by slash command and interaction replies.
const (
	ResponseEphemeral = "ephemeral"
	ResponseInChannel = "in_channel"
)

// EphemeralMsg is a reply only the invoking user sees.
func EphemeralMsg(text string) *slack.Msg {
	return &slack.Msg{ResponseType: ResponseEphemeral, Text: text}
}

// InChannelMsg is a reply posted for the whole channel to see.
func InChannelMsg(text string) *slack.Msg {
	return &slack.Msg{ResponseType: ResponseInChannel, Text: text}
}
