package domain

import "fmt"

// Channel identifies a notification delivery channel.
type Channel string

// The fixed channel variant set. Adding a channel means adding a variant
// here plus a provider adapter, never runtime registration.
const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPush     Channel = "push"
)

// Channels lists all supported channels in preference order.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelPush}
}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelPush:
		return Channel(s), nil
	}
	return "", fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, s)
}
