package types

// ChannelProfile is a user's public channel page as seen by a viewer.
type ChannelProfile struct {
	User

	// SubscribersCount is the number of users subscribed to this channel.
	SubscribersCount int64 `json:"subscribersCount"`

	// ChannelsSubscribedToCount is the number of channels this user follows.
	ChannelsSubscribedToCount int64 `json:"channelsSubscribedToCount"`

	// IsSubscribed reports whether the viewer follows this channel.
	// Always false for anonymous viewers.
	IsSubscribed bool `json:"isSubscribed"`
}
