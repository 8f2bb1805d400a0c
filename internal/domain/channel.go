package domain

type (
	ChannelID int64
	ServerID  int64
)

type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelVoice ChannelType = "voice"
	ChannelDM    ChannelType = "dm"
)

// Channel is the slice of the durable channel record the coordinator
// cares about. ServerID is zero for channels without an owning server
// (direct messages).
type Channel struct {
	ID       ChannelID
	Type     ChannelType
	ServerID ServerID
}
