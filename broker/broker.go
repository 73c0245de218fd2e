// Package broker provides the broadcast relay transports behind the
// contract.Broker boundary. The memory transport serves a single process;
// the NATS and Redis transports extend the same channels across server
// instances.
package broker

// Channel naming convention shared by every transport. Channels are global
// strings so the same name means the same audience on every instance.
const SystemChannel = "system:broadcast"

func ChatChannel(conversationID string) string {
	return "chat:" + conversationID
}

func TypingChannel(conversationID string) string {
	return "chat:" + conversationID + ":typing"
}

func StatusChannel(subjectID string) string {
	return "user:" + subjectID + ":status"
}
