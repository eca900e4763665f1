package mqtt

// Topic layout under the bot's namespace. The command topic is not fixed
// here: each executor names its own in its announce payload.
const (
	TopicTaskSubmit        = "tasks/submit"
	TopicTaskResult        = "tasks/result"
	TopicExecutorAnnounce  = "executors/announce"
	TopicExecutorHeartbeat = "executors/heartbeat"
)

// Topic builds the full topic path for a bot.
func Topic(botID, suffix string) string {
	return "bot/" + botID + "/" + suffix
}
