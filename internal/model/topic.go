package model

import "strings"

// ControlTopic carries force-update requests for every source.
const ControlTopic = "data_updates"

const topicSuffix = "_projects"

// TopicFor returns the "{source}_projects" topic for source.
func TopicFor(source Source) string {
	return string(source) + topicSuffix
}

// SourceTopics returns the topic of every known source.
func SourceTopics() []string {
	topics := make([]string, 0, len(Sources))
	for _, s := range Sources {
		topics = append(topics, TopicFor(s))
	}
	return topics
}

// SourceFromTopic resolves the source a topic belongs to.
func SourceFromTopic(topic string) (Source, bool) {
	name, ok := strings.CutSuffix(topic, topicSuffix)
	if !ok {
		return "", false
	}
	s := Source(name)
	return s, s.Valid()
}
