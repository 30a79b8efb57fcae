package natsutil

import "strings"

// ChannelSubject returns the subject a channel publishes on: "<prefix>.<channel>".
func ChannelSubject(prefix, channel string) string {
	return prefix + "." + channel
}

// WildcardSubject returns the subject matching every channel under prefix.
func WildcardSubject(prefix string) string {
	return prefix + ".>"
}

// ChannelFromSubject extracts the channel name from a subject built by ChannelSubject.
//
// Returns:
//   - string: Channel name (may contain dots)
//   - bool: false when subject is not under prefix or names no channel
func ChannelFromSubject(prefix, subject string) (string, bool) {
	name, ok := strings.CutPrefix(subject, prefix+".")
	if !ok || name == "" {
		return "", false
	}

	return name, true
}
