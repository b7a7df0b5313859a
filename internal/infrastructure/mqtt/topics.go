package mqtt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxTopicLength is the MQTT 3.1.1 limit on encoded topic length.
const maxTopicLength = 65535

// validatePublishTopic rejects topics a broker would refuse for PUBLISH:
// empty, oversized, containing NUL, or containing wildcards.
func validatePublishTopic(topic string) error {
	if err := validateCommon(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// validateFilter checks a subscription filter: # only as the final level,
// + only as a whole level.
func validateFilter(filter string) error {
	if err := validateCommon(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case strings.Contains(level, "#"):
			if level != "#" || i != len(levels)-1 {
				return fmt.Errorf("%w: # must be the last level in %q", ErrInvalidTopic, filter)
			}
		case strings.Contains(level, "+"):
			if level != "+" {
				return fmt.Errorf("%w: + must occupy a whole level in %q", ErrInvalidTopic, filter)
			}
		}
	}
	return nil
}

func validateCommon(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if !utf8.ValidString(topic) || strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic must be valid UTF-8 without NUL", ErrInvalidTopic)
	}
	return nil
}

// MatchTopic reports whether topic matches the subscription filter.
func MatchTopic(filter, topic string) bool {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	for i, f := range fl {
		if f == "#" {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if f != "+" && f != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
