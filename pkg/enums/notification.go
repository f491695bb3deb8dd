package enums

import "fmt"

// NotificationEventType names the messages handed to the notification dispatcher.
type NotificationEventType string

const (
	NotificationQuoteIssued NotificationEventType = "quote.issued"
)

var validNotificationEventTypes = []NotificationEventType{
	NotificationQuoteIssued,
}

// IsValid checks whether the given type matches a known event.
func (n NotificationEventType) IsValid() bool {
	for _, candidate := range validNotificationEventTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationEventType converts raw strings into NotificationEventType.
func ParseNotificationEventType(value string) (NotificationEventType, error) {
	for _, candidate := range validNotificationEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification event type %q", value)
}
