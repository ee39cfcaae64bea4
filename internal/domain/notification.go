package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationChannel string

const (
	ChannelPush  NotificationChannel = "push"
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is one scheduled or immediate multi-channel delivery. Rows in
// pending state with a past ScheduledAt are picked up by the batch worker.
// A non-empty DedupeKey is unique across rows; re-inserting the same key
// lands on the existing row instead of creating a second one.
type Notification struct {
	ID          uuid.UUID
	Channel     NotificationChannel
	Recipient   string
	Subject     string
	Body        string
	DedupeKey   string
	Status      NotificationStatus
	ScheduledAt time.Time
	SentAt      *time.Time
	CreatedAt   time.Time
}
