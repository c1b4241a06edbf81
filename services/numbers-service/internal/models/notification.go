package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RecipientType string

const (
	RecipientUser  RecipientType = "user"
	RecipientAdmin RecipientType = "admin"
)

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

const CategorySubscription = "subscription"

type Notification struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Recipient     primitive.ObjectID  `bson:"recipient" json:"recipient"`
	RecipientType RecipientType       `bson:"recipient_type" json:"recipient_type"`
	Title         string              `bson:"title" json:"title"`
	Message       string              `bson:"message" json:"message"`
	Category      string              `bson:"category" json:"category"`
	Type          NotificationType    `bson:"type" json:"type"`
	RelatedID     *primitive.ObjectID `bson:"related_id,omitempty" json:"related_id,omitempty"`
	Read          bool                `bson:"read" json:"read"`
	Channels      []Channel           `bson:"channels" json:"channels"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
}

type NotificationFilter struct {
	UnreadOnly bool
	Page       int
	Limit      int
}
