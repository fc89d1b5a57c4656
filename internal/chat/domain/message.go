package domain

import (
	"sort"
	"time"
)

// Message 表示一則聊天訊息
type Message struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	Sender         string    `bson:"sender" json:"sender"`
	Content        string    `bson:"content" json:"content"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	// Seq insertion order, breaks CreatedAt ties
	Seq int64 `bson:"seq" json:"-"`
}

// SortMessages ascending by CreatedAt, ties by insertion sequence
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].Seq < msgs[j].Seq
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
