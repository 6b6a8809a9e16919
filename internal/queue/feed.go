package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// FeedLength is how many notifications are kept per user.
const FeedLength = 50

// FeedEntry is one delivered notification as stored in a user's feed.
type FeedEntry struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	SentAt  string         `json:"sentAt"`
}

// Feed stores the most recent notifications of each user in a capped
// Redis list, newest first.
type Feed struct {
	rdb *redis.Client
}

func NewFeed(rdb *redis.Client) *Feed { return &Feed{rdb: rdb} }

// FeedKey is the Redis list holding userID's notifications.
func FeedKey(userID string) string { return "notifications:user:" + userID }

// Push prepends e to the feed of userID and trims it to FeedLength.
func (f *Feed) Push(ctx context.Context, userID string, e FeedEntry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal feed entry: %w", err)
	}
	key := FeedKey(userID)
	pipe := f.rdb.TxPipeline()
	pipe.LPush(ctx, key, body)
	pipe.LTrim(ctx, key, 0, FeedLength-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push feed %s: %w", key, err)
	}
	return nil
}

// Recent returns the feed of userID, newest first.  Entries that fail to
// decode are skipped.
func (f *Feed) Recent(ctx context.Context, userID string) ([]FeedEntry, error) {
	raw, err := f.rdb.LRange(ctx, FeedKey(userID), 0, FeedLength-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	out := make([]FeedEntry, 0, len(raw))
	for _, s := range raw {
		var e FeedEntry
		if json.Unmarshal([]byte(s), &e) == nil {
			out = append(out, e)
		}
	}
	return out, nil
}
