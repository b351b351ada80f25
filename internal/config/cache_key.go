package config

import (
	"fmt"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionResultsKey returns the cache key for a completed session's results view
func (r *CacheKeyStruct) SessionResultsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:results", sessionID)
}

// UserSessionsChannel returns the Redis PubSub channel for a user's session events
func (r *CacheKeyStruct) UserSessionsChannel(userID string) string {
	return fmt.Sprintf("user:%s:sessions", userID)
}

// UserSessionsPattern matches every user's session event channel
func (r *CacheKeyStruct) UserSessionsPattern() string {
	return "user:*:sessions"
}

// UserIDFromChannel extracts the user id from a channel built by UserSessionsChannel.
func (r *CacheKeyStruct) UserIDFromChannel(channel string) (string, bool) {
	rest, ok := strings.CutPrefix(channel, "user:")
	if !ok {
		return "", false
	}
	userID, ok := strings.CutSuffix(rest, ":sessions")
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

var CacheKey = NewCacheKeyStruct()
