// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// StreamMessage is one progress or content message pushed to a session's
// consumer. Step numbers the session's output blocks from 1: chunks of the
// same block (one drafted section, say) share a step, and consumers append
// their content. Stage names the workflow step that produced the block.
// IsFinal marks the last message of a session.
type StreamMessage struct {
	SessionID string `json:"sessionId"`
	Step      int    `json:"step"`
	Stage     string `json:"stage"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	IsFinal   bool   `json:"isFinal"`
}
