// Package session keeps the ephemeral per-conversation state of the bot:
// the selected operation and the files buffered for it.
//
// Invariants:
//   - At most one operation is active per conversation.
//   - Selecting an operation resets every buffer of that conversation.
//   - File references leave the store exactly once, through the return value
//     of SetOperation, SetSingleFile, Clear or Expire. The caller deletes them.
//   - Nothing is persisted; a restart loses every session.
//
// Usage:
//
//	store := session.NewMemoryStore()
//	dropped := store.SetOperation("chat:42", session.OpMergePDFs)
//	n := store.AppendPending("chat:42", "/tmp/pdfbot/chat_42/a.pdf")
//	_, _ = dropped, n
package session
