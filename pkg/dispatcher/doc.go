// Package dispatcher implements the conversation flow of the bot.
//
// A conversation moves through these states:
//
//	AwaitingSelection -> AwaitingInput -> Collecting | AwaitingParameter -> Processing -> AwaitingSelection
//
// Image and merge operations collect uploads until a finish signal. Compress
// and presentation conversion process the first accepted upload right away.
// Watermark and protect hold the uploaded PDF until a text parameter arrives.
//
// Every file the dispatcher stores for a conversation is deleted exactly once,
// whichever path the conversation takes. Removal failures are logged, never
// reported to the user.
package dispatcher
