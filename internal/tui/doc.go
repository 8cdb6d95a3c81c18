// Package tui provides the local console for taskhunter.
//
// The console is a chat window that stands in for Telegram. Every line the
// user submits is handed to the orchestrator as a message from the allowed
// user, and the orchestrator's replies are rendered in the transcript.
// Voice replies show the path of the generated audio file.
//
// Usage:
//
//	program, _ := tui.NewConsoleProgram(ctx, func(d transport.Deliverer) transport.Handler {
//	    return orchestrator.New(orchestrator.RequiredConfig{
//	        Scheduler:     sched,
//	        Processor:     proc,
//	        Deliverer:     d,
//	        AllowedUserID: userID,
//	    })
//	}, userID)
//	_, err := program.Run()
//
// Quit with Esc or Ctrl+C.
package tui
