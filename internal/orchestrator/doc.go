// Package orchestrator runs the conversation with the task owner.
//
// The orchestrator package provides:
//   - A per-user state machine (idle, awaiting_dump, awaiting_freeform_text)
//   - Chat commands over the scheduler: /dump, /tasks, /task, /done, /skip, ...
//   - Spoken replies through a cached synthesizer, with a text fallback
//
// Only one sender is authorized. Messages from anyone else are dropped
// before they touch the conversation state or the store.
//
// Example usage:
//
//	orch := orchestrator.New(orchestrator.RequiredConfig{
//		Scheduler:     sched,
//		Processor:     scheduler.NewCachedProcessor(proc, cache.NewDumpCache()),
//		Deliverer:     telegram,
//		AllowedUserID: cfg.Telegram.AllowedUserID,
//	}, orchestrator.WithSynthesizer(voice))
//	poller := transport.NewPoller(telegram, orch)
//	err := poller.Run(ctx)
package orchestrator
