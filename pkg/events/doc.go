/*
Package events provides an in-memory broker for job progress events.

The runner publishes one event per planned job, per finished step and per job
outcome. Subscribers receive them asynchronously on buffered channels; a slow
subscriber misses events rather than stalling the job.

	broker := events.NewBroker()
	broker.Start()
	sub := broker.Subscribe()

	go func() {
		for ev := range sub {
			fmt.Println(ev.Type, ev.Message)
		}
	}()

	// ... run the job with runner.WithBroker(broker) ...

	broker.Stop() // flushes buffered events, then closes sub

Event metadata carries job_id, group_id, handler and, for failures, error.
*/
package events
