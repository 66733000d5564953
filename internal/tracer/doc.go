// Package tracer is the event tracer facade.
//
// A Tracer owns one event store. Subscription adapters deliver change
// notifications through Notify; test code asks questions through Query and
// EvaluateQuery, which block until the answer is known or the timeout ends.
//
//	tr := tracer.New(tracer.WithSubscriber(adapter))
//	if err := tr.Subscribe(ctx, "sys/tg_test/1", "State"); err != nil {
//	    return err
//	}
//	defer tr.UnsubscribeAll()
//
//	matched, err := tr.Query(ctx, query.Func(isOn), 3*time.Second, 1)
//
// Thread-safety model:
//   - Notify(): safe from any goroutine, never blocks on queries
//   - Query(), EvaluateQuery(): safe from any goroutine, block the caller only
//   - Subscribe(), UnsubscribeAll(), Clear(): safe from any goroutine
package tracer
