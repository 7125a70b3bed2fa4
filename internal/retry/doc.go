// Package retry runs a call under a bounded attempt budget with exponential
// backoff between attempts.
//
// A Policy classifies each error as retryable or fatal; fatal errors end the
// loop immediately. The delays are taken from the policy's clock, so tests
// can drive them without sleeping:
//
//	p := retry.DefaultPolicy()
//	p.Classifier = func(err error) retry.Outcome { ... }
//	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
//	    return call(ctx)
//	})
package retry
