// Package feed simulates a notification source from a YAML script.
//
// A Player implements tracer.Subscriber, so a tracer can subscribe to
// scripted attributes exactly as it would to live devices. Play then emits
// the scripted changes at their offsets, pacing them with a clock so tests
// can drive playback with a fake clock.
package feed
