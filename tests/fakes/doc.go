// Package fakes provides test doubles for rolecreds collaborators.
//
// Fakes are manually implemented (not generated) to give precise control
// over test behavior: scripted retrievals, recorded command invocations and
// canned STS responses.
//
// Usage:
//
//	clk := testingclock.NewFakeClock(time.Now())
//	retriever := fakes.NewFakeRetriever(fakes.SequentialSnapshots(clk, 10*time.Second))
//	engine, _ := rotation.New(rotation.Config{Retriever: retriever, Clock: clk})
package fakes
