package runner

import "time"

// Instruction is a retry strategy's verdict after a failed attempt: abort
// and surface the captured error, or run again after Delay.
type Instruction struct {
	Abort bool
	Delay time.Duration
}

// Retry instructs another attempt after delay.
func Retry(delay time.Duration) Instruction { return Instruction{Delay: delay} }

// Abort instructs giving up.
func Abort() Instruction { return Instruction{Abort: true} }

// Strategy decides whether to keep attempting an execution. It is consulted
// before every attempt with the previous instruction (nil before the first)
// and the number of attempts already run, so a policy can escalate delays or
// cap attempts. Strategies must be safe for concurrent executions; per-run
// state lives in the policy the runner builds around them.
type Strategy interface {
	ShouldRetry(prev *Instruction, attempts int) Instruction
}

// StrategyFunc adapts a function to a Strategy.
type StrategyFunc func(prev *Instruction, attempts int) Instruction

func (f StrategyFunc) ShouldRetry(prev *Instruction, attempts int) Instruction {
	return f(prev, attempts)
}

// NoRetry aborts on the first failure. It is the default strategy.
type NoRetry struct{}

func (NoRetry) ShouldRetry(prev *Instruction, _ int) Instruction {
	if prev == nil {
		return Retry(0)
	}
	return Abort()
}

// FixedRetry allows up to Retries re-attempts with a constant delay.
type FixedRetry struct {
	Retries int
	Delay   time.Duration
}

func (s FixedRetry) ShouldRetry(prev *Instruction, attempts int) Instruction {
	if prev == nil {
		return Retry(0)
	}
	if attempts > s.Retries {
		return Abort()
	}
	return Retry(s.Delay)
}

// policy carries one execution's retry state across attempts.
type policy struct {
	strategy Strategy
	attempts int
	last     *Instruction
}

func newPolicy(strategy Strategy) *policy {
	if strategy == nil {
		strategy = NoRetry{}
	}
	return &policy{strategy: strategy}
}

func (p *policy) next() Instruction {
	in := p.strategy.ShouldRetry(p.last, p.attempts)
	p.attempts++
	p.last = &in
	return in
}
