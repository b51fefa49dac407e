package traffic

import "testing"

// only returns a schedule function that yields 1 for the given intersection,
// direction and step, and 0 everywhere else.
func only(intersection int, d Direction, steps ...int) func(int, int, Direction) float64 {
	return func(step, i int, dir Direction) float64 {
		if i != intersection || dir != d {
			return 0
		}
		for _, s := range steps {
			if s == step {
				return 1
			}
		}
		return 0
	}
}

// newScheduledEnv builds a two-intersection environment driven by fn.
func newScheduledEnv(t *testing.T, fn ScheduleFuncs) *Environment {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Schedule = fn
	env, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	env.Reset()
	return env
}

// mustStep steps env and fails the test on error.
func mustStep(t *testing.T, env *Environment, actions ...Action) StepResult {
	t.Helper()
	res, err := env.Step(actions)
	if err != nil {
		t.Fatalf("step %d failed: %v", env.Elapsed(), err)
	}
	return res
}
