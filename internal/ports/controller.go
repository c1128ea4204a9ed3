package ports

// Controller maps an observation vector to an action vector
// (buy, sell, hold, delta target, theta target). Implementations are treated
// as pure functions: the simulator may call Activate once per trading day.
type Controller interface {
	Activate(observation []float64) []float64
}
