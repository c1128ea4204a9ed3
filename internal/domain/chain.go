package domain

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// OptionChain holds every contract published for one security on one
// snapshot date, bucketed direction → expiration → strike.
//
// A chain is populated once by an importer and is read-only afterwards, so a
// single chain can be shared between concurrent simulations.
type OptionChain struct {
	Security Security
	Date     time.Time

	buckets map[Direction]map[time.Time]map[string]Contract
	size    int
}

// NewOptionChain creates an empty chain for the security on the given date.
func NewOptionChain(security Security, date time.Time) *OptionChain {
	return &OptionChain{
		Security: security,
		Date:     Day(date),
		buckets: map[Direction]map[time.Time]map[string]Contract{
			Call: {},
			Put:  {},
		},
	}
}

// Add inserts the contract, overwriting any entry with the same
// (direction, expiration, strike). Contracts on another underlying are rejected.
func (c *OptionChain) Add(contract Contract) error {
	if contract.Underlying != c.Security {
		return fmt.Errorf("domain.OptionChain.Add: contract %s does not belong to chain %s", contract.Option, c)
	}
	byExp, ok := c.buckets[contract.Direction]
	if !ok {
		return fmt.Errorf("domain.OptionChain.Add: invalid direction %d", contract.Direction)
	}
	contract.Expiration = Day(contract.Expiration)
	strikes := byExp[contract.Expiration]
	if strikes == nil {
		strikes = make(map[string]Contract)
		byExp[contract.Expiration] = strikes
	}
	key := strikeKey(contract.Strike)
	if _, exists := strikes[key]; !exists {
		c.size++
	}
	strikes[key] = contract
	return nil
}

// Len returns the number of contracts in the chain.
func (c *OptionChain) Len() int {
	return c.size
}

// Lookup finds a contract by its identity fields.
func (c *OptionChain) Lookup(dir Direction, expiration time.Time, strike decimal.Decimal) (Contract, bool) {
	contract, ok := c.buckets[dir][Day(expiration)][strikeKey(strike)]
	if !ok {
		slog.Debug("chain lookup miss",
			"chain", c.String(),
			"direction", dir,
			"expiration", expiration.Format(time.DateOnly),
			"strike", strike.String(),
		)
	}
	return contract, ok
}

// Find resolves the chain's own snapshot of an identity-equal contract.
func (c *OptionChain) Find(o Option) (Contract, error) {
	if o.Underlying != c.Security {
		return Contract{}, fmt.Errorf("domain.OptionChain.Find: %s: %w", o, ErrContractNotFound)
	}
	contract, ok := c.Lookup(o.Direction, o.Expiration, o.Strike)
	if !ok {
		return Contract{}, fmt.Errorf("domain.OptionChain.Find: %s on %s: %w", o, c, ErrContractNotFound)
	}
	return contract, nil
}

// PriceOf returns the chain's price for the contract. It never fails: a
// missing contract is logged and priced at zero, so a zero here means
// "stale or missing", not "worthless".
func (c *OptionChain) PriceOf(o Option) decimal.Decimal {
	contract, err := c.Find(o)
	if err != nil {
		slog.Error("no price for contract", "contract", o.String(), "chain", c.String())
		return decimal.Zero
	}
	return contract.Price
}

// Expirations returns the expirations listed for a direction, earliest first.
func (c *OptionChain) Expirations(dir Direction) []time.Time {
	byExp := c.buckets[dir]
	exps := make([]time.Time, 0, len(byExp))
	for exp := range byExp {
		exps = append(exps, exp)
	}
	sort.Slice(exps, func(i, j int) bool { return exps[i].Before(exps[j]) })
	return exps
}

// ExpirationNear returns the listed expiration (calls and puts) closest to
// target. Ties go to the earlier expiration.
func (c *OptionChain) ExpirationNear(target time.Time) (time.Time, bool) {
	seen := make(map[time.Time]struct{})
	for _, dir := range []Direction{Call, Put} {
		for exp := range c.buckets[dir] {
			seen[exp] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return time.Time{}, false
	}
	exps := make([]time.Time, 0, len(seen))
	for exp := range seen {
		exps = append(exps, exp)
	}
	sort.Slice(exps, func(i, j int) bool { return exps[i].Before(exps[j]) })

	target = Day(target)
	best := exps[0]
	bestDist := absDuration(best.Sub(target))
	for _, exp := range exps[1:] {
		if d := absDuration(exp.Sub(target)); d < bestDist {
			best, bestDist = exp, d
		}
	}
	return best, true
}

// Contracts returns the contracts for a direction and expiration, lowest strike first.
func (c *OptionChain) Contracts(dir Direction, expiration time.Time) []Contract {
	strikes := c.buckets[dir][Day(expiration)]
	out := make([]Contract, 0, len(strikes))
	for _, contract := range strikes {
		out = append(out, contract)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strike.LessThan(out[j].Strike) })
	return out
}

// OutOfTheMoney returns the calls struck above and the puts struck below the
// underlying price for one expiration.
func (c *OptionChain) OutOfTheMoney(expiration time.Time, underlying decimal.Decimal) (calls, puts []Contract) {
	for _, contract := range c.Contracts(Call, expiration) {
		if contract.Strike.GreaterThan(underlying) {
			calls = append(calls, contract)
		}
	}
	for _, contract := range c.Contracts(Put, expiration) {
		if contract.Strike.LessThan(underlying) {
			puts = append(puts, contract)
		}
	}
	return calls, puts
}

// WeightedThetaByExpiration computes, per expiration, the price-weighted mean
// theta of the out-of-the-money contracts of one direction. Contracts with a
// NaN theta or a non-positive price are ignored, and expirations left without
// contracts are omitted.
//
// Theta is expected to follow the decay convention (negative, shrinking in
// magnitude as expiration moves out). Where an expiration's weighted theta is
// above the next later kept expiration's, the earlier one is dropped, which
// leaves a monotonic curve for Search to match against.
func (c *OptionChain) WeightedThetaByExpiration(dir Direction, underlying decimal.Decimal) map[time.Time]float64 {
	out := make(map[time.Time]float64)
	for _, exp := range c.Expirations(dir) {
		calls, puts := c.OutOfTheMoney(exp, underlying)
		otm := calls
		if dir == Put {
			otm = puts
		}
		var weighted, total float64
		for _, contract := range otm {
			if isNaN(contract.Theta) || !contract.Tradable() {
				continue
			}
			price := contract.Price.InexactFloat64()
			weighted += contract.Theta * price
			total += price
		}
		if total > 0 {
			out[exp] = weighted / total
		}
	}
	dropNonMonotonic(out)
	return out
}

func dropNonMonotonic(thetas map[time.Time]float64) {
	exps := make([]time.Time, 0, len(thetas))
	for exp := range thetas {
		exps = append(exps, exp)
	}
	sort.Slice(exps, func(i, j int) bool { return exps[i].Before(exps[j]) })
	if len(exps) < 2 {
		return
	}
	next := thetas[exps[len(exps)-1]]
	for i := len(exps) - 2; i >= 0; i-- {
		theta := thetas[exps[i]]
		if theta > next {
			delete(thetas, exps[i])
			continue
		}
		next = theta
	}
}

// Search finds the call that best matches a target theta and delta among
// the expirations strictly after asOf. The chain may be older than asOf, so
// contracts that have already expired are never returned.
//
// Stage 1 picks the expiration whose weighted theta has the smallest squared
// error to targetTheta. Stage 2 looks for the strike whose delta has the
// smallest squared error to targetDelta. Call deltas are assumed to fall
// strictly as the strike rises; when a chain breaks that assumption (a
// plateau included) the binary search is replaced by a linear scan.
func (c *OptionChain) Search(underlying decimal.Decimal, asOf time.Time, targetTheta, targetDelta float64) (Contract, error) {
	thetas := c.WeightedThetaByExpiration(Call, underlying)
	asOf = Day(asOf)
	exps := make([]time.Time, 0, len(thetas))
	for exp := range thetas {
		if exp.After(asOf) {
			exps = append(exps, exp)
		}
	}
	if len(exps) == 0 {
		return Contract{}, fmt.Errorf("domain.OptionChain.Search: %s after %s: no expiration: %w",
			c, asOf.Format(time.DateOnly), ErrNoContract)
	}

	sort.Slice(exps, func(i, j int) bool { return exps[i].Before(exps[j]) })

	bestExp := exps[0]
	bestErr := math.Inf(1)
	for _, exp := range exps {
		if e := sqErr(targetTheta, thetas[exp]); e < bestErr {
			bestExp, bestErr = exp, e
		}
	}

	var candidates []Contract
	for _, contract := range c.Contracts(Call, bestExp) {
		if isNaN(contract.Delta) || !contract.Tradable() {
			continue
		}
		candidates = append(candidates, contract)
	}
	if len(candidates) == 0 {
		return Contract{}, fmt.Errorf("domain.OptionChain.Search: %s exp %s: no priced contract: %w",
			c, bestExp.Format(time.DateOnly), ErrNoContract)
	}

	if !deltasDescending(candidates) {
		slog.Debug("chain deltas not monotonic in strike, scanning linearly",
			"chain", c.String(), "expiration", bestExp.Format(time.DateOnly))
		return nearestDeltaLinear(candidates, targetDelta), nil
	}
	return nearestDeltaBinary(candidates, targetDelta), nil
}

// nearestDeltaBinary finds a local minimum of (target - delta)² over contracts
// sorted by delta descending. For a monotonic sequence the local minimum is
// also the global one.
func nearestDeltaBinary(contracts []Contract, target float64) Contract {
	lo, hi := 0, len(contracts)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if sqErr(target, contracts[mid+1].Delta) < sqErr(target, contracts[mid].Delta) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return contracts[lo]
}

func nearestDeltaLinear(contracts []Contract, target float64) Contract {
	best := contracts[0]
	bestErr := sqErr(target, best.Delta)
	for _, contract := range contracts[1:] {
		if e := sqErr(target, contract.Delta); e < bestErr {
			best, bestErr = contract, e
		}
	}
	return best
}

// deltasDescending reports whether deltas fall strictly with the strike.
// Equal neighbours leave the binary search no direction to follow.
func deltasDescending(contracts []Contract) bool {
	for i := 1; i < len(contracts); i++ {
		if contracts[i].Delta >= contracts[i-1].Delta {
			return false
		}
	}
	return true
}

// ImpliedVolatility is the price-weighted mean IV of the out-of-the-money
// calls and puts for one expiration. It is NaN when nothing carries weight.
func (c *OptionChain) ImpliedVolatility(expiration time.Time, underlying decimal.Decimal) float64 {
	calls, puts := c.OutOfTheMoney(expiration, underlying)
	var weighted, total float64
	for _, contract := range append(calls, puts...) {
		if isNaN(contract.IV) || !contract.Tradable() {
			continue
		}
		price := contract.Price.InexactFloat64()
		weighted += contract.IV * price
		total += price
	}
	if total == 0 {
		return math.NaN()
	}
	return weighted / total
}

func (c *OptionChain) String() string {
	return c.Security.Symbol + c.Date.Format("20060102")
}

func sqErr(target, actual float64) float64 {
	d := target - actual
	return d * d
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
