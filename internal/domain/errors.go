package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientResources is matched by every *InsufficientResourcesError.
	ErrInsufficientResources = errors.New("insufficient resources")
	// ErrContractNotFound means a chain has no snapshot for a contract.
	ErrContractNotFound = errors.New("contract not found")
	// ErrNoContract means a search found no expiration or contract matching the targets.
	ErrNoContract = errors.New("no contract found")
	// ErrChainNotFound means no option chain was published for a date.
	ErrChainNotFound = errors.New("option chain not found")
	// ErrLedgerCorrupted means a settlement hit an impossible portfolio state.
	// Runs that see it must abort.
	ErrLedgerCorrupted = errors.New("portfolio ledger corrupted")
	// ErrNoMarketData means a simulation range has no trading days.
	ErrNoMarketData = errors.New("no market data in range")
	// ErrContractExpired means a trade was attempted on a contract at or past
	// its expiration.
	ErrContractExpired = errors.New("contract expired")
)

// Resource names carried by InsufficientResourcesError.
const (
	ResourceCash       = "cash"
	ResourceShares     = "shares"
	ResourceCollateral = "collateral"
)

// InsufficientResourcesError is returned when a trade or settlement needs
// more cash, shares or uncollateralized shares than the portfolio has.
type InsufficientResourcesError struct {
	Op        string
	Resource  string
	Requested decimal.Decimal
	Available decimal.Decimal
	Contract  Option
}

func (e *InsufficientResourcesError) Error() string {
	return fmt.Sprintf("%s: not enough %s for %s: requested %s, available %s",
		e.Op, e.Resource, e.Contract, e.Requested.String(), e.Available.String())
}

// Is makes errors.Is(err, ErrInsufficientResources) work.
func (e *InsufficientResourcesError) Is(target error) bool {
	return target == ErrInsufficientResources
}

// Insufficient builds an InsufficientResourcesError.
func Insufficient(op, resource string, c Option, requested, available decimal.Decimal) error {
	return &InsufficientResourcesError{
		Op:        op,
		Resource:  resource,
		Requested: requested,
		Available: available,
		Contract:  c,
	}
}
