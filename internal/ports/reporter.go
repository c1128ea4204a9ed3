package ports

import "github.com/alejandrodnm/callwriter/internal/domain"

// Reporter receives every ledger event of a run, typically for plotting or
// printing the trades afterwards. A nil Reporter is valid everywhere.
type Reporter interface {
	Record(event domain.TradeEvent)
}
