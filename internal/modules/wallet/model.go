// README: Rider wallet balances; the dispatcher only reads cash-in-hand.
package wallet

import (
	"time"

	"dispatch/internal/types"
)

type Wallet struct {
	RiderID    types.ID
	CashInHand types.Money
	UpdatedAt  time.Time
}
